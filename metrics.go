package main

import (
	"io"
	"os"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

type metrics struct {
	log  io.Writer
	reg  gometrics.Registry
	tick time.Duration

	mux    sync.Mutex
	ticker *mTicker
	done   chan struct{}
}

var m *metrics

func init() {
	m = &metrics{
		log:  os.Stderr,
		reg:  gometrics.DefaultRegistry,
		tick: time.Duration(60) * time.Second,
	}
}

// startMetrics writes a JSON report of every counter and meter to w once per
// tick until stopMetrics.
func startMetrics(tick time.Duration, w io.Writer) {
	if tick > 0 {
		m.tick = tick
	}
	if w != nil {
		m.log = w
	}
	m.start()
}

// stopMetrics stops periodic reports and writes a final one.
func stopMetrics() {
	m.stop()
	m.writeOnce()
}

func incr(name string, i int64) {
	m.incr(name, i)
}

func decr(name string, i int64) {
	m.decr(name, i)
}

func mark(name string, i int64) {
	m.mark(name, i)
}

func (m *metrics) start() {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.ticker != nil {
		return
	}
	m.ticker = newMTicker(m.tick)
	m.done = make(chan struct{})
	sub := m.ticker.subscribe()
	go func(done chan struct{}) {
		defer close(done)
		for range sub.tick {
			m.writeOnce()
		}
	}(m.done)
}

func (m *metrics) stop() {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.ticker == nil {
		return
	}
	m.ticker.stop()
	<-m.done
	m.ticker = nil
}

func (m *metrics) writeOnce() {
	gometrics.WriteJSONOnce(m.reg, m.log)
}

func (m *metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m *metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

func (m *metrics) mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, m.reg).Mark(i)
}
