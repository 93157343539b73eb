package main

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type cmdType int

const (
	ADMIT cmdType = iota + 1
	MESSAGE
	PONG
	CLOSE
	SWEEP
	STATUS
)

type command struct {
	cmd   cmdType
	conn  *connection
	frame frame
	reply chan relayStatus
}

type queue chan command

type connections map[*connection]interface {
}

// hub is the relay engine. Every field below queue is owned by the run
// goroutine; other goroutines talk to it only through the queue.
type hub struct {
	queue          queue
	store          relayStore
	connections    connections
	ticker         *mTicker
	log            *zap.Logger
	maxMessageSize int64

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// relayStatus is a point-in-time view of the hub, sorted by namespace.
type relayStatus struct {
	Connections    int      `json:"connections"`
	Unacknowledged int      `json:"unacknowledged"`
	Consumers      []string `json:"consumers"`
	Cached         []string `json:"cached"`
}

func newHub(store relayStore, ticker *mTicker, log *zap.Logger, maxSize int64) *hub {
	if maxSize <= 0 {
		maxSize = maxMessageSize
	}
	return &hub{
		queue:          make(queue, 16),
		store:          store,
		connections:    make(connections),
		ticker:         ticker,
		log:            log,
		maxMessageSize: maxSize,
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
}

func (h *hub) run() {
	defer close(h.stopped)
	sub := h.ticker.subscribe()
	for {
		select {
		case cmd := <-h.queue:
			h.dispatch(cmd)
		case _, ok := <-sub.tick:
			if !ok {
				// Ticker stopped underneath us; keep relaying without sweeps.
				sub.tick = nil
				continue
			}
			h.sweep()
		case <-h.done:
			h.shutdown()
			return
		}
	}
}

// stop shuts the hub down and waits for run to return. It must only be
// called once run has been started; later calls are no-ops.
func (h *hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
}

// enqueue hands cmd to the run goroutine. It reports false once the hub is
// stopping, in which case cmd is dropped.
func (h *hub) enqueue(cmd command) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.queue <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// status asks the run goroutine for a snapshot.
func (h *hub) status() relayStatus {
	reply := make(chan relayStatus, 1)
	if !h.enqueue(command{cmd: STATUS, reply: reply}) {
		return relayStatus{}
	}
	select {
	case st := <-reply:
		return st
	case <-h.stopped:
		return relayStatus{}
	}
}

func (h *hub) dispatch(cmd command) {
	switch cmd.cmd {
	case ADMIT:
		h.admit(cmd.conn)
	case MESSAGE:
		h.message(cmd.conn, cmd.frame)
	case PONG:
		h.pong(cmd.conn)
	case CLOSE:
		h.remove(cmd.conn)
	case SWEEP:
		h.sweep()
	case STATUS:
		cmd.reply <- h.snapshot()
	default:
		h.log.Error("unexpected hub command", zap.Int("cmd", int(cmd.cmd)))
	}
}

func (h *hub) admit(c *connection) {
	c.alive = true
	c.open = true
	h.connections[c] = nil
	switch c.role {
	case consumer:
		h.store.setConsumer(c.namespace, c)
		incr("consumers", 1)
	case producer:
		incr("producers", 1)
	}
	c.log.Info("connected")

	// Producers get the replay too, mirroring what consumers see on connect.
	if last, ok := h.store.lastMessage(c.namespace); ok && h.deliver(c, last) {
		mark("relay.replayed", 1)
	}
}

func (h *hub) message(c *connection, f frame) {
	if c.role != producer {
		c.log.Debug("ignoring consumer message", zap.Int("bytes", len(f.data)))
		return
	}
	c.log.Debug("message", zap.Int("bytes", len(f.data)), zap.Int("type", f.kind))
	h.store.setLastMessage(c.namespace, f)
	target := h.store.consumer(c.namespace)
	if target == nil || !h.deliver(target, f) {
		mark("relay.dropped", 1)
		return
	}
	mark("relay.forwarded", 1)
}

func (h *hub) pong(c *connection) {
	c.alive = true
}

// remove is the close handler. The consumer slot is only cleared when c is
// still the registered consumer; a newer consumer keeps its registration.
func (h *hub) remove(c *connection) {
	if _, ok := h.connections[c]; !ok {
		return
	}
	delete(h.connections, c)
	h.release(c)
	switch c.role {
	case consumer:
		if h.store.clearConsumer(c.namespace, c) {
			c.log.Debug("consumer slot cleared")
		}
		decr("consumers", 1)
	case producer:
		decr("producers", 1)
	}
	c.log.Info("disconnected")
}

// sweep terminates every open connection that did not answer the previous
// sweep's ping, and pings the rest.
func (h *hub) sweep() {
	for c := range h.connections {
		if !c.open {
			continue
		}
		if !c.alive {
			c.log.Info("no pong since last sweep, terminating")
			mark("liveness.evicted", 1)
			h.terminate(c)
			continue
		}
		c.alive = false
		h.deliver(c, frame{kind: websocket.PingMessage})
	}
}

// deliver queues f for c's writer. Sends to a connection that is no longer
// open are skipped. A connection whose queue is full is terminated.
func (h *hub) deliver(c *connection, f frame) bool {
	if !c.open {
		return false
	}
	select {
	case c.send <- f:
		return true
	default:
		c.log.Warn("send queue full, terminating")
		h.terminate(c)
		return false
	}
}

// terminate drops c's transport. Table cleanup happens in remove once c's
// reader notices the closed socket.
func (h *hub) terminate(c *connection) {
	if err := c.w.wsClose(); err != nil {
		c.log.Debug("terminate", zap.Error(err))
	}
	h.release(c)
}

// release marks c closed and ends its writer. Safe to call repeatedly.
func (h *hub) release(c *connection) {
	if !c.open {
		return
	}
	c.open = false
	close(c.send)
}

func (h *hub) snapshot() relayStatus {
	st := relayStatus{
		Connections: len(h.connections),
		Consumers:   []string{},
		Cached:      []string{},
	}
	for c := range h.connections {
		if c.open && !c.alive {
			st.Unacknowledged++
		}
	}
	for _, namespace := range h.store.namespaces() {
		if h.store.consumer(namespace) != nil {
			st.Consumers = append(st.Consumers, namespace)
		}
		if _, ok := h.store.lastMessage(namespace); ok {
			st.Cached = append(st.Cached, namespace)
		}
	}
	return st
}

func (h *hub) shutdown() {
	h.ticker.stop()
	for c := range h.connections {
		h.terminate(c)
	}
	// Connections admitted after the last loop turn were never seen; drop them.
	for {
		select {
		case cmd := <-h.queue:
			switch {
			case cmd.cmd == ADMIT:
				cmd.conn.w.wsClose()
			case cmd.reply != nil:
				cmd.reply <- relayStatus{}
			}
		default:
			h.log.Info("hub stopped")
			return
		}
	}
}
