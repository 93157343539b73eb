package main

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestConnReadMessage(t *testing.T) {
	h := newTestHub(t)
	conn, w := newTestConnection(h, "roomA", producer)

	// Assert on error, do nothing
	w.setRead(0, nil, errors.New("Message Read Error"))
	err := conn.readMessage()

	if err == nil {
		t.Fatal("No Error Returned")
	}

	if len(h.queue) != 0 {
		t.Fatal("Expectation: hub queue length should be 0, Received:", len(h.queue))
	}

	// On receipt of a message, it is posted to the hub queue untouched
	w.setRead(websocket.BinaryMessage, []byte("banana"), nil)
	err = conn.readMessage()

	if err != nil {
		t.Fatal("Expectation: Error should be nil, Received:", err)
	}

	cmd := <-h.queue
	if cmd.cmd != MESSAGE || cmd.conn != conn {
		t.Fatal("Expectation: MESSAGE from conn, Received:", cmd.cmd)
	}
	if string(cmd.frame.data) != "banana" || cmd.frame.kind != websocket.BinaryMessage {
		t.Fatal("Expectation: binary banana, Received:", cmd.frame.kind, string(cmd.frame.data))
	}

	// Empty messages are relayed too
	w.setRead(websocket.TextMessage, []byte{}, nil)
	if err := conn.readMessage(); err != nil {
		t.Fatal("Expectation: Error should be nil, Received:", err)
	}
	if len(h.queue) != 1 {
		t.Fatal("Expectation: hub queue length should be 1, Received:", len(h.queue))
	}
}

func TestConnWriter(t *testing.T) {
	h := newTestHub(t)
	conn, w := newTestConnection(h, "roomA", consumer)

	done := make(chan struct{})
	go func() {
		conn.writer()
		close(done)
	}()
	conn.send <- frame{kind: websocket.TextMessage, data: []byte("bananas")}
	conn.send <- frame{kind: websocket.PingMessage}
	close(conn.send)
	waitClosed(t, done)

	writes := w.written()
	if len(writes) != 1 || string(writes[0].data) != "bananas" || writes[0].kind != websocket.TextMessage {
		t.Fatal("Expectation: one text frame 'bananas', Received:", writes)
	}
	if w.count(&w.pings) != 1 {
		t.Fatal("Expectation: 1 ping, Received:", w.count(&w.pings))
	}
	if w.count(&w.deadlines) != 1 {
		t.Fatal("Expectation: write deadline set once, Received:", w.count(&w.deadlines))
	}
	if w.count(&w.closed) != 1 {
		t.Fatal("Expectation: transport closed after send queue closed, Received:", w.count(&w.closed))
	}
}

func TestConnWriterStopsOnError(t *testing.T) {
	h := newTestHub(t)
	conn, w := newTestConnection(h, "roomA", consumer)
	w.writeErr = errors.New("broken pipe")

	done := make(chan struct{})
	go func() {
		conn.writer()
		close(done)
	}()
	conn.send <- frame{kind: websocket.TextMessage, data: []byte("lost")}
	waitClosed(t, done)

	if w.count(&w.closed) != 1 {
		t.Fatal("Expectation: transport closed after write error, Received:", w.count(&w.closed))
	}
}

func TestConnRun(t *testing.T) {
	h := newTestHub(t)
	go h.run()
	defer h.stop()

	conn, w := newTestConnection(h, "roomA", consumer)
	w.setRead(0, nil, io.EOF)
	conn.run()

	if w.readLimit != h.maxMessageSize {
		t.Fatal("Expectation: read limit", h.maxMessageSize, "Received:", w.readLimit)
	}
	// ADMIT and CLOSE were queued ahead of the status request.
	st := h.status()
	if st.Connections != 0 || len(st.Consumers) != 0 {
		t.Fatal("Expectation: connection admitted then removed, Received:", st)
	}
}

func TestConnPongHandler(t *testing.T) {
	h := newTestHub(t)
	conn, w := newTestConnection(h, "roomA", producer)
	conn.w.wsSetPongHandler(func() { h.enqueue(command{cmd: PONG, conn: conn}) })

	w.onPong()
	cmd := <-h.queue
	if cmd.cmd != PONG || cmd.conn != conn {
		t.Fatal("Expectation: PONG from conn, Received:", cmd.cmd)
	}
}

func TestConnRunAfterStop(t *testing.T) {
	h := newTestHub(t)
	go h.run()
	h.stop()

	conn, w := newTestConnection(h, "roomA", consumer)
	conn.run()

	if w.count(&w.closed) != 1 {
		t.Fatal("Expectation: connection closed when hub is stopped, Received:", w.count(&w.closed))
	}
	if w.count(&w.reads) != 0 {
		t.Fatal("Expectation: no reads, Received:", w.count(&w.reads))
	}
}

func newTestConnection(h *hub, namespace string, r role) (*connection, *mockWsInteractor) {
	w := &mockWsInteractor{}
	return newConnection(w, h, namespace, r), w
}

func waitClosed(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for goroutine to exit")
	}
}

type mockWsInteractor struct {
	mux sync.Mutex

	kind int
	msg  []byte
	err  error

	writeErr  error
	writes    []frame
	readLimit int64
	onPong    func()

	reads       int
	deadlines   int
	pings       int
	closed      int
	closeCode   int
	closeReason string
}

func (mw *mockWsInteractor) setRead(kind int, msg []byte, err error) {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	mw.kind, mw.msg, mw.err = kind, msg, err
}

func (mw *mockWsInteractor) count(n *int) int {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	return *n
}

func (mw *mockWsInteractor) written() []frame {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	return append([]frame(nil), mw.writes...)
}

func (mw *mockWsInteractor) wsSetReadLimit(limit int64) {
	mw.readLimit = limit
}

func (mw *mockWsInteractor) wsSetPongHandler(onPong func()) {
	mw.onPong = onPong
}

func (mw *mockWsInteractor) wsReadMessage() (int, []byte, error) {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	mw.reads++
	return mw.kind, mw.msg, mw.err
}

func (mw *mockWsInteractor) wsSetWriteDeadline() {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	mw.deadlines++
}

func (mw *mockWsInteractor) wsWriteMessage(messageType int, payload []byte) error {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	mw.writes = append(mw.writes, frame{kind: messageType, data: payload})
	return nil
}

func (mw *mockWsInteractor) wsWritePing() error {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	mw.pings++
	return mw.writeErr
}

func (mw *mockWsInteractor) wsCloseWith(code int, reason string) error {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	mw.closeCode, mw.closeReason = code, reason
	mw.closed++
	return nil
}

func (mw *mockWsInteractor) wsClose() error {
	mw.mux.Lock()
	defer mw.mux.Unlock()
	mw.closed++
	if mw.closed > 1 {
		return errors.New("already closed")
	}
	return nil
}
