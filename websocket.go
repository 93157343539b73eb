package main

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Period of the liveness sweep. A peer has one full period to answer a ping.
	pingPeriod = 30 * time.Second

	// Maximum frame size allowed from peer.
	maxMessageSize = 1 << 20

	// Outbound frames buffered per connection before it counts as stuck.
	sendBufferSize = 256
)

// frame is one outbound websocket message. kind is a gorilla message type:
// TextMessage and BinaryMessage carry payloads, PingMessage is a liveness probe.
type frame struct {
	kind int
	data []byte
}

type websocketManager interface {
	wsSetReadLimit(limit int64)
	wsSetPongHandler(onPong func())
	wsReadMessage() (int, []byte, error)
	wsSetWriteDeadline()
	wsWriteMessage(int, []byte) error
	wsWritePing() error
	wsCloseWith(code int, reason string) error
	wsClose() error
}

type websocketInteractor struct {
	ws        *websocket.Conn
	writeWait time.Duration
}

func newWebsocketInteractor(ws *websocket.Conn, wait time.Duration) websocketInteractor {
	if wait <= 0 {
		wait = writeWait
	}
	return websocketInteractor{ws: ws, writeWait: wait}
}

func (w websocketInteractor) wsSetReadLimit(limit int64) {
	w.ws.SetReadLimit(limit)
}

func (w websocketInteractor) wsSetPongHandler(onPong func()) {
	w.ws.SetPongHandler(func(string) error { onPong(); return nil })
}

func (w websocketInteractor) wsReadMessage() (messageType int, p []byte, err error) {
	return w.ws.ReadMessage()
}

func (w websocketInteractor) wsSetWriteDeadline() {
	w.ws.SetWriteDeadline(time.Now().Add(w.writeWait))
}

func (w websocketInteractor) wsWriteMessage(messageType int, payload []byte) error {
	return w.ws.WriteMessage(messageType, payload)
}

func (w websocketInteractor) wsWritePing() error {
	return w.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeWait))
}

// wsCloseWith sends a close frame carrying code and reason, then drops the
// network connection without waiting for the peer's reply.
func (w websocketInteractor) wsCloseWith(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	err := w.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.writeWait))
	if cerr := w.ws.Close(); err == nil {
		err = cerr
	}
	return err
}

func (w websocketInteractor) wsClose() error {
	return w.ws.Close()
}
