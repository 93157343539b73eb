package main

import (
	"errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var errHubStopped = errors.New("hub stopped")

type connection struct {
	id        string
	namespace string
	role      role
	send      chan frame
	w         websocketManager
	h         *hub
	log       *zap.Logger

	// Owned by the hub goroutine.
	alive bool
	open  bool
}

func newConnection(w websocketManager, h *hub, namespace string, r role) *connection {
	id := uuid.NewString()
	return &connection{
		id:        id,
		namespace: namespace,
		role:      r,
		send:      make(chan frame, sendBufferSize),
		w:         w,
		h:         h,
		log: h.log.With(
			zap.String("conn", id),
			zap.String("namespace", namespace),
			zap.Stringer("role", r)),
	}
}

// run admits the connection and pumps frames until the peer goes away. It
// returns once the reader stops; the writer exits when the hub releases it.
func (c *connection) run() {
	c.w.wsSetReadLimit(c.h.maxMessageSize)
	c.w.wsSetPongHandler(func() { c.h.enqueue(command{cmd: PONG, conn: c}) })
	if !c.h.enqueue(command{cmd: ADMIT, conn: c}) {
		c.w.wsClose()
		return
	}
	incr("websockets", 1)
	defer func() {
		decr("websockets", 1)
		c.h.enqueue(command{cmd: CLOSE, conn: c})
	}()
	go c.writer()
	c.reader()
}

func (c *connection) reader() {
	for {
		if err := c.readMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read", zap.Error(err))
			}
			break
		}
	}
	c.w.wsClose()
}

func (c *connection) readMessage() error {
	kind, message, err := c.w.wsReadMessage()
	if err != nil {
		return err
	}
	incr("conn.recv", 1)
	if !c.h.enqueue(command{cmd: MESSAGE, conn: c, frame: frame{kind: kind, data: message}}) {
		return errHubStopped
	}
	return nil
}

func (c *connection) writer() {
	defer c.w.wsClose()
	for {
		select {
		case f, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.writeFrame(f); err != nil {
				c.log.Debug("write", zap.Error(err))
				return
			}
		case <-c.h.done:
			return
		}
	}
}

func (c *connection) writeFrame(f frame) error {
	if f.kind == websocket.PingMessage {
		return c.w.wsWritePing()
	}
	c.w.wsSetWriteDeadline()
	if err := c.w.wsWriteMessage(f.kind, f.data); err != nil {
		return err
	}
	incr("conn.send", 1)
	return nil
}
