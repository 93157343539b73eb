package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type wsHandler struct {
	h         *hub
	registry  *namespaceRegistry
	upgrader  *websocket.Upgrader
	writeWait time.Duration
}

func newWsHandler(h *hub, registry *namespaceRegistry, origin string, wait time.Duration) wsHandler {
	upgrader := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		return origin == "" || r.Header.Get("Origin") == origin
	}
	return wsHandler{h: h, registry: registry, upgrader: upgrader, writeWait: wait}
}

// ServeHTTP upgrades first so that a rejected connection can be told why
// with a policy violation close frame.
func (wsh wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := wsh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wi := newWebsocketInteractor(ws, wsh.writeWait)
	namespace, role, err := parseRoute(r.URL.Path, wsh.registry)
	if err != nil {
		mark("relay.rejected", 1)
		wsh.h.log.Warn("rejecting connection",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		wi.wsCloseWith(websocket.ClosePolicyViolation, err.Error())
		return
	}
	c := newConnection(wi, wsh.h, namespace, role)
	c.run()
}

type pageHandler struct {
	registry *namespaceRegistry
}

func (ph pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	namespace := mux.Vars(r)["namespace"]
	if !ph.registry.isAllowed(namespace) {
		http.Error(w, "Error: forbidden. Namespace is not allowed.", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	overlayTemplate.Execute(w, templateArgs{Namespace: namespace, Path: r.URL.Path})
}

type missingNamespaceHandler struct{}

func (missingNamespaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w,
		"Error: not found. Open /{namespace}/overlay with an allowed namespace.",
		http.StatusNotFound)
}
