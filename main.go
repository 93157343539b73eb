package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/facebookgo/httpdown"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "overlayrelay:", err)
		os.Exit(2)
	}
	logger, err := newLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "overlayrelay:", err)
		os.Exit(2)
	}
	defer logger.Sync()

	registry := newNamespaceRegistry(cfg.Namespaces)
	h := newHub(newMemoryStore(), newMTicker(cfg.PingPeriod), logger, cfg.MaxMessageSize)
	go h.run()
	startMetrics(cfg.MetricsTick, zap.NewStdLog(logger.Named("metrics")).Writer())

	// Prepare the stoppable HTTP server
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: newHandler(h, registry, cfg),
	}
	hd := &httpdown.HTTP{
		StopTimeout: cfg.StopTimeout,
		KillTimeout: cfg.KillTimeout,
	}

	logger.Info("listening",
		zap.String("addr", cfg.Addr),
		zap.Strings("namespaces", registry.list()),
		zap.Duration("ping_period", cfg.PingPeriod))
	if err := httpdown.ListenAndServe(server, hd); err != nil {
		logger.Error("server stopped", zap.Error(err))
	}

	logger.Info("shutting down", zap.Any("status", h.status()))
	h.stop()
	stopMetrics()
}

func newHandler(h *hub, registry *namespaceRegistry, cfg *config) http.Handler {
	handler := mux.NewRouter()
	// Malformed websocket paths must reach admission, not a redirect.
	handler.SkipClean(true)

	// Route websocket requests
	handler.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return websocket.IsWebSocketUpgrade(r)
	}).Handler(newWsHandler(h, registry, cfg.Origin, cfg.WriteWait))

	// Route overlay page requests
	handler.Methods("GET").Path("/" + consumerRoute).Handler(missingNamespaceHandler{})
	handler.Methods("GET").Path("/{namespace}/" + consumerRoute).Handler(pageHandler{registry: registry})

	return handler
}
