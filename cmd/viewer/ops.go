package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mapping-viewer/internal/backend"
	"mapping-viewer/internal/common/logger"
)

type healthChecker interface {
	Health(ctx context.Context) (backend.Status, error)
}

func newOpsServer(addr string, backendClient healthChecker, ready *atomic.Bool, log logger.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           newOpsRouter(backendClient, ready, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newOpsRouter(backendClient healthChecker, ready *atomic.Bool, log logger.Logger) http.Handler {
	l := logger.ForComponent(log, "ops")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready.Load() {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := backendClient.Health(ctx); err != nil {
			l.Warn("backend not reachable", map[string]interface{}{"error": err.Error()})
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "backend unavailable"})
			return
		}
		writeStatus(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
