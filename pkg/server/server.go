// Package server hosts the shared HTTP router that the dispatch core,
// channel webhooks, and history API all mount on.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"botgate/pkg/config"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 8090
)

// Server wraps a chi router with lifecycle management and the health
// surface.
type Server struct {
	cfg    config.GatewayConfig
	log    *slog.Logger
	router chi.Router

	mu        sync.RWMutex
	startedAt time.Time
}

// New builds the router with the standard middleware stack.
func New(cfg config.GatewayConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg: cfg,
		log: log.With("component", "server"),
	}
	s.router = s.buildRouter()

	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	return r
}

// Router returns the shared router for registering additional routes.
// All registration must happen before Run is called.
func (s *Server) Router() chi.Router { return s.router }

// Run listens until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	host := strings.TrimSpace(s.cfg.Host)
	if host == "" {
		host = defaultHost
	}
	port := s.cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	addr := host + ":" + strconv.Itoa(port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway server started", "address", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start gateway server: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	if startedAt.IsZero() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
