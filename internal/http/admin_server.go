package http

// admin endpoints of the invoker daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hackohio/invoker/pkg/invoker"
)

// MetricsSource is implemented by *invoker.Invoker.
type MetricsSource interface {
	Metrics() invoker.Metrics
	Mode() invoker.Mode
}

type Server struct {
	Addr   string
	router *mux.Router
	source MetricsSource
	logger invoker.Logger
	srv    *http.Server
}

func NewServer(addr string, source MetricsSource, logger invoker.Logger) *Server {
	s := &Server{
		Addr:   addr,
		source: source,
		logger: logger,
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.Health).Methods("GET")
	r.HandleFunc("/metrics", s.MetricsHandler).Methods("GET")
	s.router = r
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A clean Shutdown, including
// one that happened before this call, returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("admin server listening", "addr", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down admin server")
	return s.srv.Shutdown(ctx)
}

// Health handles GET /healthz
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"mode":   s.source.Mode().String(),
	})
}

// MetricsHandler handles GET /metrics
func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Metrics())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
