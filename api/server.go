// Package api exposes the orchestrator and history over HTTP.
//
// Routes:
//
//	POST   /api/generate       generate or edit; saves history for identified users
//	GET    /api/history        list the caller's history, newest first
//	POST   /api/history        save a client-supplied history item
//	DELETE /api/history        clear the caller's history
//	DELETE /api/history/{id}   delete one item
//	GET    /healthz
//	GET    /metrics            Prometheus exposition (when a gatherer is set)
//
// Callers are identified by the X-User-ID header, set by an authenticating proxy.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mhpenta/imagestudio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// UserIDHeader carries the authenticated user id.
const UserIDHeader = "X-User-ID"

// DefaultMaxBodyBytes bounds request bodies; a 20MB image is ~27MB as base64.
const DefaultMaxBodyBytes = 32 << 20

// Generator is the subset of the orchestrator used by the API.
type Generator interface {
	GenerateOrEdit(ctx context.Context, prompt string, source *imagestudio.ImageRef, size imagestudio.ImageSize, opts ...imagestudio.CallOption) (*imagestudio.GenerationResult, error)
}

var _ Generator = (*imagestudio.Orchestrator)(nil)

// Server serves the HTTP API.
type Server struct {
	generator    Generator
	history      imagestudio.HistoryRecorder
	gatherer     prometheus.Gatherer
	logger       *slog.Logger
	maxBodyBytes int64
	now          func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGatherer exposes metrics from g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates a Server.
func NewServer(generator Generator, history imagestudio.HistoryRecorder, opts ...Option) *Server {
	s := &Server{
		generator:    generator,
		history:      history,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/history", s.requireUser(s.handleListHistory))
	mux.HandleFunc("POST /api/history", s.requireUser(s.handleSaveHistory))
	mux.HandleFunc("DELETE /api/history", s.requireUser(s.handleClearHistory))
	mux.HandleFunc("DELETE /api/history/{id}", s.requireUser(s.handleDeleteHistory))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.logRequests(mux)
}

type userKey struct{}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// requireUser rejects requests without a user id and stores it in the context.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			writeError(w, http.StatusUnauthorized, imagestudio.ErrorInfo{Kind: kindUnauthorized, Message: "missing " + UserIDHeader})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
