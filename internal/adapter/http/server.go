package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/drought-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/drought-dashboard/internal/domain"
	"github.com/couchcryptid/drought-dashboard/internal/insight"
	"github.com/couchcryptid/drought-dashboard/internal/poller"
	"github.com/couchcryptid/drought-dashboard/internal/query"
	"github.com/couchcryptid/drought-dashboard/internal/store"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresher syncs the store with the backend on demand and reports readiness.
type Refresher interface {
	sharedobs.ReadinessChecker
	Refresh(ctx context.Context) poller.Result
}

// InsightController drives the advisory drawer.
type InsightController interface {
	Open(v domain.Village, lang domain.Language)
	SetLanguage(lang domain.Language)
	Close()
	State() insight.State
}

// ChatSession is the assistant conversation.
type ChatSession interface {
	Send(ctx context.Context, text string) ([]domain.ChatMessage, error)
	History() []domain.ChatMessage
}

// Deps are the components the API serves.
type Deps struct {
	Store     *store.Store
	Poller    Refresher
	Insight   InsightController
	Forecasts backend.Forecaster
	Chat      ChatSession
	PageSize  int
}

// Options controls the listener and cross-origin access.
type Options struct {
	Addr           string
	AllowedOrigins []string
	// RefreshTimeout bounds a manual refresh, which outlives the request that
	// started it. Zero leaves it to the backend client's own timeouts.
	RefreshTimeout time.Duration
}

// Server exposes the dashboard API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	opts       Options
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(opts Options, deps Deps, logger *slog.Logger) *Server {
	if deps.PageSize < 1 {
		deps.PageSize = query.DefaultPageSize
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        opts.Addr,
			ReadTimeout: 10 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		deps:   deps,
		opts:   opts,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Poller))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/villages", s.handleVillages)
	mux.HandleFunc("GET /api/villages/export.csv", s.handleExport)
	mux.HandleFunc("GET /api/villages/{id}/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/allocation", s.handleAllocation)
	mux.HandleFunc("GET /api/incidents", s.handleIncidents)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/insight", s.handleInsightState)
	mux.HandleFunc("PUT /api/insight", s.handleInsightOpen)
	mux.HandleFunc("DELETE /api/insight", s.handleInsightClose)
	mux.HandleFunc("GET /api/chat", s.handleChatHistory)
	mux.HandleFunc("POST /api/chat", s.handleChatSend)

	s.httpServer.Handler = s.middleware(mux)
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// middleware wraps h with panic recovery, CORS, and request logging.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = handlers.CustomLoggingHandler(io.Discard, h, func(_ io.Writer, p handlers.LogFormatterParams) {
		s.logger.Debug("http request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"bytes", p.Size,
			"duration", time.Since(p.TimeStamp),
		)
	})
	if len(s.opts.AllowedOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.opts.AllowedOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}
	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError)),
	)(h)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorText is the user-facing message for a resource error, or "" when err
// is nil.
func errorText(err error, fallback string) string {
	if err == nil {
		return ""
	}
	return backend.UserMessage(err, fallback)
}
