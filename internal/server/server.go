// Package server provides the HTTP API for job extraction.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jonathan/job-extractor/internal/backend"
	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/logging"
	"github.com/jonathan/job-extractor/internal/messaging"
	"github.com/jonathan/job-extractor/internal/server/middleware"
	"github.com/jonathan/job-extractor/internal/server/ratelimit"
)

// PageLoader opens pages for extraction. *fetch.Loader implements it.
type PageLoader interface {
	Load(ctx context.Context, location string, render bool) (fetch.Page, error)
	Release(ctx context.Context, page fetch.Page)
	CanRender() bool
}

// ExtractionStore records extraction history. *db.DB implements it.
type ExtractionStore interface {
	RecordExtraction(ctx context.Context, e *db.Extraction) error
	GetExtraction(ctx context.Context, id uuid.UUID) (*db.Extraction, error)
	ListExtractions(ctx context.Context, filters db.ExtractionFilters) ([]db.Extraction, error)
	Ping(ctx context.Context) error
}

// Relay forwards jobs to the matching backend. *backend.Client implements it.
type Relay interface {
	Match(ctx context.Context, req backend.MatchRequest) (*backend.MatchResponse, error)
	GenerateCoverLetter(ctx context.Context, req backend.CoverLetterRequest) (*backend.CoverLetterResponse, error)
}

// Config holds server configuration
type Config struct {
	Port         int
	RateLimit    float64
	RateBurst    int
	CORSOrigins  []string
	MaxBodyBytes int64
	Render       bool // default for requests that do not say
	Concurrency  int  // parallel extractions per stream request
}

// Deps are the collaborators a Server uses. Store and Relay may be nil.
type Deps struct {
	Handler *messaging.Handler
	Loader  PageLoader
	Store   ExtractionStore
	Relay   Relay
	Logger  *slog.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	cfg         Config
	handler     *messaging.Handler
	loader      PageLoader
	store       ExtractionStore
	relay       Relay
	rateLimiter *ratelimit.Limiter
	logger      *slog.Logger
	validate    *validator.Validate
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Handler == nil || deps.Loader == nil {
		return nil, errors.New("server requires a message handler and a page loader")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	s := &Server{
		cfg:         cfg,
		handler:     deps.Handler,
		loader:      deps.Loader,
		store:       deps.Store,
		relay:       deps.Relay,
		rateLimiter: ratelimit.NewLimiter(ratelimit.NewConfig(cfg.RateLimit, cfg.RateBurst)),
		logger:      logger,
		validate:    v,
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute, // rendered batches stream for a while
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /profiles", s.handleProfiles)
	mux.HandleFunc("POST /messages", s.handleMessages)
	mux.HandleFunc("POST /extract/stream", s.handleExtractStream)
	mux.HandleFunc("POST /match", s.handleMatch)
	mux.HandleFunc("POST /cover-letter", s.handleCoverLetter)
	mux.HandleFunc("GET /extractions", s.handleListExtractions)
	mux.HandleFunc("GET /extractions/{id}", s.handleGetExtraction)

	var h http.Handler = mux
	h = s.withRateLimit(h)
	h = middleware.CORS(s.cfg.CORSOrigins)(h)
	h = middleware.Recover(h)
	h = middleware.Logging(h)
	h = middleware.RequestID(s.logger)(h)
	return h
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.rateLimiter.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", ln.Addr().String(), "render", s.loader.CanRender())
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientID identifies the caller by remote IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		secs := max(1, int(info.RetryAfter.Round(time.Second).Seconds()))
		response["retry_after"] = secs
		w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	}

	logging.FromContext(r.Context()).Warn("rate limit exceeded", "client", clientID(r), "path", r.URL.Path, "limit", info.Limit)
	s.jsonResponse(w, r, http.StatusTooManyRequests, response)
}

// decode reads a JSON body bounded by MaxBodyBytes and validates it. On
// failure it writes the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.writeError(w, r, err)
			return false
		}
		s.writeError(w, r, &ErrValidation{Field: "(body)", Message: "invalid JSON: " + err.Error()})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, r, validationError(err))
		return false
	}
	return true
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.FromContext(r.Context()).Error("failed to encode JSON response", "error", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.jsonResponse(w, r, status, map[string]string{"error": message})
}

// writeError maps err to a status and writes it.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "status", status, "error", err)
	}
	s.errorResponse(w, r, status, err.Error())
}
