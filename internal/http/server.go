// Package http serves the payment allocation API as JSON over HTTP.
package http

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"nexus/internal/config"
	"nexus/internal/engine"
	applog "nexus/internal/log"
	"nexus/internal/narration"
	"nexus/internal/storage"
)

// Recorder stores served allocation runs and lists past ones.
type Recorder interface {
	RecordAllocation(ctx context.Context, rec storage.AllocationRecord) error
	ListRecent(ctx context.Context, limit int) ([]storage.AllocationRecord, error)
}

// Publisher announces stored allocation runs to the backfill worker.
type Publisher interface {
	PublishAllocationRecorded(ctx context.Context, allocationID, narrator string) error
}

type Server struct {
	http.Server

	engine   *engine.Engine
	strategy string
	narrator narration.Narrator
	fallback *narration.StaticNarrator
	recorder Recorder
	pub      Publisher

	rateLimiter  *rateLimiter
	logger       *applog.Logger
	shutdownOnce sync.Once
}

// NewServer configures routes and returns a ready-to-run server. Recorder and
// publisher are optional; a nil value disables persistence or events.
func NewServer(cfg *config.Config, eng *engine.Engine, narrator narration.Narrator, recorder Recorder, pub Publisher, logger *applog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    ":" + cfg.Port,
			Handler: mux,
		},
		engine:      eng,
		strategy:    cfg.AllocationStrategy,
		narrator:    narrator,
		fallback:    narration.NewStaticNarrator(),
		recorder:    recorder,
		pub:         pub,
		rateLimiter: newRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		logger:      logger.WithComponent(applog.ComponentHTTP),
	}

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v2/interestkiller", s.withMiddleware(s.handleAllocate))
	mux.HandleFunc("POST /v2/interestkiller/re-explain", s.withMiddleware(s.handleReExplain))
	mux.HandleFunc("GET /v2/interestkiller/history", s.withMiddleware(s.handleHistory))

	return s
}

// Shutdown stops the HTTP server and the rate limiter cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withMiddleware adds rate limiting, a request id, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)
		requestID := uuid.NewString()

		logger := s.logger.With(applog.FieldRequestID, requestID)
		ctx := applog.WithLogger(r.Context(), logger)
		r = r.WithContext(ctx)

		if !s.rateLimiter.allow(clientIP) {
			logger.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, errTypeRateLimited, "too many requests, slow down")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		logger.InfoContext(ctx, "Request completed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, time.Since(start).Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// clientIP extracts the client address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
