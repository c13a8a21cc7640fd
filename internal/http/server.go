// Package http exposes the JSON API: prompt submission, record CRUD,
// calendar summaries and the export download.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"spendlog/internal/backend"
	"spendlog/internal/cache"
	"spendlog/internal/services"
)

// summaryTimeout bounds a single summary computation so a slow store
// cannot hang the endpoint.
const summaryTimeout = 7 * time.Second

type Server struct {
	http.Server
	store    backend.Backend
	pipeline *services.Pipeline

	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Summary responses are cached as marshaled JSON. The generation
	// counter is part of every key, so a write invalidates the whole
	// cache at once without enumerating keys.
	summaryCache *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	generation   atomic.Int64
	flight       singleflight.Group

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, store backend.Backend, pipeline *services.Pipeline) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        store,
		pipeline:     pipeline,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		summaryCache: cache.NewLRUCache[[]byte](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/prompts", s.withAPI(s.handlePromptSubmit))
	mux.HandleFunc("GET /api/pipeline", s.withAPI(s.handlePipelineStatus))

	mux.HandleFunc("GET /api/records", s.withAPI(s.handleListRecords))
	mux.HandleFunc("POST /api/records", s.withAPI(s.handleCreateRecord))
	mux.HandleFunc("PUT /api/records/{id}", s.withAPI(s.handleUpdateRecord))
	mux.HandleFunc("DELETE /api/records/{id}", s.withAPI(s.handleDeleteRecord))
	mux.HandleFunc("POST /api/records/delete", s.withAPI(s.handleDeleteBatch))

	mux.HandleFunc("GET /api/summary/categories", s.withAPI(s.handleSummaryCategories))
	mux.HandleFunc("GET /api/summary/daily", s.withAPI(s.handleSummaryDaily))
	mux.HandleFunc("GET /api/summary/series", s.withAPI(s.handleSummarySeries))
	mux.HandleFunc("GET /api/summary/counts", s.withAPI(s.handleSummaryCounts))

	mux.HandleFunc("GET /api/export", s.withAPI(s.handleExport))
	mux.HandleFunc("POST /api/import", s.withAPI(s.handleImport))

	mux.HandleFunc("GET /api/diagnostics", s.withAPI(s.handleDiagnostics))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// invalidateSummaries makes every cached summary stale after a write.
func (s *Server) invalidateSummaries() {
	s.generation.Add(1)
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// withAPI adds security headers, rate limiting on mutating methods, and
// request logging.
func (s *Server) withAPI(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if detectSuspiciousRequest(r, s.metrics) {
			slog.WarnContext(ctx, "Suspicious request blocked",
				"request_id", requestID,
				"client_ip", clientIP,
				"url", r.URL.String())
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// requestIDKey is the context key for the per-request trace id.
type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListAll(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
