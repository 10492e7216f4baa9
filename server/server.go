// Package server exposes the bridge's HTTP surface: health and readiness
// probes, status, scene autocomplete, Prometheus metrics and a small admin API
// (audit log, moderator list, forced scene refresh). It injects correlation
// IDs into request contexts for consistent logging.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/streamcast/telemetry"
)

// NewMux returns the HTTP handler with all routes.
// The provided context is used for rate limiter cleanup goroutines lifecycle.
func NewMux(ctx context.Context, opts Options) http.Handler {
	authCfg := loadAuthConfig()
	rateLimiter := newIPRateLimiter(ctx, loadRateLimiterConfig())

	handlers := NewHandlers(opts)

	router := mux.NewRouter()

	// Metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Health and readiness endpoints
	router.HandleFunc("/healthz", handlers.HandleHealthz)
	router.HandleFunc("/readyz", handlers.HandleReadyz).Methods(http.MethodGet)

	// Status and autocomplete
	router.HandleFunc("/status", handlers.HandleStatus).Methods(http.MethodGet)
	router.HandleFunc("/scenes", handlers.HandleScenes).Methods(http.MethodGet)

	// Admin endpoints: rate limiting first so failed logins count, then auth.
	admin := router.PathPrefix("/admin").Subrouter()
	admin.Use(func(next http.Handler) http.Handler {
		return rateLimitMiddleware(adminAuth(next, authCfg), rateLimiter)
	})
	admin.HandleFunc("/audit", handlers.HandleAdminAudit).Methods(http.MethodGet)
	admin.HandleFunc("/moderators", handlers.HandleAdminModerators).Methods(http.MethodGet)
	admin.HandleFunc("/scenes/refresh", handlers.HandleAdminSceneRefresh).Methods(http.MethodPost)

	// Wrap with correlation ID injector and tracing middleware
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Reuse corr header if provided else generate
		corr := req.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(req.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", req.Method+" "+req.URL.Path, telemetry.HTTPAttrs(req.Method, req.URL.Path)...)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start", slog.String("method", req.Method), slog.String("path", req.URL.Path), slog.String("component", "http"))

		wrappedWriter := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		router.ServeHTTP(wrappedWriter, req.WithContext(ctx))

		telemetry.SetSpanHTTPStatus(span, wrappedWriter.statusCode)
	})
}

// statusRecorder wraps ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, opts Options, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(ctx, opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Shutdown goroutine
	go func() {
		<-ctx.Done()
		// Use WithoutCancel to inherit context values but allow shutdown to complete
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	slog.Info("http server listening", slog.String("addr", addr), slog.String("component", "http"))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
