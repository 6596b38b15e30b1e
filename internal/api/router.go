package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jdcarver/shiftlog/internal/auth"
	"github.com/jdcarver/shiftlog/internal/metrics"
	"github.com/jdcarver/shiftlog/internal/ratelimit"
)

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Store          ShiftStore
	Verifier       auth.TokenVerifier
	Limiter        *ratelimit.Limiter
	Metrics        *metrics.Metrics
	AllowedOrigins []string
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(secureHeaders)
	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(slogRequestLogger)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// Handlers.
	shifts := newShiftsHandler(deps.Store)
	jobs := newJobsHandler(deps.Store)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Metrics != nil {
		r.Get("/metrics", deps.Metrics.Handler())
	}

	// Portfolio routes (bearer-token authed + rate limited).
	r.Route("/api", func(ar chi.Router) {
		var authHooks []func(bool)
		var rejectHooks []func()
		if deps.Metrics != nil {
			authHooks = append(authHooks, deps.Metrics.RecordAuth)
			rejectHooks = append(rejectHooks, deps.Metrics.IncRateLimitRejection)
		}
		ar.Use(auth.Middleware(deps.Verifier, authHooks...))
		if deps.Limiter != nil {
			ar.Use(ratelimit.Middleware(deps.Limiter, rejectHooks...))
		}

		// Shifts.
		ar.Post("/LogShift", shifts.LogShift)
		ar.Post("/UpdateShift", shifts.UpdateShift)
		ar.Get("/GetShift", shifts.GetShift)
		ar.Get("/GetAllShifts", shifts.GetAllShifts)
		ar.Get("/RecentShifts", shifts.RecentShifts)

		// The portfolio client calls these with either verb.
		ar.Get("/DeleteShift", shifts.DeleteShift)
		ar.Post("/DeleteShift", shifts.DeleteShift)
		ar.Get("/UndeleteShift", shifts.UndeleteShift)
		ar.Post("/UndeleteShift", shifts.UndeleteShift)

		// Jobs.
		ar.Post("/LogJob", jobs.LogJob)
		ar.Get("/GetJobs", jobs.GetJobs)
	})

	return r
}

// slogRequestLogger is a simple structured logging middleware using slog.
func slogRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", ww.BytesWritten(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}

// metricsMiddleware records request counts and latency, labelled by the chi
// route pattern rather than the raw path.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			pattern := chi.RouteContext(r.Context()).RoutePattern()
			if pattern == "" {
				pattern = "unmatched"
			}
			m.RecordRequest(r.Method, pattern, strconv.Itoa(ww.Status()), time.Since(start).Seconds())
		})
	}
}
