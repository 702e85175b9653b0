// Package health provides the watch daemon's health and metrics endpoint.
//
// This package implements:
//   - GET /health: JSON status of the last watch cycle
//   - GET /metrics: Prometheus metrics
//   - Request logging through zerolog
package health

import (
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// unhealthyAfter is the number of consecutive failed cycles after which
// /health answers 503.
const unhealthyAfter = 3

// Status is returned by the /health endpoint.
//
// Fields:
//   - Status: "healthy", "degraded" (last cycle failed) or "unhealthy"
//   - Uptime: How long the daemon has been running
//   - LastCycleTime: When the last watch cycle finished
//   - LastCycleStatus: "success", "not started" or the error text
//   - Cycles: Number of finished cycles
//   - ConsecutiveFailures: Failed cycles since the last success
type Status struct {
	Status              string `json:"status"`
	Uptime              string `json:"uptime"`
	LastCycleTime       string `json:"last_cycle_time"`
	LastCycleStatus     string `json:"last_cycle_status"`
	Cycles              int    `json:"cycles"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// Monitor tracks the outcome of watch cycles.
//
// Thread-safety:
//   - All fields are protected by RWMutex
type Monitor struct {
	startTime       time.Time
	lastCycleTime   time.Time
	lastCycleStatus string
	cycles          int
	failures        int
	mu              sync.RWMutex
}

// NewMonitor creates a new health monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime:       time.Now(),
		lastCycleStatus: "not started",
	}
}

// RecordCycle records the outcome of one watch cycle. A nil err is a
// success and resets the failure streak.
func (m *Monitor) RecordCycle(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCycleTime = time.Now()
	m.cycles++
	if err != nil {
		m.failures++
		m.lastCycleStatus = err.Error()
		return
	}
	m.failures = 0
	m.lastCycleStatus = "success"
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Status:              "healthy",
		Uptime:              time.Since(m.startTime).Round(time.Second).String(),
		LastCycleStatus:     m.lastCycleStatus,
		Cycles:              m.cycles,
		ConsecutiveFailures: m.failures,
	}
	if !m.lastCycleTime.IsZero() {
		st.LastCycleTime = m.lastCycleTime.Format("2006-01-02 15:04:05")
	}
	switch {
	case m.failures >= unhealthyAfter:
		st.Status = "unhealthy"
	case m.failures > 0:
		st.Status = "degraded"
	}
	return st
}

// requestLogger logs every request with its status and duration.
func requestLogger(log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			start := time.Now()
			defer func() {
				log.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("ip", r.RemoteAddr).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Router builds the health and metrics routes.
//
// Example /health response:
//
//	{
//	  "status": "healthy",
//	  "uptime": "1h2m3s",
//	  "last_cycle_time": "2026-01-15 10:30:00",
//	  "last_cycle_status": "success",
//	  "cycles": 62,
//	  "consecutive_failures": 0
//	}
func Router(monitor *Monitor, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := monitor.GetStatus()

		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// StartServer starts the health server in the background and returns it
// so the caller can shut it down.
//
// Parameters:
//   - monitor: Health monitor to query for status
//   - port: Port to listen on (e.g., "8081")
//   - log: Logger for startup, errors and requests
func StartServer(monitor *Monitor, port string, log zerolog.Logger) *http.Server {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           Router(monitor, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("health server started")
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()
	return srv
}
