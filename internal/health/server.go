// Package health provides health check and monitoring for complaintsync.
//
// This package implements:
//   - HTTP health check endpoint (/health)
//   - Prometheus scrape endpoint (/metrics)
//   - Last-run tracking per batch driver
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"complaintsync/internal/logger"
	"complaintsync/internal/metrics"
	"complaintsync/internal/reconcile"
)

// RunStatus is the last known state of one driver.
type RunStatus struct {
	RunID    string `json:"run_id,omitempty"`
	Finished string `json:"finished"`
	Status   string `json:"status"` // "ok" or the error that ended the run
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// Status represents the application health status.
//
// This is returned by the /health endpoint for monitoring tools.
//
// Fields:
//   - Status: "healthy", or "degraded" when any driver's last run failed
//   - Uptime: How long the process has been running
//   - Runs: Last run per driver ("import", "sync")
type Status struct {
	Status string               `json:"status"`
	Uptime string               `json:"uptime"`
	Runs   map[string]RunStatus `json:"runs"`
}

// Monitor tracks the outcome of batch runs.
//
// Thread-safety:
//   - All fields are protected by RWMutex
//   - Safe for concurrent updates from the sync loop and HTTP handlers
type Monitor struct {
	startTime time.Time
	runs      map[string]RunStatus
	mu        sync.RWMutex
}

// NewMonitor creates a new health monitor with no runs recorded.
func NewMonitor() *Monitor {
	return &Monitor{
		startTime: time.Now(),
		runs:      make(map[string]RunStatus),
	}
}

// RecordRun stores the result of a finished run.
//
// This should be called:
//   - After a completed batch: RecordRun(driver, summary, nil)
//   - After a batch that could not run: RecordRun(driver, summary, err)
//
// A nil monitor ignores the call.
func (m *Monitor) RecordRun(driver string, s *reconcile.Summary, runErr error) {
	if m == nil {
		return
	}
	rs := RunStatus{Finished: time.Now().Format(time.RFC3339), Status: "ok"}
	if s != nil {
		rs.RunID = s.RunID
		rs.Inserted, rs.Updated, rs.Skipped, rs.Failed = s.Inserted, s.Updated, s.Skipped, s.Failed
	}
	if runErr != nil {
		rs.Status = runErr.Error()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[driver] = rs
}

// GetStatus returns the current health status.
func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		Status: "healthy",
		Uptime: time.Since(m.startTime).Round(time.Second).String(),
		Runs:   make(map[string]RunStatus, len(m.runs)),
	}
	for driver, rs := range m.runs {
		st.Runs[driver] = rs
		if rs.Status != "ok" {
			st.Status = "degraded"
		}
	}
	return st
}

// Drivers lists the drivers with a recorded run, sorted.
func (m *Monitor) Drivers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.runs))
	for d := range m.runs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Server is the health and metrics HTTP server.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// NewServer builds the server.
//
// Endpoints:
//   - GET /health: JSON health status
//   - GET /metrics: Prometheus exposition (only when m is non-nil)
//
// Example /health response:
//
//	{
//	  "status": "healthy",
//	  "uptime": "1h2m3s",
//	  "runs": {"sync": {"run_id": "…", "finished": "2025-05-12T15:05:00+09:00", "status": "ok", ...}}
//	}
func NewServer(monitor *Monitor, m *metrics.Metrics, port string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort("", port),
			Handler:           Handler(monitor, m),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With("component", "health"),
	}
}

// Handler returns the routing for both endpoints.
func Handler(monitor *Monitor, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := monitor.GetStatus()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	})
	if m != nil {
		mux.Handle("/metrics", m.Handler())
	}
	return mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Health check server started", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("Health check server shutdown error", "error", err)
		}
		return nil
	}
}
