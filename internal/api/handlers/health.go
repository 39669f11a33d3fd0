package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type SchemaVersioner interface {
	SchemaVersion(ctx context.Context) (version int64, dirty bool, err error)
}

// BrokerStatus reports whether the notification broker connection is up.
type BrokerStatus interface {
	Healthy() bool
}

// HealthChecker runs the readiness checks behind /health.
type HealthChecker struct {
	db        Pinger
	schema    SchemaVersioner
	broker    BrokerStatus
	version   string
	gitCommit string
	timeout   time.Duration
}

// NewHealthChecker creates a health checker. broker may be nil when
// notifications are not configured.
func NewHealthChecker(db Pinger, schema SchemaVersioner, broker BrokerStatus, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		db:        db,
		schema:    schema,
		broker:    broker,
		version:   version,
		gitCommit: gitCommit,
		timeout:   2 * time.Second,
	}
}

// Health returns a comprehensive health check handler
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			respondHealth(w, http.StatusServiceUnavailable, "shutting_down")
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := h.Run(ctx)

		overallStatus := "healthy"
		statusCode := http.StatusOK
		for _, check := range checks {
			if check.Status == "fail" {
				overallStatus = "unhealthy"
				statusCode = http.StatusServiceUnavailable
				break
			} else if check.Status == "warn" {
				overallStatus = "degraded"
			}
		}

		response := HealthCheck{
			Status:    overallStatus,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Run executes every check concurrently. Each check gets its own timeout so
// a slow one cannot starve the others.
func (h *HealthChecker) Run(ctx context.Context) map[string]CheckResult {
	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, 3)
	)
	record := func(name string, result CheckResult) {
		mu.Lock()
		checks[name] = result
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record("database", h.checkDatabase(gctx))
		return nil
	})
	g.Go(func() error {
		record("migrations", h.checkMigrations(gctx))
		return nil
	})
	g.Go(func() error {
		record("notifications", h.checkBroker())
		return nil
	})
	_ = g.Wait()
	return checks
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{
			Status:  "fail",
			Message: "Database client not initialized",
			Details: map[string]any{"remediation": "Check that MONGODB_URI is set and MongoDB is running"},
		}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.db.Ping(dbCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database ping failed"
		details := map[string]any{"error": err.Error()}
		switch {
		case errors.Is(dbCtx.Err(), context.DeadlineExceeded):
			message = fmt.Sprintf("Database ping timed out after %s", h.timeout)
			details["remediation"] = "Check MongoDB load and network latency"
		case strings.Contains(err.Error(), "connection refused"):
			message = "Database connection refused"
			details["remediation"] = "Verify MongoDB is running and the MONGODB_URI host and port are correct"
		case strings.Contains(err.Error(), "auth"):
			message = "Database authentication failed"
			details["remediation"] = "Verify the MONGODB_URI credentials"
		default:
			details["remediation"] = "Check MONGODB_URI and the MongoDB service status"
		}
		return CheckResult{Status: "fail", Message: message, LatencyMs: latency, Details: details}
	}

	return CheckResult{Status: "pass", Message: "MongoDB connection successful", LatencyMs: latency}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.schema == nil {
		return CheckResult{Status: "fail", Message: "Database client not initialized"}
	}

	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	version, dirty, err := h.schema.SchemaVersion(migCtx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to read migration version",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "Run migrations first: server migrate up",
			},
		}
	}
	if version == 0 {
		return CheckResult{
			Status:    "fail",
			Message:   "No migrations applied",
			LatencyMs: latency,
			Details:   map[string]any{"remediation": "Run migrations first: server migrate up"},
		}
	}
	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details: map[string]any{
				"version": version,
				"dirty":   true,
				"action":  "Do NOT run new migrations until this is resolved",
			},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version, "dirty": false},
	}
}

func (h *HealthChecker) checkBroker() CheckResult {
	if h.broker == nil {
		return CheckResult{Status: "pass", Message: "Notifications disabled"}
	}
	if !h.broker.Healthy() {
		return CheckResult{
			Status:  "warn",
			Message: "Notification broker unreachable; notices are being dropped",
			Details: map[string]any{"remediation": "Check AMQP_URL and the RabbitMQ service status"},
		}
	}
	return CheckResult{Status: "pass", Message: "Notification broker connected"}
}

// Healthz returns a lightweight liveness response
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondHealth(w, http.StatusOK, "ok")
	})
}

// Readyz answers ready only while the database responds.
func Readyz(db Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				respondHealth(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		respondHealth(w, http.StatusOK, "ready")
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

func respondHealth(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthResponse{Status: value})
}
