package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// probe is one dependency check. A failed required probe makes the service
// unhealthy; a failed optional one only degrades it.
type probe struct {
	name     string
	required bool
	run      func(context.Context) DependencyStatus
}

// HealthChecker runs dependency probes for the readiness endpoint
type HealthChecker struct {
	probes []probe
}

// NewHealthChecker builds probes for the given dependencies. Either may be
// nil, in which case it is not probed. Postgres is required; redis backs
// caches and rate limits, so a dead redis degrades instead of failing.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	h := &HealthChecker{}
	if db != nil {
		h.probes = append(h.probes, probe{name: "postgres", required: true, run: pingPostgres(db)})
	}
	if redisClient != nil {
		h.probes = append(h.probes, probe{name: "redis", run: pingRedis(redisClient)})
	}
	return h
}

// HealthStatus is the aggregate readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the result of a single probe
type DependencyStatus struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Liveness reports 200 whenever the process can serve requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness runs every probe and reports 503 when the service is unhealthy.
// Degraded still returns 200 so the instance keeps receiving traffic.
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if status.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(status)
}

// Check runs all probes and aggregates their results
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	for _, p := range h.probes {
		dep := p.run(ctx)
		status.Dependencies[p.name] = dep

		switch {
		case dep.Status == StatusUnhealthy && p.required:
			status.Status = StatusUnhealthy
		case dep.Status != StatusHealthy && status.Status == StatusHealthy:
			status.Status = StatusDegraded
		}
	}
	return status
}

func pingPostgres(db *sql.DB) func(context.Context) DependencyStatus {
	return func(ctx context.Context) DependencyStatus {
		start := time.Now()
		dep := DependencyStatus{Status: StatusHealthy}

		if err := db.PingContext(ctx); err != nil {
			dep.Status = StatusUnhealthy
			dep.Error = err.Error()
			dep.LatencyMS = msSince(start)
			return dep
		}
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			dep.Status = StatusUnhealthy
			dep.Error = "query failed: " + err.Error()
			dep.LatencyMS = msSince(start)
			return dep
		}
		dep.LatencyMS = msSince(start)

		stats := db.Stats()
		if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
			dep.Status = StatusDegraded
			dep.Error = "connection pool exhausted"
		}
		return dep
	}
}

func pingRedis(client *redis.Client) func(context.Context) DependencyStatus {
	return func(ctx context.Context) DependencyStatus {
		start := time.Now()
		dep := DependencyStatus{Status: StatusHealthy}

		if err := client.Ping(ctx).Err(); err != nil {
			dep.Status = StatusUnhealthy
			dep.Error = err.Error()
		}
		dep.LatencyMS = msSince(start)
		return dep
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
