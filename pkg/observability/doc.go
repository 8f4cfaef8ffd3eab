// Package observability provides structured logging, Prometheus metrics,
// health probes, OpenTelemetry initialization, and graceful shutdown
// coordination for the TradeGate service.
//
// Logging uses stdlib slog with a JSON handler. Metrics are registered on a
// caller-supplied prometheus.Registry so tests can use isolated registries.
// Health checks expose liveness (process up) and readiness (database plus
// optional Redis) probes, intended to be served on a separate port from the
// API itself.
package observability
