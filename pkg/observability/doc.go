// Package observability provides structured logging and Prometheus metrics
// for the authorization pipeline.
//
// The Logger wraps log/slog with a JSON handler and chainable field helpers.
// Metrics cover HTTP traffic, role resolutions, approval and quota
// rejections, admin session validation, and identity cache effectiveness.
package observability
