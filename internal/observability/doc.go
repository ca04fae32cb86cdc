// Package observability provides logging and tracing functionality
// for the authorization core.
//
// Logging is backed by zap behind the Logger interface so that
// components can be constructed with NopLogger() in tests. Tracing is
// backed by OpenTelemetry with an optional OTLP gRPC exporter; when
// disabled, spans are no-ops.
package observability
