// Package tracer configures the OpenTelemetry tracer provider.
//
// Spans are exported to stdout (development) or to an OTLP/gRPC collector.
// When tracing is disabled the global no-op provider stays in place, so
// instrumented code never needs to check.
package tracer
