// Package telemetry wires OpenTelemetry tracing and metrics for specd.
//
// Telemetry is off by default. When enabled, traces and metrics are exported
// over OTLP (grpc or http/protobuf). Exporter failures never stop the
// service: the instance is marked degraded and the global no-op providers
// stay in place.
package telemetry
