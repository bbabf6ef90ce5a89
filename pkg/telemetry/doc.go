// Package telemetry groups the observability subsystems: structured
// logging setup and Prometheus metrics.
package telemetry
