//go:build !enterprise

package main

import (
	"council/internal/config"
	"council/internal/telemetry"
)

// buildTelemetrySink wires the safety telemetry sink for the default
// build: structured logging only. The Kafka-backed sink lives behind the
// "enterprise" build tag in telemetry_enterprise.go.
func buildTelemetrySink(cfg config.Config) telemetry.Sink {
	return telemetry.LogSink{}
}
