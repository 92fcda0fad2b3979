//go:build enterprise

package main

import (
	"council/internal/config"
	"council/internal/telemetry"
)

// buildTelemetrySink wires the Kafka-backed safety telemetry sink when
// KAFKA_BROKERS is configured, falling back to structured logging
// otherwise.
func buildTelemetrySink(cfg config.Config) telemetry.Sink {
	if !cfg.Kafka.Enabled {
		return telemetry.LogSink{}
	}
	return telemetry.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, 1000)
}
