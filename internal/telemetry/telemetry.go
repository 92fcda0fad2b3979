// Package telemetry implements the safety telemetry sink (§6.4): a
// non-blocking event stream for suspicious-query matches, multi-turn
// attack matches, output-validation issues, ranking-parse failures,
// ranking-manipulation detections, model timeouts, circuit-open events,
// and stage timeout/insufficient events.
package telemetry

import "context"

// EventKind enumerates the §6.4 event taxonomy.
type EventKind string

const (
	EventSuspiciousQuery       EventKind = "suspicious_query"
	EventMultiTurnAttack       EventKind = "multi_turn_attack"
	EventOutputValidation      EventKind = "output_validation"
	EventRankingParseFailure   EventKind = "ranking_parse_failure"
	EventRankingManipulation   EventKind = "ranking_manipulation"
	EventModelTimeout          EventKind = "model_timeout"
	EventCircuitOpen           EventKind = "circuit_open"
	EventStageTimeout          EventKind = "stage_timeout"
	EventStageInsufficient     EventKind = "stage_insufficient"
)

// Event is one structured telemetry record. Fields is deliberately a loose
// map rather than per-kind structs: the sink's job is to forward and
// persist, not to interpret.
type Event struct {
	Kind   EventKind
	Fields map[string]any
}

// Sink accepts telemetry events. Emit must not block the caller on slow
// downstream delivery (§6.4); implementations that need to block internally
// (e.g. a network write) must buffer and drop rather than stall Emit.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// NopSink discards every event; useful as a default when no sink is wired.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) {}
