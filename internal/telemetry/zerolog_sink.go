package telemetry

import (
	"context"

	"council/internal/observability"
)

// LogSink is the default Sink: it writes every event through the
// request's contextual zerolog.Logger (observability.LoggerWithTrace) at
// Warn, matching the level the teacher's own degraded-operation events
// use. It never blocks: Emit logs synchronously, which is safe because
// zerolog's writer itself does not block on a slow consumer the way a
// network sink would.
type LogSink struct{}

// Emit implements Sink.
func (LogSink) Emit(ctx context.Context, ev Event) {
	logger := observability.LoggerWithTrace(ctx)
	event := logger.Warn().Str("event_kind", string(ev.Kind))
	for k, v := range ev.Fields {
		event = event.Interface(k, v)
	}
	event.Msg("safety_telemetry")
}
