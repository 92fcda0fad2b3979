package council

import (
	"context"

	"council/internal/telemetry"
)

// telemetrySink adapts telemetry.Sink's typed EventKind/Event pair to the
// loose (kind string, fields map) shape the stage orchestrators build
// events with inline, without forcing every call site to import
// internal/telemetry directly.
type telemetrySink struct {
	sink telemetry.Sink
}

// newTelemetrySink wraps sink; a nil sink is replaced with telemetry.NopSink.
func newTelemetrySink(sink telemetry.Sink) telemetrySink {
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	return telemetrySink{sink: sink}
}

func (t telemetrySink) emit(ctx context.Context, kind string, fields map[string]any) {
	t.sink.Emit(ctx, telemetry.Event{Kind: telemetry.EventKind(kind), Fields: fields})
}
