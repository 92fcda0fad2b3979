package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(ctx context.Context, ev Event) {
	r.events = append(r.events, ev)
}

func TestRecordingSink_CapturesEvent(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	sink.Emit(context.Background(), Event{Kind: EventCircuitOpen, Fields: map[string]any{"model": "vendor/m"}})

	assert.Len(t, sink.events, 1)
	assert.Equal(t, EventCircuitOpen, sink.events[0].Kind)
}

func TestNopSink_DoesNothing(t *testing.T) {
	t.Parallel()

	var s Sink = NopSink{}
	assert.NotPanics(t, func() { s.Emit(context.Background(), Event{Kind: EventModelTimeout}) })
}
