package council

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council/internal/config"
	"council/internal/llm"
)

func newMultiplexerClient(scripts map[llm.ModelID][]llm.FakeChunk) *llm.Client {
	transport := llm.NewFakeTransport(scripts)
	dispatch := llm.NewDispatch(transport, nil, nil)
	breakers := llm.NewBreakerRegistry(llm.DefaultBreakerConfig(), nil)
	return llm.NewClient(dispatch, breakers, config.Config{MaxRetries: 0}, nil)
}

func collect(ch <-chan MultiplexEvent) []MultiplexEvent {
	var events []MultiplexEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestMultiplexer_AllSucceed(t *testing.T) {
	t.Parallel()

	client := newMultiplexerClient(map[llm.ModelID][]llm.FakeChunk{
		"vendor/a": {{Text: "hi"}, {Done: true}},
		"vendor/b": {{Text: "lo"}, {Done: true}},
	})
	mux := NewMultiplexer(client)

	plan := StagePlan{
		Stage:            "stage1",
		Models:           []llm.ModelID{"vendor/a", "vendor/b"},
		StageDeadline:    time.Second,
		PerModelDeadline: time.Second,
		MinRequired:      2,
		QueueCap:         16,
	}
	events := collect(mux.Run(context.Background(), plan))

	last := events[len(events)-1]
	all, ok := last.(StageAllComplete)
	require.True(t, ok, "expected StageAllComplete, got %T", last)
	assert.Len(t, all.Results, 2)
}

func TestMultiplexer_InsufficientBelowThreshold(t *testing.T) {
	t.Parallel()

	client := newMultiplexerClient(map[llm.ModelID][]llm.FakeChunk{
		"vendor/a": {{Text: "hi"}, {Done: true}},
		"vendor/b": {{ErrMsg: "bad request", ErrCode: 400, Retryable: false}},
	})
	mux := NewMultiplexer(client)

	plan := StagePlan{
		Stage:            "stage1",
		Models:           []llm.ModelID{"vendor/a", "vendor/b"},
		StageDeadline:    time.Second,
		PerModelDeadline: time.Second,
		MinRequired:      2,
		QueueCap:         16,
	}
	events := collect(mux.Run(context.Background(), plan))

	last := events[len(events)-1]
	insufficient, ok := last.(StageInsufficient)
	require.True(t, ok, "expected StageInsufficient, got %T", last)
	assert.Equal(t, 1, insufficient.Received)
	assert.Equal(t, 2, insufficient.Required)
}

func TestMultiplexer_StageDeadlineExceeded(t *testing.T) {
	t.Parallel()

	client := newMultiplexerClient(map[llm.ModelID][]llm.FakeChunk{
		"vendor/slow": {{Text: "x", Delay: 200 * time.Millisecond}, {Done: true}},
	})
	mux := NewMultiplexer(client)

	plan := StagePlan{
		Stage:            "stage1",
		Models:           []llm.ModelID{"vendor/slow"},
		StageDeadline:    20 * time.Millisecond,
		PerModelDeadline: time.Second,
		MinRequired:      1,
		QueueCap:         16,
	}
	events := collect(mux.Run(context.Background(), plan))

	last := events[len(events)-1]
	timeout, ok := last.(StageTimeout)
	require.True(t, ok, "expected StageTimeout, got %T", last)
	assert.Equal(t, 1, timeout.Total)
}

func TestMultiplexer_CallerCancellationEmitsNoFinalEvent(t *testing.T) {
	t.Parallel()

	client := newMultiplexerClient(map[llm.ModelID][]llm.FakeChunk{
		"vendor/slow": {{Text: "x", Delay: 500 * time.Millisecond}, {Done: true}},
	})
	mux := NewMultiplexer(client)

	ctx, cancel := context.WithCancel(context.Background())
	plan := StagePlan{
		Stage:            "stage1",
		Models:           []llm.ModelID{"vendor/slow"},
		StageDeadline:    time.Second,
		PerModelDeadline: time.Second,
		MinRequired:      1,
		QueueCap:         16,
	}
	ch := mux.Run(ctx, plan)
	time.Sleep(10 * time.Millisecond)
	cancel()

	events := collect(ch)
	for _, ev := range events {
		_, isAllComplete := ev.(StageAllComplete)
		assert.False(t, isAllComplete, "no StageAllComplete should be emitted on caller cancellation")
	}
}

func TestMultiplexer_ModelStartedPrecedesTokens(t *testing.T) {
	t.Parallel()

	client := newMultiplexerClient(map[llm.ModelID][]llm.FakeChunk{
		"vendor/a": {{Text: "hi"}, {Done: true}},
	})
	mux := NewMultiplexer(client)

	plan := StagePlan{
		Stage:            "stage1",
		Models:           []llm.ModelID{"vendor/a"},
		StageDeadline:    time.Second,
		PerModelDeadline: time.Second,
		MinRequired:      1,
		QueueCap:         16,
	}
	events := collect(mux.Run(context.Background(), plan))

	require.NotEmpty(t, events)
	started, ok := events[0].(ModelStarted)
	require.True(t, ok, "expected ModelStarted first, got %T", events[0])
	assert.Equal(t, llm.ModelID("vendor/a"), started.Model)
}
