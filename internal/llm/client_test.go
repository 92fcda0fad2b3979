package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council/internal/config"
)

// fakeTransport replays a fixed sequence of rawChunk scripts, one per call,
// so retry behavior can be exercised deterministically.
type fakeTransport struct {
	scripts [][]rawChunk
	calls   int
}

func (f *fakeTransport) Stream(ctx context.Context, model ModelID, msgs []Message, params Params) (<-chan rawChunk, error) {
	script := f.scripts[f.calls]
	f.calls++
	ch := make(chan rawChunk, len(script))
	for _, c := range script {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func testConfig() config.Config {
	return config.Config{MaxRetries: 3}
}

func drain(ch <-chan StreamEvent) []StreamEvent {
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestClient_HappyPath(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{scripts: [][]rawChunk{
		{
			{kind: rawContent, content: "hel"},
			{kind: rawContent, content: "lo"},
			{kind: rawUsage, usage: Usage{PromptTokens: 10, CompletionTokens: 2}},
			{kind: rawDone},
		},
	}}
	dispatch := NewDispatch(transport, nil, nil)
	breakers := NewBreakerRegistry(DefaultBreakerConfig(), nil)
	client := NewClient(dispatch, breakers, testConfig(), nil)

	events := drain(client.Call(context.Background(), ModelID("openrouter/m"), []Message{{Role: RoleUser, Content: "hi"}}, Params{}))

	require.Len(t, events, 4)
	assert.Equal(t, Token{ModelID: "openrouter/m", Text: "hel"}, events[0])
	assert.Equal(t, Token{ModelID: "openrouter/m", Text: "lo"}, events[1])
	_, ok := events[2].(Usage)
	require.True(t, ok)
	complete, ok := events[3].(ModelComplete)
	require.True(t, ok)
	assert.Equal(t, "hello", complete.Content)
	require.NotNil(t, complete.Usage)
	assert.Equal(t, 10, complete.Usage.PromptTokens)
}

func TestClient_RetriesRetryableErrorThenSucceeds(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{scripts: [][]rawChunk{
		{{kind: rawError, errCode: 503, errMessage: "internal server error", retryable: true}},
		{
			{kind: rawContent, content: "ok"},
			{kind: rawDone},
		},
	}}
	dispatch := NewDispatch(transport, nil, nil)
	breakers := NewBreakerRegistry(DefaultBreakerConfig(), nil)
	client := NewClient(dispatch, breakers, testConfig(), nil)

	events := drain(client.Call(context.Background(), ModelID("openrouter/m"), nil, Params{}))

	require.Len(t, events, 2)
	assert.Equal(t, 2, transport.calls)
	complete, ok := events[1].(ModelComplete)
	require.True(t, ok)
	assert.Equal(t, "ok", complete.Content)
}

func TestClient_NonRetryableErrorTerminatesAndRecordsFailure(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{scripts: [][]rawChunk{
		{{kind: rawError, errCode: 400, errMessage: "bad request", retryable: false}},
	}}
	dispatch := NewDispatch(transport, nil, nil)
	breakers := NewBreakerRegistry(BreakerConfig{Failures: 1, Window: time.Minute, Cooldown: time.Minute}, nil)
	client := NewClient(dispatch, breakers, testConfig(), nil)

	events := drain(client.Call(context.Background(), ModelID("openrouter/m"), nil, Params{}))

	require.Len(t, events, 1)
	modelErr, ok := events[0].(ModelError)
	require.True(t, ok)
	assert.Equal(t, ErrorUpstream, modelErr.Kind)

	allowed, _ := breakers.CanExecute(ModelID("openrouter/m"))
	assert.True(t, allowed, "a single failure below threshold should not open the circuit")
}

func TestClient_TruncatedEmitsBeforeComplete(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{scripts: [][]rawChunk{
		{
			{kind: rawContent, content: "partial"},
			{kind: rawTruncated},
			{kind: rawDone},
		},
	}}
	dispatch := NewDispatch(transport, nil, nil)
	breakers := NewBreakerRegistry(DefaultBreakerConfig(), nil)
	client := NewClient(dispatch, breakers, testConfig(), nil)

	events := drain(client.Call(context.Background(), ModelID("openrouter/m"), nil, Params{}))

	require.Len(t, events, 3)
	_, ok := events[1].(Truncated)
	require.True(t, ok)
	complete, ok := events[2].(ModelComplete)
	require.True(t, ok)
	assert.Equal(t, "partial", complete.Content)
}

func TestClient_OpenCircuitRejectsImmediately(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{scripts: [][]rawChunk{{}}}
	dispatch := NewDispatch(transport, nil, nil)
	breakers := NewBreakerRegistry(BreakerConfig{Failures: 1, Window: time.Minute, Cooldown: time.Minute}, nil)
	model := ModelID("openrouter/m")
	breakers.RecordFailure(model)

	client := NewClient(dispatch, breakers, testConfig(), nil)
	events := drain(client.Call(context.Background(), model, nil, Params{}))

	require.Len(t, events, 1)
	modelErr, ok := events[0].(ModelError)
	require.True(t, ok)
	assert.Equal(t, ErrorUnavailable, modelErr.Kind)
	assert.Equal(t, 0, transport.calls, "transport must not be invoked while the circuit is open")
}

func TestClient_CancellationStopsEmission(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{scripts: [][]rawChunk{{}}}
	dispatch := NewDispatch(transport, nil, nil)
	breakers := NewBreakerRegistry(DefaultBreakerConfig(), nil)
	client := NewClient(dispatch, breakers, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := drain(client.Call(ctx, ModelID("openrouter/m"), nil, Params{}))
	require.Len(t, events, 1)
	modelErr, ok := events[0].(ModelError)
	require.True(t, ok)
	assert.Equal(t, ErrorCancelled, modelErr.Kind)
}
