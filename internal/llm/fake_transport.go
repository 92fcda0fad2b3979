package llm

import (
	"context"
	"sync"
	"time"
)

// FakeChunk is a test-friendly description of one unit of provider output.
// FakeTransport turns a sequence of these into the rawChunk stream a real
// Transport would produce, so other packages (the multiplexer and stage
// orchestrators) can exercise Client end to end without a live upstream.
type FakeChunk struct {
	Text      string
	Delay     time.Duration
	Done      bool
	ErrMsg    string
	ErrCode   int
	Retryable bool
	Truncated bool
	Usage     *Usage
}

// FakeTransport replays a fixed script per ModelID. Each call to Stream for
// a given model consumes the next script in that model's queue, so retries
// can be exercised by supplying more than one script per model.
type FakeTransport struct {
	mu      sync.Mutex
	scripts map[ModelID][][]FakeChunk
	calls   map[ModelID]int
}

// NewFakeTransport builds a FakeTransport. Each model maps to a single
// script, replayed on every call (sufficient for tests that don't exercise
// retries); use QueueScript to add additional per-call scripts.
func NewFakeTransport(scripts map[ModelID][]FakeChunk) *FakeTransport {
	f := &FakeTransport{scripts: make(map[ModelID][][]FakeChunk), calls: make(map[ModelID]int)}
	for model, script := range scripts {
		f.scripts[model] = [][]FakeChunk{script}
	}
	return f
}

// QueueScript appends an additional script for model, consumed on the next
// call after whatever is already queued.
func (f *FakeTransport) QueueScript(model ModelID, script []FakeChunk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[model] = append(f.scripts[model], script)
}

// Calls reports how many times Stream was invoked for model.
func (f *FakeTransport) Calls(model ModelID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[model]
}

func (f *FakeTransport) Stream(ctx context.Context, model ModelID, msgs []Message, params Params) (<-chan rawChunk, error) {
	f.mu.Lock()
	queued := f.scripts[model]
	var script []FakeChunk
	if len(queued) > 0 {
		script = queued[0]
		f.scripts[model] = queued[1:]
	}
	f.calls[model]++
	f.mu.Unlock()

	out := make(chan rawChunk, len(script)+1)
	go func() {
		defer close(out)
		for _, c := range script {
			if c.Delay > 0 {
				select {
				case <-time.After(c.Delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			if c.ErrMsg != "" {
				out <- rawChunk{kind: rawError, errMessage: c.ErrMsg, errCode: c.ErrCode, retryable: c.Retryable}
				return
			}
			if c.Truncated {
				out <- rawChunk{kind: rawTruncated}
			}
			if c.Text != "" {
				out <- rawChunk{kind: rawContent, content: c.Text}
			}
			if c.Usage != nil {
				out <- rawChunk{kind: rawUsage, usage: *c.Usage}
			}
			if c.Done {
				out <- rawChunk{kind: rawDone}
				return
			}
		}
	}()
	return out, nil
}
