// Package council implements the stream multiplexer (C3) and, on top of
// it, the three pipeline stages: fan-out, peer ranking, and chairman
// synthesis.
package council

import (
	"context"
	"errors"
	"sync"
	"time"

	"council/internal/llm"
)

// MultiplexEvent is the tagged union emitted by Multiplexer.Run: wrapped
// model events plus the orchestrator control events of spec §4.3.
type MultiplexEvent interface {
	isMultiplexEvent()
}

// ModelStarted fires before the first token of a model arrives.
type ModelStarted struct {
	Model llm.ModelID
}

// TokenMerged wraps a content delta with its stage tag.
type TokenMerged struct {
	Stage string
	Model llm.ModelID
	Text  string
}

// ModelCompleteMerged is the merged terminal success event for one model.
type ModelCompleteMerged struct {
	Model   llm.ModelID
	Content string
	Usage   *llm.Usage
}

// ModelErrorMerged is the merged terminal failure event for one model.
type ModelErrorMerged struct {
	Model llm.ModelID
	Kind  llm.ErrorKind
	Err   string
}

// StageTimeout fires when the stage deadline elapses before all models
// finish; the multiplexer cancels remaining tasks and waits for them to
// unwind before emitting this.
type StageTimeout struct {
	Elapsed    time.Duration
	Completed  int
	Successful int
	Total      int
}

// StageInsufficient fires when fewer than min_required models succeeded.
// The caller must treat this as stage failure and skip downstream stages.
type StageInsufficient struct {
	Received       int
	Required       int
	Total          int
	PartialResults []ModelCompleteMerged
}

// StageAllComplete carries every successful result once the stage finishes
// with enough successes to proceed.
type StageAllComplete struct {
	Results []ModelCompleteMerged
}

func (ModelStarted) isMultiplexEvent()        {}
func (TokenMerged) isMultiplexEvent()         {}
func (ModelCompleteMerged) isMultiplexEvent() {}
func (ModelErrorMerged) isMultiplexEvent()    {}
func (StageTimeout) isMultiplexEvent()        {}
func (StageInsufficient) isMultiplexEvent()   {}
func (StageAllComplete) isMultiplexEvent()    {}

// StagePlan describes one fan-out round: which models to call, with what
// messages/params, and under what scheduling constraints.
type StagePlan struct {
	Stage            string
	Models           []llm.ModelID
	Messages         []llm.Message
	Params           llm.Params
	Stagger          time.Duration
	StageDeadline    time.Duration
	PerModelDeadline time.Duration
	MinRequired      int
	QueueCap         int
}

// Multiplexer is C3: it launches one Client.Call per model in a StagePlan
// and merges their StreamEvents onto a single bounded queue, enforcing
// per-model and stage deadlines along the way.
type Multiplexer struct {
	client *llm.Client
}

// NewMultiplexer builds a Multiplexer around an already-constructed Client.
func NewMultiplexer(client *llm.Client) *Multiplexer {
	return &Multiplexer{client: client}
}

// Run launches the plan's models and returns a channel of MultiplexEvent.
// The channel is closed once the stage concludes: either with
// StageAllComplete, StageInsufficient, or StageTimeout as the final event,
// or with no final event at all if ctx is cancelled by the caller.
func (m *Multiplexer) Run(ctx context.Context, plan StagePlan) <-chan MultiplexEvent {
	out := make(chan MultiplexEvent, plan.QueueCap)
	go m.run(ctx, plan, out)
	return out
}

func (m *Multiplexer) run(ctx context.Context, plan StagePlan, out chan<- MultiplexEvent) {
	defer close(out)

	queueCap := plan.QueueCap
	if queueCap <= 0 {
		queueCap = 1000
	}
	queue := make(chan MultiplexEvent, queueCap)

	stageCtx, cancelStage := context.WithTimeout(ctx, plan.StageDeadline)
	defer cancelStage()

	var wg sync.WaitGroup
	for i, model := range plan.Models {
		wg.Add(1)
		go func(i int, model llm.ModelID) {
			defer wg.Done()
			if plan.Stagger > 0 && i > 0 {
				select {
				case <-time.After(plan.Stagger * time.Duration(i)):
				case <-stageCtx.Done():
					return
				}
			}
			m.runModel(stageCtx, plan, model, queue)
		}(i, model)
	}

	// Closing queue only after every producer has exited guarantees the
	// final range below observes every event a producer managed to enqueue
	// before it unwound, even when that happens concurrently with a
	// deadline firing.
	go func() {
		wg.Wait()
		close(queue)
	}()

	stageStart := time.Now()
	var results []ModelCompleteMerged
	completed := 0

	for {
		select {
		case ev, ok := <-queue:
			if !ok {
				goto finished
			}
			if c, ok := ev.(ModelCompleteMerged); ok {
				results = append(results, c)
				completed++
			} else if _, ok := ev.(ModelErrorMerged); ok {
				completed++
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		case <-stageCtx.Done():
			if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
				m.drainUntilClosed(queue, out, &results, &completed) // per §4.3: wait for task completion to prevent dangling work
				out <- StageTimeout{
					Elapsed:    time.Since(stageStart),
					Completed:  completed,
					Successful: len(results),
					Total:      len(plan.Models),
				}
				return
			}
			// Caller cancelled: drain whatever is already queued, then stop.
			m.drainBriefly(queue, out)
			return
		}
	}

finished:
	if len(results) < plan.MinRequired {
		out <- StageInsufficient{
			Received:       len(results),
			Required:       plan.MinRequired,
			Total:          len(plan.Models),
			PartialResults: results,
		}
		return
	}
	out <- StageAllComplete{Results: results}
}

// drainBriefly forwards whatever is already sitting in queue without
// blocking, for the caller-cancellation path.
func (m *Multiplexer) drainBriefly(queue <-chan MultiplexEvent, out chan<- MultiplexEvent) {
	for {
		select {
		case ev, ok := <-queue:
			if !ok {
				return
			}
			out <- ev
		default:
			return
		}
	}
}

// drainUntilClosed blocks until every still-running task has unwound and
// its queue closed, forwarding events and tallying results as it goes, for
// the stage-deadline path.
func (m *Multiplexer) drainUntilClosed(queue <-chan MultiplexEvent, out chan<- MultiplexEvent, results *[]ModelCompleteMerged, completed *int) {
	for ev := range queue {
		if c, ok := ev.(ModelCompleteMerged); ok {
			*results = append(*results, c)
			*completed++
		} else if _, ok := ev.(ModelErrorMerged); ok {
			*completed++
		}
		out <- ev
	}
}

func (m *Multiplexer) runModel(stageCtx context.Context, plan StagePlan, model llm.ModelID, queue chan<- MultiplexEvent) {
	modelCtx := stageCtx
	var cancel context.CancelFunc
	if plan.PerModelDeadline > 0 {
		modelCtx, cancel = context.WithTimeout(stageCtx, plan.PerModelDeadline)
		defer cancel()
	}

	// send delivers ev to the merge queue. A non-blocking attempt covers the
	// common case where there's room; if the queue is full and the stage
	// has since ended, behavior depends on why: a deadline means the
	// consumer is guaranteed to keep draining until every task (including
	// this one) exits, so we commit to a blocking send rather than drop a
	// result the consumer is still waiting to count. A plain cancellation
	// means the consumer may already have stopped reading, so we bail
	// rather than leak this goroutine.
	send := func(ev MultiplexEvent) bool {
		select {
		case queue <- ev:
			return true
		default:
		}
		select {
		case queue <- ev:
			return true
		case <-stageCtx.Done():
			if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
				queue <- ev
				return true
			}
			return false
		}
	}

	if !send(ModelStarted{Model: model}) {
		return
	}

	for ev := range m.client.Call(modelCtx, model, plan.Messages, plan.Params) {
		switch e := ev.(type) {
		case llm.Token:
			if !send(TokenMerged{Stage: plan.Stage, Model: model, Text: e.Text}) {
				return
			}
		case llm.Truncated:
			// Truncated is informational; ModelComplete still carries the
			// accumulated content, so no merged event is needed here.
		case llm.ModelComplete:
			send(ModelCompleteMerged{Model: model, Content: e.Content, Usage: e.Usage})
			return
		case llm.ModelError:
			kind := e.Kind
			if kind == llm.ErrorCancelled && errors.Is(modelCtx.Err(), context.DeadlineExceeded) {
				kind = llm.ErrorTimeout
			}
			send(ModelErrorMerged{Model: model, Kind: kind, Err: e.Message})
			return
		}
	}
}
