package llm

import (
	"context"
	"fmt"
	"time"

	"council/internal/config"
)

// Client is the public entry point for C1: it owns retry policy, circuit
// breaker interaction, and usage/timing bookkeeping around whatever
// Transport Dispatch selects for a given ModelID, turning the Transport's
// rawChunk stream into the public StreamEvent sequence.
type Client struct {
	dispatch   *Dispatch
	breakers   *BreakerRegistry
	clock      Clock
	maxRetries int
}

// NewClient builds a Client from config and an already-constructed Dispatch
// and BreakerRegistry, both of which are process-wide singletons owned by
// the caller (per the §9 design note against lazily-initialized globals).
func NewClient(dispatch *Dispatch, breakers *BreakerRegistry, cfg config.Config, clock Clock) *Client {
	if clock == nil {
		clock = RealClock
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &Client{dispatch: dispatch, breakers: breakers, clock: clock, maxRetries: retries}
}

// Call issues one logical model call, internally retrying transient
// failures, and returns a channel of the public StreamEvent sequence. The
// channel is closed after exactly one terminal event (ModelComplete or
// ModelError) is sent, or immediately after ctx is cancelled.
func (c *Client) Call(ctx context.Context, model ModelID, msgs []Message, params Params) <-chan StreamEvent {
	out := make(chan StreamEvent, 32)
	go c.run(ctx, model, msgs, params, out)
	return out
}

func (c *Client) run(ctx context.Context, model ModelID, msgs []Message, params Params, out chan<- StreamEvent) {
	defer close(out)

	if allowed, wait := c.breakers.CanExecute(model); !allowed {
		out <- ModelError{ModelID: model, Kind: ErrorUnavailable, Message: fmt.Sprintf("retry in %.0fs", wait)}
		return
	}

	start := c.clock.Now()
	var content []byte
	var firstTokenAt time.Time
	var usage *Usage

	transport := c.dispatch.transportFor(model)

	retries := 0
	for {
		select {
		case <-ctx.Done():
			out <- ModelError{ModelID: model, Kind: ErrorCancelled, Message: ctx.Err().Error()}
			return
		default:
		}

		chunks, err := transport.Stream(ctx, model, msgs, params)
		if err != nil {
			c.breakers.RecordFailure(model)
			out <- ModelError{ModelID: model, Kind: ErrorTransport, Message: err.Error()}
			return
		}

		retryThisCall := false
		var retryErr rawChunk

	drain:
		for chunk := range chunks {
			select {
			case <-ctx.Done():
				out <- ModelError{ModelID: model, Kind: ErrorCancelled, Message: ctx.Err().Error()}
				return
			default:
			}

			switch chunk.kind {
			case rawContent:
				if firstTokenAt.IsZero() {
					firstTokenAt = c.clock.Now()
				}
				content = append(content, chunk.content...)
				out <- Token{ModelID: model, Text: chunk.content}

			case rawTruncated:
				out <- Truncated{ModelID: model}

			case rawUsage:
				u := chunk.usage
				u.ModelID = model
				now := c.clock.Now()
				if !firstTokenAt.IsZero() {
					u.TTFTMillis = firstTokenAt.Sub(start).Milliseconds()
				}
				u.TotalMillis = now.Sub(start).Milliseconds()
				usage = &u
				out <- u

			case rawError:
				if chunk.retryable && retries < c.maxRetries {
					retryThisCall = true
					retryErr = chunk
					break drain
				}
				c.breakers.RecordFailure(model)
				out <- ModelError{ModelID: model, Kind: ErrorUpstream, Message: chunk.errMessage}
				return

			case rawDone:
				break drain
			}
		}

		if retryThisCall {
			base := retryBaseDelay(retryErr.errCode)
			delay := backoffDelay(retries, base)
			retries++
			select {
			case <-ctx.Done():
				out <- ModelError{ModelID: model, Kind: ErrorCancelled, Message: ctx.Err().Error()}
				return
			case <-time.After(delay):
			}
			continue
		}

		// The stream closed without an explicit [DONE]/error chunk. This is
		// normal on a clean upstream close, but it is also what a Transport
		// produces when ctx is cancelled or deadlined mid-request, so check
		// here too and not just inside the drain loop above.
		if ctx.Err() != nil {
			out <- ModelError{ModelID: model, Kind: ErrorCancelled, Message: ctx.Err().Error()}
			return
		}

		break
	}

	c.breakers.RecordSuccess(model)
	out <- ModelComplete{ModelID: model, Content: string(content), Usage: usage}
}
