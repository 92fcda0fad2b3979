package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"council/internal/config"
)

// anthropicTransport routes "anthropic/"-prefixed ModelIDs through the
// native Anthropic SDK rather than the generic OpenAI-compatible gateway,
// so the council core can exercise the vendor's own streaming accumulator
// and stop-reason semantics directly.
type anthropicTransport struct {
	sdk anthropic.Client
}

// NewAnthropicTransport builds the Anthropic-native transport from config.
func NewAnthropicTransport(cfg config.ProviderConfig) Transport {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &anthropicTransport{sdk: anthropic.NewClient(opts...)}
}

// anthropicModelName strips the "anthropic/" vendor prefix Dispatch used to
// route here; the SDK wants the bare model name.
func anthropicModelName(model ModelID) string {
	_, name, found := strings.Cut(string(model), "/")
	if !found {
		return string(model)
	}
	return name
}

func adaptAnthropicMessages(msgs []Message) (system string, out []anthropic.MessageParam) {
	var sys strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			if strings.TrimSpace(m.Content) != "" {
				if sys.Len() > 0 {
					sys.WriteString("\n\n")
				}
				sys.WriteString(m.Content)
			}
		case RoleUser:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		case RoleAssistant:
			if strings.TrimSpace(m.Content) != "" {
				out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}
	return sys.String(), out
}

func (t *anthropicTransport) Stream(ctx context.Context, model ModelID, msgs []Message, params Params) (<-chan rawChunk, error) {
	system, converted := adaptAnthropicMessages(msgs)

	msgParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(anthropicModelName(model)),
		Messages:  converted,
		MaxTokens: int64(params.MaxTokensOrDefault()),
	}
	if system != "" {
		msgParams.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if params.Temperature != nil {
		msgParams.Temperature = anthropic.Float(*params.Temperature)
	}
	if params.TopP != nil {
		msgParams.TopP = anthropic.Float(*params.TopP)
	}

	out := make(chan rawChunk, 16)
	go func() {
		defer close(out)

		stream := t.sdk.Messages.NewStreaming(ctx, msgParams)
		defer stream.Close()

		var acc anthropic.Message
		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				continue
			}
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						out <- rawChunk{kind: rawContent, content: delta.Text}
					}
				}
			case anthropic.MessageDeltaEvent:
				out <- rawChunk{kind: rawUsage, usage: Usage{
					PromptTokens:     int(acc.Usage.InputTokens),
					CompletionTokens: int(ev.Usage.OutputTokens),
					TotalTokens:      int(acc.Usage.InputTokens) + int(ev.Usage.OutputTokens),
					CacheRead:        int(acc.Usage.CacheReadInputTokens),
					CacheCreate:      int(acc.Usage.CacheCreationInputTokens),
				}}
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case <-ctx.Done():
				out <- rawChunk{kind: rawError, errMessage: ctx.Err().Error(), retryable: false}
			default:
				out <- rawChunk{kind: rawError, errMessage: err.Error(), retryable: isRetryableError(0, err.Error())}
			}
			return
		}

		if acc.StopReason == "max_tokens" {
			out <- rawChunk{kind: rawTruncated}
		}
		out <- rawChunk{kind: rawDone}
	}()
	return out, nil
}
