package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"

	"council/internal/config"
)

// googleTransport routes "google/"-prefixed ModelIDs through the native
// Gemini SDK. The council core needs none of tool-calling, thinking
// summaries, or image generation, so the request shape stays deliberately
// narrow compared to a general-purpose chat client.
type googleTransport struct {
	client *genai.Client
}

// NewGoogleTransport builds the Google-native transport from config.
func NewGoogleTransport(cfg config.ProviderConfig, httpClient *http.Client) (Transport, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}
	return &googleTransport{client: client}, nil
}

func googleModelName(model ModelID) string {
	_, name, found := strings.Cut(string(model), "/")
	if !found {
		return string(model)
	}
	return name
}

func toGoogleContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.RoleUser
		text := m.Content
		switch m.Role {
		case RoleAssistant:
			role = genai.RoleModel
		case RoleSystem:
			text = "[system] " + text
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return contents
}

func (t *googleTransport) Stream(ctx context.Context, model ModelID, msgs []Message, params Params) (<-chan rawChunk, error) {
	contents := toGoogleContents(msgs)

	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(params.MaxTokensOrDefault()),
	}
	if params.Temperature != nil {
		t := float32(*params.Temperature)
		cfg.Temperature = &t
	}
	if params.TopP != nil {
		p := float32(*params.TopP)
		cfg.TopP = &p
	}

	out := make(chan rawChunk, 16)
	go func() {
		defer close(out)

		stream := t.client.Models.GenerateContentStream(ctx, googleModelName(model), contents, cfg)

		var truncated bool
		var lastUsage *genai.GenerateContentResponseUsageMetadata
		for resp, err := range stream {
			if err != nil {
				select {
				case <-ctx.Done():
					out <- rawChunk{kind: rawError, errMessage: ctx.Err().Error(), retryable: false}
				default:
					out <- rawChunk{kind: rawError, errMessage: err.Error(), retryable: isRetryableError(0, err.Error())}
				}
				return
			}
			if resp == nil {
				continue
			}
			if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
				out <- rawChunk{kind: rawError, errMessage: "blocked: " + string(resp.PromptFeedback.BlockReason), retryable: false}
				return
			}
			if resp.UsageMetadata != nil {
				lastUsage = resp.UsageMetadata
			}
			if len(resp.Candidates) == 0 {
				continue
			}
			candidate := resp.Candidates[0]
			switch candidate.FinishReason {
			case genai.FinishReasonSafety, genai.FinishReasonRecitation:
				out <- rawChunk{kind: rawError, errMessage: "response blocked: " + string(candidate.FinishReason), retryable: false}
				return
			case genai.FinishReasonMaxTokens:
				truncated = true
			}
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil || part.Thought {
					continue
				}
				if part.Text != "" {
					out <- rawChunk{kind: rawContent, content: part.Text}
				}
			}
		}

		if lastUsage != nil {
			out <- rawChunk{kind: rawUsage, usage: Usage{
				PromptTokens:     int(lastUsage.PromptTokenCount),
				CompletionTokens: int(lastUsage.CandidatesTokenCount),
				TotalTokens:      int(lastUsage.TotalTokenCount),
				CacheRead:        int(lastUsage.CachedContentTokenCount),
			}}
		}
		if truncated {
			out <- rawChunk{kind: rawTruncated}
		}
		out <- rawChunk{kind: rawDone}
	}()
	return out, nil
}
