package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"council/internal/config"
)

// reasoningExcludeBlocklist names model-name substrings whose families do
// not accept the "exclude hidden reasoning" hint, per spec §4.1. Kept as a
// substring list rather than a registry capability flag per the open
// question in spec §9 — see DESIGN.md.
var reasoningExcludeBlocklist = []string{"gemini-3", "gemini-2.5", "kimi", "moonshot", "grok"}

func supportsReasoningExclude(model ModelID) bool {
	lower := strings.ToLower(string(model))
	for _, s := range reasoningExcludeBlocklist {
		if strings.Contains(lower, s) {
			return false
		}
	}
	return true
}

// openRouterTransport is the default Transport: a generic OpenAI-compatible
// chat-completions gateway reached over raw HTTP+SSE, matching spec §6.2
// exactly. Any ModelID whose vendor prefix isn't otherwise claimed by a
// native SDK transport (anthropic/, google/) is routed here.
type openRouterTransport struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOpenRouterTransport builds the default transport from config.
func NewOpenRouterTransport(cfg config.ProviderConfig, httpClient *http.Client) Transport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &openRouterTransport{httpClient: httpClient, baseURL: strings.TrimRight(cfg.BaseURL, "/"), apiKey: cfg.APIKey}
}

type chatCompletionPayload struct {
	Model     string              `json:"model"`
	Messages  []wireMessage       `json:"messages"`
	Stream    bool                `json:"stream"`
	MaxTokens int                 `json:"max_tokens"`
	Temperature *float64          `json:"temperature,omitempty"`
	TopP        *float64          `json:"top_p,omitempty"`
	Usage       usageOption       `json:"usage"`
	Reasoning   *reasoningOption  `json:"reasoning,omitempty"`
}

type usageOption struct {
	Include bool `json:"include"`
}

type reasoningOption struct {
	Exclude bool `json:"exclude"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type sseDelta struct {
	Choices []sseChoice  `json:"choices"`
	Usage   *sseUsage    `json:"usage"`
	Error   *sseAPIError `json:"error"`
}

type sseChoice struct {
	Delta        sseMessageDelta `json:"delta"`
	FinishReason string          `json:"finish_reason"`
}

type sseMessageDelta struct {
	Content string `json:"content"`
}

type sseUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CacheCreationInputToken int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens    int `json:"cache_read_input_tokens"`
}

type sseAPIError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (t *openRouterTransport) Stream(ctx context.Context, model ModelID, msgs []Message, params Params) (<-chan rawChunk, error) {
	payload := chatCompletionPayload{
		Model:     string(model),
		Messages:  adaptMessages(msgs),
		Stream:    true,
		MaxTokens: params.MaxTokensOrDefault(),
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Usage:       usageOption{Include: true},
	}
	if supportsReasoningExclude(model) {
		payload.Reasoning = &reasoningOption{Exclude: true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		ch := make(chan rawChunk, 1)
		ch <- rawChunk{kind: rawError, errMessage: err.Error(), retryable: true}
		close(ch)
		return ch, nil
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error sseAPIError `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		ch := make(chan rawChunk, 1)
		ch <- rawChunk{
			kind:       rawError,
			errCode:    resp.StatusCode,
			errMessage: msg,
			retryable:  isRetryableError(resp.StatusCode, msg),
		}
		close(ch)
		return ch, nil
	}

	out := make(chan rawChunk, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			data := strings.TrimPrefix(line, "data: ")
			if strings.TrimSpace(data) == "[DONE]" {
				out <- rawChunk{kind: rawDone}
				return
			}

			var chunk sseDelta
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue // malformed chunk, skip per spec
			}

			if chunk.Error != nil {
				out <- rawChunk{
					kind:       rawError,
					errCode:    chunk.Error.Code,
					errMessage: chunk.Error.Message,
					retryable:  isRetryableError(chunk.Error.Code, chunk.Error.Message),
				}
				return
			}

			if chunk.Usage != nil {
				out <- rawChunk{kind: rawUsage, usage: Usage{
					PromptTokens:     chunk.Usage.PromptTokens,
					CompletionTokens: chunk.Usage.CompletionTokens,
					TotalTokens:      chunk.Usage.TotalTokens,
					CacheRead:        chunk.Usage.CacheReadInputTokens,
					CacheCreate:      chunk.Usage.CacheCreationInputToken,
				}}
			}

			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.FinishReason == "length" {
				out <- rawChunk{kind: rawTruncated}
				out <- rawChunk{kind: rawDone}
				return
			}
			if choice.Delta.Content != "" {
				out <- rawChunk{kind: rawContent, content: choice.Delta.Content}
			}
		}
		if err := scanner.Err(); err != nil {
			out <- rawChunk{kind: rawError, errMessage: err.Error(), retryable: true}
			return
		}
		out <- rawChunk{kind: rawDone}
	}()
	return out, nil
}

func adaptMessages(msgs []Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = wireMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
