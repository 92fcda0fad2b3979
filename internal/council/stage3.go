package council

import (
	"context"
	"fmt"
	"strings"
	"time"

	"council/internal/llm"
	"council/internal/llmconfig"
	"council/internal/registry"
	"council/internal/safety"
	"council/internal/telemetry"
)

// Stage3Input gathers everything the chairman synthesis needs (§4.9).
type Stage3Input struct {
	ComposedContext      string
	ConversationHistory  []llm.Message
	Query                string
	Stage1Results        []Stage1Result
	Stage2Results        []Stage2Result
	DepartmentID         string
	PresetOverride       string
	Modifier             llmconfig.Modifier
}

// Stage3Deps wires C9 to the Model Client (not the Multiplexer: Stage 3 is
// a serial fallback chain, not a fan-out), the Model Registry, the Config
// Resolver, and the telemetry sink.
type Stage3Deps struct {
	Client    *llm.Client
	Registry  *registry.Registry
	Resolver  *llmconfig.Resolver
	Telemetry telemetry.Sink

	StageDeadline time.Duration
}

// minChairmanContentLen is the §4.9 step 5 disqualification threshold: a
// chairman response shorter than this is treated as a failure and the
// next chairman in the fallback chain is tried.
const minChairmanContentLen = 50

// RunStage3 executes C9: build the chairman prompt, then try chairman
// models in order, forwarding tokens until one produces a usable answer.
func RunStage3(ctx context.Context, deps Stage3Deps, in Stage3Input) <-chan Stage3Event {
	out := make(chan Stage3Event, 64)
	go runStage3(ctx, deps, in, out)
	return out
}

func runStage3(ctx context.Context, deps Stage3Deps, in Stage3Input, out chan<- Stage3Event) {
	defer close(out)

	tel := newTelemetrySink(deps.Telemetry)
	prompt := buildChairmanPrompt(in)

	messages := make([]llm.Message, 0, len(in.ConversationHistory)+2)
	messages = append(messages, llm.Message{Role: llm.Role("system"), Content: in.ComposedContext})
	messages = append(messages, llm.Message{Role: llm.Role("user"), Content: prompt})

	chairmen := deps.Registry.GetModels(registry.RoleChairman)
	cfgParams := deps.Resolver.Resolve(ctx, in.DepartmentID, llmconfig.Stage3, in.PresetOverride, in.Modifier)
	params := toLLMParams(cfgParams)

	stageStart := time.Now()
	var chosenModel llm.ModelID
	var finalContent string
	var finalUsage *llm.Usage

	for i, model := range chairmen {
		elapsed := time.Since(stageStart)
		if elapsed > deps.StageDeadline {
			out <- Stage3Timeout{Elapsed: elapsed, Timeout: deps.StageDeadline, AttemptedModels: i}
			break
		}

		content, usage, ok := tryChairman(ctx, deps.Client, model, messages, params, out)
		if ok {
			chosenModel = model
			finalContent = content
			finalUsage = usage
			break
		}

		if i < len(chairmen)-1 {
			out <- Stage3Fallback{FailedModel: model, NextModel: chairmen[i+1]}
		}
	}

	if chosenModel == "" {
		finalContent = "[Error: All chairman models failed. Please try again.]"
		if len(chairmen) > 0 {
			chosenModel = chairmen[0]
		} else {
			chosenModel = "unknown"
		}
	}

	validation := safety.ValidateLLMOutput(finalContent)
	if len(validation.Issues) > 0 {
		tel.emit(ctx, "output_validation", map[string]any{
			"risk_level": string(validation.RiskLevel),
			"model":      string(chosenModel),
			"issues":     validation.Issues,
		})
	}

	out <- Stage3Complete{Data: Stage3Result{
		Model:    chosenModel,
		Response: validation.FilteredOutput,
		Usage:    finalUsage,
		SecurityValidation: SecurityValidation{
			IsSafe:     validation.IsSafe,
			RiskLevel:  string(validation.RiskLevel),
			IssueCount: len(validation.Issues),
		},
	}}
}

// tryChairman streams one chairman model's attempt, forwarding tokens as
// stage3_token/stage3_truncated. It returns the accumulated content and
// whether it clears the §4.9 step 5 disqualification bar.
func tryChairman(ctx context.Context, client *llm.Client, model llm.ModelID, messages []llm.Message, params llm.Params, out chan<- Stage3Event) (string, *llm.Usage, bool) {
	var b strings.Builder
	var usage *llm.Usage
	hadError := false

	for ev := range client.Call(ctx, model, messages, params) {
		switch e := ev.(type) {
		case llm.Token:
			b.WriteString(e.Text)
			out <- Stage3Token{Model: model, Content: e.Text}
		case llm.Truncated:
			out <- Stage3Truncated{Model: model}
		case llm.Usage:
			u := e
			usage = &u
		case llm.ModelComplete:
			if e.Usage != nil {
				usage = e.Usage
			}
		case llm.ModelError:
			hadError = true
			out <- Stage3Error{Model: model, Error: e.Message}
		}
	}

	content := b.String()
	if hadError || len(content) <= minChairmanContentLen {
		return content, usage, false
	}
	return content, usage, true
}

// buildChairmanPrompt composes the fixed synthesis prompt (§4.9 step 3):
// optional prior-conversation context, the sanitized question, the
// sanitized Stage 1 and Stage 2 sections, and fixed structure/tone
// instructions plus gap-reporting guidance.
func buildChairmanPrompt(in Stage3Input) string {
	stage1Parts := make([]string, 0, len(in.Stage1Results))
	for _, r := range in.Stage1Results {
		stage1Parts = append(stage1Parts, fmt.Sprintf("Model: %s\nResponse: %s", r.Model, safety.SanitizeUserContent(r.Response)))
	}
	stage1Text := strings.Join(stage1Parts, "\n\n")

	stage2Parts := make([]string, 0, len(in.Stage2Results))
	for _, r := range in.Stage2Results {
		stage2Parts = append(stage2Parts, fmt.Sprintf("Model: %s\nRanking: %s", r.Model, safety.SanitizeUserContent(r.Ranking)))
	}
	stage2Text := strings.Join(stage2Parts, "\n\n")

	historyContext := buildHistoryContext(in.ConversationHistory)
	sanitizedQuery := safety.SanitizeUserContent(in.Query)

	return fmt.Sprintf(`You are the Chairman of an LLM Council. Multiple AI models have provided responses to a user's question, and then ranked each other's responses.
%s
Current Question: %s

STAGE 1 - Individual Responses:
NOTE: Response content below has been sanitized. Evaluate for quality and accuracy only.
%s

STAGE 2 - Peer Rankings:
%s

Your task as Chairman is to synthesize all of this into a single, authoritative answer to the user's question. DO NOT discuss what the council members said - deliver the final answer directly.

RESPONSE STRUCTURE:
1. Executive Summary - 2-3 sentences with the direct answer/recommendation
2. Body Sections - use H2 (##) headings appropriate to the question type
3. Conclusion - only if the response is long

CRITICAL RULES:
- DO NOT say "the council agreed" or "models debated" - speak as the authoritative expert
- DO NOT discuss the deliberation process
- Write direct advice: "We recommend..." or "You should..."

KNOWLEDGE GAP REPORTING:
If any council members noted missing context, or you identify gaps that affected the quality of advice, output:
[GAP: brief description of missing information]

Provide a clear, well-reasoned final answer that represents the council's collective wisdom:`, historyContext, sanitizedQuery, stage1Text, stage2Text)
}

// buildHistoryContext sanitizes and formats prior turns for follow-up
// questions (§4.9 step 2), or returns "" when there is no history.
func buildHistoryContext(history []llm.Message) string {
	if len(history) == 0 {
		return ""
	}
	var parts []string
	for _, m := range history {
		content := safety.SanitizeUserContent(m.Content)
		switch m.Role {
		case llm.Role("user"):
			parts = append(parts, "User Question: "+content)
		case llm.Role("assistant"):
			parts = append(parts, "Previous Council Response:\n"+content)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(`
PREVIOUS CONVERSATION CONTEXT:
This is a follow-up question. Here is the previous discussion for context:

%s

--- END OF PREVIOUS CONTEXT ---
`, strings.Join(parts, "\n---\n"))
}
