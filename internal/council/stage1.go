package council

import (
	"context"
	"time"

	"council/internal/llm"
	"council/internal/llmconfig"
	"council/internal/registry"
	"council/internal/safety"
	"council/internal/telemetry"
)

// Stage1Input gathers everything Stage1 needs to run one fan-out round
// (§4.7).
type Stage1Input struct {
	ComposedContext    string
	ConversationHistory []llm.Message
	Query              string
	DepartmentID       string
	PresetOverride     string
	Modifier           llmconfig.Modifier
}

// Stage1Deps wires C7 to the Model Registry, Config Resolver, Multiplexer,
// and telemetry sink it depends on.
type Stage1Deps struct {
	Multiplexer *Multiplexer
	Registry    *registry.Registry
	Resolver    *llmconfig.Resolver
	Telemetry   telemetry.Sink

	MinStage1Responses int
	MaxQueryChars       int
	PerModelTimeout     time.Duration
	StageDeadline       time.Duration
	Stagger             time.Duration
	QueueCap            int
}

// RunStage1 executes C7: validate, fan out to council members, translate
// multiplexer events into the stage1_* wire tags (§6.1). It returns
// QueryTooLongError before emitting any event when the query exceeds the
// configured limit, exactly as spec §4.4.1/§7 requires.
func RunStage1(ctx context.Context, deps Stage1Deps, in Stage1Input) (<-chan Stage1Event, error) {
	lengthResult := safety.ValidateQueryLength(in.Query, deps.MaxQueryChars)
	if !lengthResult.Valid {
		return nil, &QueryTooLongError{Chars: lengthResult.Chars, Limit: lengthResult.Limit}
	}

	tel := newTelemetrySink(deps.Telemetry)

	suspicious := safety.DetectSuspiciousQuery(in.Query)
	if suspicious.Suspicious {
		tel.emit(ctx, "suspicious_query", map[string]any{
			"risk":     string(suspicious.Risk),
			"patterns": suspicious.Patterns,
		})
	}
	multiTurn := safety.DetectMultiTurnAttack(in.ConversationHistory, in.Query)
	if multiTurn.Suspicious {
		tel.emit(ctx, "multi_turn_attack", map[string]any{
			"risk":     string(multiTurn.Risk),
			"patterns": multiTurn.Patterns,
		})
	}

	models := deps.Registry.GetModels(registry.RoleCouncilMember)
	cfgParams := deps.Resolver.Resolve(ctx, in.DepartmentID, llmconfig.Stage1, in.PresetOverride, in.Modifier)

	messages := make([]llm.Message, 0, len(in.ConversationHistory)+2)
	messages = append(messages, llm.Message{Role: llm.Role("system"), Content: in.ComposedContext})
	messages = append(messages, in.ConversationHistory...)
	messages = append(messages, llm.Message{Role: llm.Role("user"), Content: safety.WrapUserQuery(in.Query)})

	plan := StagePlan{
		Stage:            "stage1",
		Models:           models,
		Messages:         messages,
		Params:           toLLMParams(cfgParams),
		Stagger:          deps.Stagger,
		StageDeadline:    deps.StageDeadline,
		PerModelDeadline: deps.PerModelTimeout,
		MinRequired:      deps.MinStage1Responses,
		QueueCap:         deps.QueueCap,
	}

	mux := deps.Multiplexer.Run(ctx, plan)
	out := make(chan Stage1Event, cap(mux))
	go translateStage1(ctx, deps, mux, out)
	return out, nil
}

func translateStage1(ctx context.Context, deps Stage1Deps, mux <-chan MultiplexEvent, out chan<- Stage1Event) {
	defer close(out)

	for ev := range mux {
		switch e := ev.(type) {
		case ModelStarted:
			// Stage 1 has no dedicated "started" wire tag; the first token
			// carries equivalent information for the caller.
		case TokenMerged:
			out <- Stage1Token{Model: e.Model, Content: e.Text}
		case ModelCompleteMerged:
			out <- Stage1ModelComplete{Model: e.Model, Response: e.Content, Usage: e.Usage}
		case ModelErrorMerged:
			out <- Stage1ModelError{Model: e.Model, Error: e.Err}
		case StageTimeout:
			out <- Stage1Timeout{
				Elapsed:    e.Elapsed,
				Timeout:    deps.StageDeadline,
				Completed:  e.Completed,
				Successful: e.Successful,
				Total:      e.Total,
			}
		case StageInsufficient:
			out <- Stage1Insufficient{
				Received: e.Received,
				Required: e.Required,
				Total:    e.Total,
				Data:     toStage1Results(e.PartialResults),
			}
		case StageAllComplete:
			out <- Stage1AllComplete{Data: toStage1Results(e.Results)}
		}
	}
}

func toStage1Results(results []ModelCompleteMerged) []Stage1Result {
	out := make([]Stage1Result, 0, len(results))
	for _, r := range results {
		out = append(out, Stage1Result{Model: r.Model, Response: r.Content, Usage: r.Usage})
	}
	return out
}

// toLLMParams adapts the Config Resolver's output to the Model Client's
// Params shape: non-zero fields are sent explicitly, zero means "use the
// provider default" (§4.1).
func toLLMParams(p llmconfig.Params) llm.Params {
	temp := p.Temperature
	maxTokens := p.MaxTokens
	topP := p.TopP
	out := llm.Params{}
	if temp != 0 {
		out.Temperature = &temp
	}
	if maxTokens != 0 {
		out.MaxTokens = &maxTokens
	}
	if topP != 0 {
		out.TopP = &topP
	}
	return out
}
