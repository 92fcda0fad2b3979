// Package httpapi exposes the three council stages over a minimal HTTP+SSE
// surface: one POST endpoint per stage, each streaming the stage's wire
// events as Server-Sent Events using the same data/event framing the
// teacher's own agentd HTTP surface uses.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"council/internal/composer"
	"council/internal/council"
	"council/internal/llm"
	"council/internal/llmconfig"
	"council/internal/registry"
)

// Deps wires the HTTP layer to the orchestration core. A nil ComposerSource
// disables the Context Composer and leaves the system prompt empty.
type Deps struct {
	Client      *llm.Client
	Multiplexer *council.Multiplexer
	Registry    *registry.Registry
	Resolver    *llmconfig.Resolver
	ComposerSrc composer.Source
	Stage1Deps  council.Stage1Deps
	Stage2Deps  council.Stage2Deps
	Stage3Deps  council.Stage3Deps
}

type councilRequest struct {
	Query               string        `json:"query"`
	CompanyID           string        `json:"company_id"`
	DepartmentID        string        `json:"department_id"`
	ProjectID           string        `json:"project_id"`
	RoleIDs             []string      `json:"role_ids"`
	PlaybookIDs         []string      `json:"playbook_ids"`
	PresetOverride      string        `json:"preset_override"`
	Modifier            string        `json:"modifier"`
	ConversationHistory []llm.Message `json:"conversation_history"`
}

// NewMux builds the council HTTP surface: health checks plus one streaming
// endpoint per stage.
func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ready\n"))
	})
	mux.HandleFunc("/v1/stage1", deps.handleStage1)
	mux.HandleFunc("/v1/stage2", deps.handleStage2)
	mux.HandleFunc("/v1/stage3", deps.handleStage3)
	return mux
}

func (d Deps) handleStage1(w http.ResponseWriter, r *http.Request) {
	var req councilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fl, ok := prepareSSE(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	composed := d.composeContext(ctx, req)
	events, err := council.RunStage1(ctx, d.Stage1Deps, council.Stage1Input{
		ComposedContext:     composed,
		ConversationHistory: req.ConversationHistory,
		Query:               req.Query,
		DepartmentID:        req.DepartmentID,
		PresetOverride:      req.PresetOverride,
		Modifier:            llmconfig.Modifier(req.Modifier),
	})
	if err != nil {
		var tooLong *council.QueryTooLongError
		if errors.As(err, &tooLong) {
			writeSSE(w, fl, "stage1_query_too_long", tooLong)
			return
		}
		writeSSE(w, fl, "stage1_error", map[string]string{"error": err.Error()})
		return
	}

	for ev := range events {
		writeSSE(w, fl, stage1Tag(ev), ev)
	}
}

func (d Deps) handleStage2(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string                 `json:"query"`
		Stage1Results  []council.Stage1Result `json:"stage1_results"`
		DepartmentID   string                 `json:"department_id"`
		PresetOverride string                 `json:"preset_override"`
		Modifier       string                 `json:"modifier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fl, ok := prepareSSE(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	events := council.RunStage2(ctx, d.Stage2Deps, council.Stage2Input{
		Query:          req.Query,
		Stage1Results:  req.Stage1Results,
		DepartmentID:   req.DepartmentID,
		PresetOverride: req.PresetOverride,
		Modifier:       llmconfig.Modifier(req.Modifier),
	})
	for ev := range events {
		writeSSE(w, fl, stage2Tag(ev), ev)
	}
}

func (d Deps) handleStage3(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query               string                 `json:"query"`
		Stage1Results       []council.Stage1Result `json:"stage1_results"`
		Stage2Results       []council.Stage2Result `json:"stage2_results"`
		CompanyID           string                 `json:"company_id"`
		DepartmentID        string                 `json:"department_id"`
		PresetOverride      string                 `json:"preset_override"`
		Modifier            string                 `json:"modifier"`
		ConversationHistory []llm.Message          `json:"conversation_history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	fl, ok := prepareSSE(w)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	composed := d.composeContext(ctx, councilRequest{CompanyID: req.CompanyID, DepartmentID: req.DepartmentID})
	events := council.RunStage3(ctx, d.Stage3Deps, council.Stage3Input{
		ComposedContext:     composed,
		ConversationHistory: req.ConversationHistory,
		Query:               req.Query,
		Stage1Results:       req.Stage1Results,
		Stage2Results:       req.Stage2Results,
		DepartmentID:        req.DepartmentID,
		PresetOverride:      req.PresetOverride,
		Modifier:            llmconfig.Modifier(req.Modifier),
	})
	for ev := range events {
		writeSSE(w, fl, stage3Tag(ev), ev)
	}
}

// composeContext runs the Context Composer if a Source is wired; otherwise
// it returns an empty system prompt, which Stage 1/3 still function with.
func (d Deps) composeContext(ctx context.Context, req councilRequest) string {
	if d.ComposerSrc == nil {
		return ""
	}
	result, err := composer.Compose(ctx, d.ComposerSrc, composer.Input{
		CompanyID:     req.CompanyID,
		ProjectID:     req.ProjectID,
		DepartmentIDs: []string{req.DepartmentID},
		RoleIDs:       req.RoleIDs,
		PlaybookIDs:   req.PlaybookIDs,
		MaxTokens:     4096,
	})
	if err != nil {
		log.Warn().Err(err).Msg("context composer failed, continuing without context")
		return ""
	}
	return result.Prompt
}

func prepareSSE(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fl, ok := w.(http.Flusher)
	return fl, ok
}

func writeSSE(w http.ResponseWriter, fl http.Flusher, event string, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		return
	}
	w.Write([]byte("event: " + event + "\ndata: "))
	w.Write(b)
	w.Write([]byte("\n\n"))
	fl.Flush()
}
