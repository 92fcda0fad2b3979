package council

import (
	"context"
	"fmt"
	"strings"

	"council/internal/llm"
	"council/internal/registry"
)

// titlePrompt is a fixed single-shot instruction: produce a short
// conversation title from the opening query, mirroring how the original
// backend's title_generator role is used outside the three-stage pipeline.
const titlePrompt = `Generate a short, descriptive title (max 6 words, no quotation marks, no trailing period) for a conversation that starts with this question:

%s`

// GenerateTitle makes one non-streaming call to the title_generator role's
// primary model and returns a short title for the conversation. It never
// errors on content issues: an empty or unusable model response yields a
// truncated fallback built from the query itself.
func GenerateTitle(ctx context.Context, client *llm.Client, reg *registry.Registry, query string) string {
	model := reg.GetPrimaryModel(registry.RoleTitleGenerator)
	if model == "" {
		return fallbackTitle(query)
	}

	messages := []llm.Message{{Role: llm.Role("user"), Content: fmt.Sprintf(titlePrompt, query)}}

	var b strings.Builder
	for ev := range client.Call(ctx, model, messages, llm.Params{}) {
		switch e := ev.(type) {
		case llm.Token:
			b.WriteString(e.Text)
		case llm.ModelError:
			return fallbackTitle(query)
		}
	}

	title := strings.TrimSpace(strings.Trim(b.String(), `"'`))
	if title == "" {
		return fallbackTitle(query)
	}
	return title
}

// fallbackTitle truncates the raw query to a short title when no
// title_generator model is available or it fails.
func fallbackTitle(query string) string {
	const maxLen = 60
	q := strings.TrimSpace(query)
	if len(q) <= maxLen {
		return q
	}
	return q[:maxLen] + "…"
}
