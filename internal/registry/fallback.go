package registry

import (
	_ "embed"
	"sync"

	"gopkg.in/yaml.v3"

	"council/internal/llm"
)

//go:embed fallback_models.yaml
var fallbackModelsYAML []byte

var (
	fallbackOnce  sync.Once
	fallbackTable map[Role][]llm.ModelID
)

func loadFallbackTable() {
	var raw map[string][]string
	if err := yaml.Unmarshal(fallbackModelsYAML, &raw); err != nil {
		// The fixture is compiled into the binary; a parse failure here is
		// a packaging bug, not a runtime condition. Fall back to an
		// in-memory table so the registry still has something to serve.
		fallbackTable = hardcodedFallback()
		return
	}
	table := make(map[Role][]llm.ModelID, len(raw))
	for role, models := range raw {
		ids := make([]llm.ModelID, len(models))
		for i, m := range models {
			ids[i] = llm.ModelID(m)
		}
		table[Role(role)] = ids
	}
	fallbackTable = table
}

func hardcodedFallback() map[Role][]llm.ModelID {
	return map[Role][]llm.ModelID{
		RoleCouncilMember: {
			"openai/gpt-5.1", "anthropic/claude-opus-4.5", "google/gemini-3-pro-preview",
		},
		RoleStage2Reviewer: {
			"openai/gpt-5.1", "anthropic/claude-opus-4.5", "google/gemini-2.5-flash",
		},
		RoleChairman: {
			"anthropic/claude-opus-4.5", "openai/gpt-5.1",
		},
		RoleTitleGenerator: {
			"google/gemini-2.5-flash",
		},
	}
}

func fallbackModels(role Role) []llm.ModelID {
	fallbackOnce.Do(loadFallbackTable)
	return fallbackTable[role]
}
