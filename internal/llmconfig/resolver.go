// Package llmconfig implements the LLM Config Resolver (C6): effective
// {temperature, max_tokens, top_p} per (department, stage), from presets,
// department overrides, and conversation modifiers.
package llmconfig

import "context"

// Stage names the three pipeline stages a config applies to.
type Stage string

const (
	Stage1 Stage = "stage1"
	Stage2 Stage = "stage2"
	Stage3 Stage = "stage3"
)

// Modifier is an optional bounded per-conversation adjustment (§4.6).
type Modifier string

const (
	ModifierNone     Modifier = ""
	ModifierCreative Modifier = "creative"
	ModifierCautious Modifier = "cautious"
	ModifierConcise  Modifier = "concise"
	ModifierDetailed Modifier = "detailed"
)

// Params is the resolved generation configuration for one model call.
type Params struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// PresetStore resolves a department's preset name, mirroring the
// Model Registry's backing-store/fallback split (C10): a real deployment
// backs this with its own storage, and callers must tolerate it returning
// ("", false, nil) for "no override configured" as well as a non-nil error
// for "store unreachable" — both fall through to the hardcoded default.
type PresetStore interface {
	DepartmentPreset(ctx context.Context, departmentID string) (preset string, ok bool, err error)
}

// noopStore is the zero-value PresetStore: every lookup falls through to
// the hardcoded "balanced" default, used when no backing store is wired.
type noopStore struct{}

func (noopStore) DepartmentPreset(context.Context, string) (string, bool, error) {
	return "", false, nil
}

// NoopStore is a PresetStore that never resolves a department override.
var NoopStore PresetStore = noopStore{}

var presets = map[string]map[Stage]Params{
	"conservative": {
		Stage1: {Temperature: 0.2, MaxTokens: 8192},
		Stage2: {Temperature: 0.15, MaxTokens: 2048},
		Stage3: {Temperature: 0.25, MaxTokens: 8192},
	},
	"balanced": {
		Stage1: {Temperature: 0.5, MaxTokens: 8192},
		Stage2: {Temperature: 0.3, MaxTokens: 2048},
		Stage3: {Temperature: 0.4, MaxTokens: 8192},
	},
	"creative": {
		Stage1: {Temperature: 0.8, MaxTokens: 8192},
		Stage2: {Temperature: 0.5, MaxTokens: 2048},
		Stage3: {Temperature: 0.7, MaxTokens: 8192},
	},
}

const defaultPreset = "balanced"

// Resolver is C6.
type Resolver struct {
	store PresetStore
}

// NewResolver builds a Resolver around a PresetStore; pass NoopStore if no
// backing store is wired.
func NewResolver(store PresetStore) *Resolver {
	if store == nil {
		store = NoopStore
	}
	return &Resolver{store: store}
}

// Resolve computes effective Params for (departmentID, stage), applying
// presetOverride > department preset lookup > hardcoded default, then the
// conversation modifier, then validation clamps (§4.6).
func (r *Resolver) Resolve(ctx context.Context, departmentID string, stage Stage, presetOverride string, modifier Modifier) Params {
	preset := defaultPreset

	if presetOverride != "" {
		if _, ok := presets[presetOverride]; ok {
			preset = presetOverride
		}
	} else if departmentID != "" {
		if resolved, ok, err := r.store.DepartmentPreset(ctx, departmentID); err == nil && ok {
			if _, known := presets[resolved]; known {
				preset = resolved
			}
		}
	}

	params := presets[preset][stage]
	params = applyModifier(params, modifier)
	return validate(params)
}

func applyModifier(p Params, modifier Modifier) Params {
	switch modifier {
	case ModifierCreative:
		p.Temperature = min(1.0, p.Temperature+0.15)
	case ModifierCautious:
		p.Temperature = max(0.1, p.Temperature-0.15)
	case ModifierConcise:
		p.MaxTokens = max(512, p.MaxTokens/2)
	case ModifierDetailed:
		p.MaxTokens = min(4096, int(float64(p.MaxTokens)*1.5))
	}
	return p
}

func validate(p Params) Params {
	p.Temperature = clamp(p.Temperature, 0, 1.2)
	p.MaxTokens = clampInt(p.MaxTokens, 256, 16384)
	p.TopP = clamp(p.TopP, 0, 1)
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
