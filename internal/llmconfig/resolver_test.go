package llmconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	preset string
	ok     bool
	err    error
}

func (f fakeStore) DepartmentPreset(ctx context.Context, departmentID string) (string, bool, error) {
	return f.preset, f.ok, f.err
}

func TestResolve_DefaultsToBalanced(t *testing.T) {
	t.Parallel()

	r := NewResolver(NoopStore)
	p := r.Resolve(context.Background(), "", Stage1, "", ModifierNone)
	assert.Equal(t, 0.5, p.Temperature)
	assert.Equal(t, 8192, p.MaxTokens)
}

func TestResolve_PresetOverrideWinsOverDepartment(t *testing.T) {
	t.Parallel()

	r := NewResolver(fakeStore{preset: "creative", ok: true})
	p := r.Resolve(context.Background(), "dept-1", Stage1, "conservative", ModifierNone)
	assert.Equal(t, 0.2, p.Temperature)
}

func TestResolve_DepartmentPresetUsedWhenNoOverride(t *testing.T) {
	t.Parallel()

	r := NewResolver(fakeStore{preset: "creative", ok: true})
	p := r.Resolve(context.Background(), "dept-1", Stage2, "", ModifierNone)
	assert.Equal(t, 0.5, p.Temperature)
}

func TestResolve_StoreUnavailableFallsBackToDefault(t *testing.T) {
	t.Parallel()

	r := NewResolver(fakeStore{err: assertErr{}})
	p := r.Resolve(context.Background(), "dept-1", Stage1, "", ModifierNone)
	assert.Equal(t, 0.5, p.Temperature)
}

type assertErr struct{}

func (assertErr) Error() string { return "store unreachable" }

func TestResolve_ConversationModifiers(t *testing.T) {
	t.Parallel()

	r := NewResolver(NoopStore)

	creative := r.Resolve(context.Background(), "", Stage1, "balanced", ModifierCreative)
	assert.InDelta(t, 0.65, creative.Temperature, 1e-9)

	cautious := r.Resolve(context.Background(), "", Stage1, "balanced", ModifierCautious)
	assert.InDelta(t, 0.35, cautious.Temperature, 1e-9)

	concise := r.Resolve(context.Background(), "", Stage1, "balanced", ModifierConcise)
	assert.Equal(t, 4096, concise.MaxTokens)

	detailed := r.Resolve(context.Background(), "", Stage2, "balanced", ModifierDetailed)
	assert.Equal(t, 3072, detailed.MaxTokens)
}

func TestResolve_CreativeTemperatureCappedAtOne(t *testing.T) {
	t.Parallel()

	r := NewResolver(NoopStore)
	p := r.Resolve(context.Background(), "", Stage1, "creative", ModifierCreative)
	assert.LessOrEqual(t, p.Temperature, 1.2)
}

func TestResolve_UnknownPresetOverrideIgnored(t *testing.T) {
	t.Parallel()

	r := NewResolver(NoopStore)
	p := r.Resolve(context.Background(), "", Stage1, "nonexistent", ModifierNone)
	assert.Equal(t, 0.5, p.Temperature)
}
