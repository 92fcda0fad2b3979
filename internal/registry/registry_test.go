package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council/internal/llm"
)

type fakeStore struct {
	models map[Role][]llm.ModelID
	err    error
}

func (f fakeStore) ModelsForRole(ctx context.Context, role Role) ([]llm.ModelID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.models[role], nil
}

func TestRegistry_FallsBackWhenStoreNil(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil)
	models := r.GetModels(RoleCouncilMember)
	require.NotEmpty(t, models)
	assert.Equal(t, llm.ModelID("openai/gpt-5.1"), r.GetPrimaryModel(RoleCouncilMember))
}

func TestRegistry_UsesStoreAfterRefresh(t *testing.T) {
	t.Parallel()

	store := fakeStore{models: map[Role][]llm.ModelID{
		RoleChairman: {"vendor/custom-chairman"},
	}}
	r := NewRegistry(store)
	r.Refresh(context.Background())

	assert.Equal(t, []llm.ModelID{"vendor/custom-chairman"}, r.GetModels(RoleChairman))
	// A role the store didn't return still falls back.
	assert.NotEmpty(t, r.GetModels(RoleStage2Reviewer))
}

func TestRegistry_StoreErrorKeepsFallback(t *testing.T) {
	t.Parallel()

	store := fakeStore{err: errors.New("unreachable")}
	r := NewRegistry(store)
	r.Refresh(context.Background())

	assert.NotEmpty(t, r.GetModels(RoleCouncilMember))
}

func TestRegistry_EmptyStoreResultFallsBack(t *testing.T) {
	t.Parallel()

	store := fakeStore{models: map[Role][]llm.ModelID{RoleChairman: {}}}
	r := NewRegistry(store)
	r.Refresh(context.Background())

	assert.NotEmpty(t, r.GetModels(RoleChairman))
}
