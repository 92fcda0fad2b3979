package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	reg := NewBreakerRegistry(BreakerConfig{Failures: 3, Window: time.Minute, Cooldown: 10 * time.Second}, clock)

	model := ModelID("openrouter/test-model")
	for i := 0; i < 2; i++ {
		reg.RecordFailure(model)
		allowed, _ := reg.CanExecute(model)
		require.True(t, allowed, "should remain closed below threshold")
	}

	reg.RecordFailure(model)
	allowed, wait := reg.CanExecute(model)
	assert.False(t, allowed)
	assert.Greater(t, wait, 0.0)
}

func TestBreaker_HalfOpenAfterCooldown(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	reg := NewBreakerRegistry(BreakerConfig{Failures: 1, Window: time.Minute, Cooldown: 10 * time.Second}, clock)

	model := ModelID("openrouter/test-model")
	reg.RecordFailure(model)
	allowed, _ := reg.CanExecute(model)
	require.False(t, allowed)

	clock.advance(11 * time.Second)
	allowed, _ = reg.CanExecute(model)
	require.True(t, allowed, "cooldown elapsed should allow a half-open probe")

	reg.RecordSuccess(model)
	allowed, _ = reg.CanExecute(model)
	assert.True(t, allowed)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	reg := NewBreakerRegistry(BreakerConfig{Failures: 1, Window: time.Minute, Cooldown: 5 * time.Second}, clock)

	model := ModelID("openrouter/test-model")
	reg.RecordFailure(model)
	clock.advance(6 * time.Second)
	allowed, _ := reg.CanExecute(model)
	require.True(t, allowed)

	reg.RecordFailure(model)
	allowed, wait := reg.CanExecute(model)
	assert.False(t, allowed)
	assert.Greater(t, wait, 0.0)
}

func TestBreaker_WindowPrunesOldFailures(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	reg := NewBreakerRegistry(BreakerConfig{Failures: 2, Window: 5 * time.Second, Cooldown: time.Second}, clock)

	model := ModelID("openrouter/test-model")
	reg.RecordFailure(model)
	clock.advance(6 * time.Second)
	reg.RecordFailure(model)

	allowed, _ := reg.CanExecute(model)
	assert.True(t, allowed, "first failure should have fallen out of the window")
}

func TestBreaker_PerModelIsolation(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(0, 0)}
	reg := NewBreakerRegistry(BreakerConfig{Failures: 1, Window: time.Minute, Cooldown: time.Minute}, clock)

	reg.RecordFailure(ModelID("vendor/a"))
	allowedA, _ := reg.CanExecute(ModelID("vendor/a"))
	allowedB, _ := reg.CanExecute(ModelID("vendor/b"))
	assert.False(t, allowedA)
	assert.True(t, allowedB)
}
