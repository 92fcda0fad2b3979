package llm

import (
	"sync"
	"time"
)

// breakerState is one model's closed/open/half-open state machine, per
// spec §4.2. Each model gets its own lock so a slow model never blocks
// breaker checks for the rest of the council (§5 shared resources: "one
// lock per model; no global lock").
type breakerState struct {
	mu        sync.Mutex
	failures  []time.Time // rolling window of failure timestamps
	openUntil time.Time   // zero when not open
	halfOpen  bool
}

// BreakerConfig holds the rolling-window thresholds from spec §4.2/§6.5.
type BreakerConfig struct {
	Failures int
	Window   time.Duration
	Cooldown time.Duration
}

// DefaultBreakerConfig matches the spec's documented defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Failures: 5, Window: 60 * time.Second, Cooldown: 30 * time.Second}
}

// BreakerRegistry is the process-wide, per-model circuit breaker registry
// (C2). It is constructed once at startup and injected into Dispatch,
// per the §9 design note against lazily-initialized globals.
type BreakerRegistry struct {
	cfg    BreakerConfig
	clock  Clock
	mu     sync.RWMutex // guards the map only, not individual states
	models map[ModelID]*breakerState
}

// NewBreakerRegistry constructs a registry with the given config. Pass a
// fake Clock in tests to control the rolling window deterministically.
func NewBreakerRegistry(cfg BreakerConfig, clock Clock) *BreakerRegistry {
	if clock == nil {
		clock = RealClock
	}
	return &BreakerRegistry{cfg: cfg, clock: clock, models: make(map[ModelID]*breakerState)}
}

func (r *BreakerRegistry) stateFor(model ModelID) *breakerState {
	r.mu.RLock()
	s, ok := r.models[model]
	r.mu.RUnlock()
	if ok {
		return s
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok = r.models[model]; ok {
		return s
	}
	s = &breakerState{}
	r.models[model] = s
	return s
}

// CanExecute reports whether a call to model should proceed. When the
// circuit is open and the cooldown has not elapsed, it returns the number
// of seconds remaining so the caller can surface "retry in Ns" (§4.1).
func (r *BreakerRegistry) CanExecute(model ModelID) (allowed bool, secondsUntilRecovery float64) {
	s := r.stateFor(model)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.clock.Now()
	if s.openUntil.IsZero() {
		return true, 0
	}
	if now.Before(s.openUntil) {
		return false, s.openUntil.Sub(now).Seconds()
	}
	// Cooldown elapsed: transition to half-open and allow exactly this probe.
	s.halfOpen = true
	s.openUntil = time.Time{}
	return true, 0
}

// RecordSuccess closes the circuit (from closed or half-open) and clears
// the failure window.
func (r *BreakerRegistry) RecordSuccess(model ModelID) {
	s := r.stateFor(model)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = nil
	s.halfOpen = false
	s.openUntil = time.Time{}
}

// RecordFailure appends to the rolling failure window and opens the circuit
// once the threshold is reached within the window, or immediately on any
// failure while half-open.
func (r *BreakerRegistry) RecordFailure(model ModelID) {
	s := r.stateFor(model)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := r.clock.Now()
	if s.halfOpen {
		s.halfOpen = false
		s.openUntil = now.Add(r.cfg.Cooldown)
		s.failures = nil
		return
	}

	cutoff := now.Add(-r.cfg.Window)
	kept := s.failures[:0]
	for _, t := range s.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	s.failures = kept

	if len(s.failures) >= r.cfg.Failures {
		s.openUntil = now.Add(r.cfg.Cooldown)
		s.failures = nil
	}
}
