// Package breaker implements the per-provider circuit breaker of spec §4.3:
// exponential backoff with jitter on rate limiting, and a cooldown window
// after a run of consecutive failures. State is process-wide (the only
// process-wide mutable state in the pipeline, per spec §5) and guarded by
// per-provider mutual exclusion — never a single global mutex, so providers
// don't serialize on each other's state updates.
package breaker

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Config holds the tunables, normally sourced from internal/config
// (env vars PROVIDER_CB_THRESHOLD, PROVIDER_CB_COOLDOWN,
// PROVIDER_MAX_BACKOFF, PROVIDER_INITIAL_BACKOFF).
type Config struct {
	FailureThreshold  int
	Cooldown          time.Duration
	MaxBackoff        time.Duration
	InitialBackoff    time.Duration
}

// DefaultConfig mirrors the defaults in spec §4.3.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		Cooldown:         600 * time.Second,
		MaxBackoff:       300 * time.Second,
		InitialBackoff:   5 * time.Second,
	}
}

type state struct {
	mu sync.Mutex

	consecutiveFailures int
	totalAttempts       int
	totalFailures       int
	lastFailureTime     time.Time
	circuitOpenUntil    time.Time
	backoffUntil        time.Time
}

// Breaker is a circuit breaker keyed by provider name. The zero value is not
// usable; construct with New.
type Breaker struct {
	cfg   Config
	now   func() time.Time
	rand  func() float64

	mu     sync.RWMutex
	states map[string]*state
}

// New creates a Breaker with the given config.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:    cfg,
		now:    time.Now,
		rand:   rand.Float64,
		states: make(map[string]*state),
	}
}

func (b *Breaker) stateFor(provider string) *state {
	b.mu.RLock()
	s, ok := b.states[provider]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.states[provider]; ok {
		return s
	}
	s = &state{}
	b.states[provider] = s
	return s
}

// IsAvailable reports whether provider may currently be called, and if not,
// a short human-readable reason (open circuit or rate-limit backoff).
func (b *Breaker) IsAvailable(provider string) (bool, string) {
	s := b.stateFor(provider)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := b.now()
	if now.Before(s.circuitOpenUntil) {
		return false, "circuit open after " + strconv.Itoa(s.consecutiveFailures) + " consecutive failures"
	}
	if now.Before(s.backoffUntil) {
		return false, "rate limit backoff active"
	}
	return true, ""
}

// RecordSuccess resets the failure streak and clears any active backoff.
func (b *Breaker) RecordSuccess(provider string) {
	s := b.stateFor(provider)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.consecutiveFailures = 0
	s.totalAttempts++
	s.backoffUntil = time.Time{}
}

// RecordFailure records a failed call. statusCode is 0 when unknown; 429
// triggers exponential backoff with jitter in [0.8, 1.2] (spec §4.3, §8.12).
// Reaching FailureThreshold consecutive failures opens the circuit for
// Cooldown.
func (b *Breaker) RecordFailure(provider string, statusCode int) {
	s := b.stateFor(provider)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := b.now()
	s.consecutiveFailures++
	s.totalAttempts++
	s.totalFailures++
	s.lastFailureTime = now

	if statusCode == 429 {
		mult := 1 << uint(min(s.consecutiveFailures-1, 5)) // cap 2^5=32 like original_source
		backoff := b.cfg.InitialBackoff * time.Duration(mult)
		if backoff > b.cfg.MaxBackoff {
			backoff = b.cfg.MaxBackoff
		}
		jitter := 0.8 + 0.4*b.rand() // uniform in [0.8, 1.2]
		backoff = time.Duration(float64(backoff) * jitter)
		s.backoffUntil = now.Add(backoff)
	}

	if s.consecutiveFailures >= b.cfg.FailureThreshold {
		s.circuitOpenUntil = now.Add(b.cfg.Cooldown)
	}
}

// Stats is a snapshot of a provider's health, used for logging/metrics.
type Stats struct {
	Provider            string
	Available           bool
	ConsecutiveFailures int
	TotalAttempts       int
	TotalFailures       int
	FailureRate         float64
	CircuitOpen         bool
	InBackoff           bool
}

// GetStats returns a point-in-time snapshot of a provider's breaker state.
func (b *Breaker) GetStats(provider string) Stats {
	s := b.stateFor(provider)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := b.now()
	// s.mu is already held; IsAvailable would lock it again.
	avail := !now.Before(s.circuitOpenUntil) && !now.Before(s.backoffUntil)
	rate := 0.0
	if s.totalAttempts > 0 {
		rate = float64(s.totalFailures) / float64(s.totalAttempts)
	}
	return Stats{
		Provider:            provider,
		Available:           avail,
		ConsecutiveFailures: s.consecutiveFailures,
		TotalAttempts:       s.totalAttempts,
		TotalFailures:       s.totalFailures,
		FailureRate:         rate,
		CircuitOpen:         now.Before(s.circuitOpenUntil),
		InBackoff:           now.Before(s.backoffUntil),
	}
}

// Reset clears state for one provider, or all providers if provider == "".
func (b *Breaker) Reset(provider string) {
	if provider == "" {
		b.mu.Lock()
		b.states = make(map[string]*state)
		b.mu.Unlock()
		return
	}
	b.mu.Lock()
	delete(b.states, provider)
	b.mu.Unlock()
}

// AvailableProviders filters providers down to those currently available.
func (b *Breaker) AvailableProviders(providers []string) []string {
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		if avail, _ := b.IsAvailable(p); avail {
			out = append(out, p)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
