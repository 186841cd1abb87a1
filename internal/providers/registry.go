package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dlevien/research-agent/internal/providers/breaker"
)

// Registry holds the compiled-in providers for one process and the
// process-wide circuit breaker shared across runs. This mirrors the
// teacher's integration registry: a name-keyed map built at startup,
// guarded by a mutex because providers may be (de)registered during
// config hot-reload (spec §6, providers.yaml).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	breaker   *breaker.Breaker
}

// NewRegistry creates an empty registry backed by b. Pass breaker.New with
// config.CircuitBreakerConfig translated to breaker.Config.
func NewRegistry(b *breaker.Breaker) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		breaker:   b,
	}
}

// Register adds or replaces a provider under its own Metadata.Tag. Register
// is safe to call after Search has started.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Metadata().Tag] = p
}

// Unregister removes a provider by tag.
func (r *Registry) Unregister(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, tag)
}

// Get returns the provider registered under tag, if any.
func (r *Registry) Get(tag string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[tag]
	return p, ok
}

// Tags returns all registered provider tags in a stable (sorted) order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for tag := range r.providers {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// SelectVertical returns the tags of registered vertical providers that
// match either the given intent or the topic's trigger words (spec §4.3).
func (r *Registry) SelectVertical(intent, topic string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lowerTopic := strings.ToLower(topic)
	var out []string
	for tag, p := range r.providers {
		md := p.Metadata()
		if md.Kind != KindVertical {
			continue
		}
		if md.MatchesIntent(intent) || md.MatchesTopic(lowerTopic) {
			out = append(out, tag)
		}
	}
	sort.Strings(out)
	return out
}

// SelectGeneral returns the tags of registered general providers, in the
// given preference order, filtered to those actually registered.
func (r *Registry) SelectGeneral(preferred []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for _, tag := range preferred {
		if p, ok := r.providers[tag]; ok && p.Metadata().Kind == KindGeneral {
			out = append(out, tag)
		}
	}
	return out
}

// Call runs one query against the named provider, honoring the circuit
// breaker and the run-scoped call budget and query de-dup in state. It
// records the outcome with the breaker before returning.
func (r *Registry) Call(ctx context.Context, state *RunProviderState, tag, query string, count int, freshness, region string) ([]Hit, error) {
	r.mu.RLock()
	p, ok := r.providers[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", tag)
	}

	if avail, reason := r.breaker.IsAvailable(tag); !avail {
		return nil, fmt.Errorf("provider %q unavailable: %s", tag, reason)
	}

	st := state.forProvider(tag)
	st.mu.Lock()
	if st.callBudget > 0 && st.callCount >= st.callBudget {
		st.mu.Unlock()
		return nil, fmt.Errorf("provider %q call budget exhausted", tag)
	}
	norm := normalizeQuery(query)
	if st.seenQueries[norm] {
		st.mu.Unlock()
		return nil, fmt.Errorf("provider %q: duplicate query in this run", tag)
	}
	st.seenQueries[norm] = true
	st.callCount++
	st.mu.Unlock()

	hits, err := p.Search(ctx, query, count, freshness, region)
	if err != nil {
		status := 0
		if ce, ok := asCallError(err); ok {
			status = ce.StatusCode
		}
		r.breaker.RecordFailure(tag, status)
		return nil, err
	}
	r.breaker.RecordSuccess(tag)
	return hits, nil
}

func asCallError(err error) (*CallError, bool) {
	ce, ok := err.(*CallError)
	return ce, ok
}

// Breaker exposes the registry's circuit breaker for health reporting.
func (r *Registry) Breaker() *breaker.Breaker { return r.breaker }

// RunProviderState tracks per-run call budgets and query de-dup across all
// providers (spec §3 ProviderState), independent of the process-wide
// breaker. One instance is created per pipeline run.
type RunProviderState struct {
	mu        sync.Mutex
	perTag    map[string]*runState
	defBudget map[string]int
}

// NewRunProviderState creates run-scoped state with per-tag call budgets.
func NewRunProviderState(budgets map[string]int) *RunProviderState {
	return &RunProviderState{
		perTag:    make(map[string]*runState),
		defBudget: budgets,
	}
}

func (s *RunProviderState) forProvider(tag string) *runState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.perTag[tag]
	if !ok {
		st = newRunState(s.defBudget[tag])
		s.perTag[tag] = st
	}
	return st
}

// CallCount returns how many calls have been made against tag this run.
func (s *RunProviderState) CallCount(tag string) int {
	st := s.forProvider(tag)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.callCount
}
