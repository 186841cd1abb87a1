// Package providers defines the provider contract (spec §4.3, §9) and the
// registry of compiled-in providers, general and vertical alike. Concrete
// HTTP adapters live in the search and vertical subpackages; this package
// only defines the uniform capability they implement and the run-scoped
// bookkeeping (call budgets, query de-dup) around it.
package providers

import (
	"context"
	"strings"
	"sync"
)

// Kind distinguishes general search providers (accept arbitrary query
// strings) from vertical/official providers (structured data APIs scoped to
// a domain).
type Kind string

const (
	KindGeneral  Kind = "general"
	KindVertical Kind = "vertical"
)

// Hit is one raw result from a provider call, before normalization into
// model.Evidence.
type Hit struct {
	Title   string
	URL     string
	Snippet string
	Quote   string

	// PublishedAt is the provider's raw date string, if any; parsing into
	// ISO-8601 happens in the Normalizer.
	PublishedAt string

	// Raw carries any provider-specific structured fields an adapter wants
	// to pass through to the Normalizer (e.g. DOI, dataset id).
	Raw map[string]any
}

// Metadata describes a registered provider for selection purposes (spec
// §4.3: vertical providers are only attempted when they match intent or a
// topic trigger, and general providers accept `site:` hints verticals must
// reject).
type Metadata struct {
	Tag  string
	Kind Kind

	// IntentAffinities lists the intents for which a vertical provider is
	// considered "primary" (spec §4.1, §4.3). Empty for general providers.
	IntentAffinities []string

	// TopicTriggers is a small closed list of substrings that, if present
	// in the topic, also justify calling a vertical provider regardless of
	// intent (e.g. "trail"/"park" -> a parks API).
	TopicTriggers []string

	// CallBudget is the default per-run call budget (spec §4.3).
	CallBudget int
}

// MatchesTopic reports whether any of the provider's topic triggers appear
// in the (already-lowercased) topic string.
func (m Metadata) MatchesTopic(lowerTopic string) bool {
	for _, t := range m.TopicTriggers {
		if strings.Contains(lowerTopic, t) {
			return true
		}
	}
	return false
}

// MatchesIntent reports whether intent is one of the provider's affinities.
func (m Metadata) MatchesIntent(intent string) bool {
	for _, i := range m.IntentAffinities {
		if i == intent {
			return true
		}
	}
	return false
}

// Provider is the uniform capability every search backend implements,
// general or vertical (spec §9: "a registry of providers implementing a
// uniform capability").
type Provider interface {
	Metadata() Metadata
	// Search issues one query. count bounds the number of hits requested;
	// freshness and region are optional hints ("" means unset). Providers
	// return an empty slice (never panic) on any failure; the caller
	// classifies the error via the returned error for circuit-breaker
	// bookkeeping.
	Search(ctx context.Context, query string, count int, freshness, region string) ([]Hit, error)
}

// CallError carries the HTTP status code (if any) so the circuit breaker
// can distinguish rate limits (429) from other transient failures.
type CallError struct {
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return "provider call failed"
	}
	return e.Err.Error()
}

func (e *CallError) Unwrap() error { return e.Err }

// runState is the per-run, per-provider mutable bookkeeping of spec §3's
// ProviderState: call_count, call_budget, and seen_queries for de-dup.
// Unlike the circuit breaker (process-wide), this state is local to one run.
type runState struct {
	mu          sync.Mutex
	callCount   int
	callBudget  int
	seenQueries map[string]bool
}

func newRunState(budget int) *runState {
	return &runState{
		callBudget:  budget,
		seenQueries: make(map[string]bool),
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
