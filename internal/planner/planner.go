// Package planner implements the Query Planner (spec §4.2, C2): expansion
// of one research topic into a small, deterministic, bounded set of
// provider-appropriate queries.
package planner

import (
	"fmt"
	"strings"

	"github.com/dlevien/research-agent/internal/model"
)

// MaxQueries bounds the number of expansion queries produced per run.
const MaxQueries = 5

// Plan produces up to MaxQueries queries for topic under intent, in a
// deterministic order: the raw topic first, then intent-specific
// expansions. Duplicate or near-duplicate expansions (after
// lowercased-whitespace normalization) collapse to a single entry.
func Plan(topic string, in model.Intent) []string {
	topic = strings.TrimSpace(topic)
	candidates := []string{topic}
	candidates = append(candidates, expansionsFor(topic, in)...)

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, MaxQueries)
	for _, q := range candidates {
		if len(out) >= MaxQueries {
			break
		}
		norm := normalize(q)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, q)
	}
	return out
}

// expansionsFor returns the intent-specific expansion templates, in
// priority order, for one intent (spec §4.2).
func expansionsFor(topic string, in model.Intent) []string {
	switch in {
	case model.IntentEncyclopedia:
		// Time-agnostic facets; no recency filters (spec explicitly
		// forbids date-range tokens for this intent).
		return []string{
			fmt.Sprintf("%s timeline", topic),
			fmt.Sprintf("%s history overview", topic),
			fmt.Sprintf("%s site:.edu", topic),
			fmt.Sprintf("%s site:.gov", topic),
		}
	case model.IntentNews:
		return []string{
			fmt.Sprintf("%s latest news", topic),
			fmt.Sprintf("%s past 12 months", topic),
			fmt.Sprintf("%s this week", topic),
		}
	case model.IntentAcademic:
		return []string{
			fmt.Sprintf("%s research", topic),
			fmt.Sprintf("%s study", topic),
			fmt.Sprintf("%s site:.edu", topic),
		}
	case model.IntentStats:
		return []string{
			fmt.Sprintf("%s statistics", topic),
			fmt.Sprintf("%s data", topic),
			fmt.Sprintf("%s site:.gov", topic),
		}
	default:
		return nil
	}
}

// normalize lowercases and collapses internal whitespace so near-duplicate
// expansions collapse to one query (spec §4.2).
func normalize(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
