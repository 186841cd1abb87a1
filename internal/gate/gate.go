// Package gate implements the Metrics & Gate Evaluator (C12): the single
// source of truth for whether a run's evidence clears the quality bar for
// a final report, and the run metrics persisted alongside it.
package gate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dlevien/research-agent/internal/config"
	"github.com/dlevien/research-agent/internal/model"
)

// MetricsFilename is the fixed name of the run's single source of truth for
// gate decisions (spec §3, §4.12, §6).
const MetricsFilename = "metrics.json"

// credibleThreshold is the per-evidence credibility bar a card must clear
// to count toward credible_cards in the supply-context classification.
const credibleThreshold = 0.5

// ClassifySupply implements spec §4.12's adaptive supply-context table.
func ClassifySupply(uniqueDomains, credibleCards int, providerErrorRate float64) model.SupplyContext {
	if uniqueDomains >= 8 && credibleCards >= 30 && providerErrorRate < 0.20 {
		return model.SupplyNormal
	}
	if uniqueDomains >= 6 && credibleCards >= 25 && providerErrorRate < 0.30 {
		return model.SupplyConstrained
	}
	return model.SupplyLow
}

// Evaluate computes the full metrics snapshot, resolved thresholds, and
// gate decision for evs given the run's intent, providerErrorRate, and the
// quality-gate thresholds (spec §4.1, §4.12).
func Evaluate(evs []model.Evidence, intent model.Intent, providerErrorRate float64, gates config.GateThresholds) model.GateDecision {
	uniqueDomains := countUniqueDomains(evs)
	credibleCards := countCredible(evs, credibleThreshold)
	supply := ClassifySupply(uniqueDomains, credibleCards, providerErrorRate)

	unionRate := triangulationRate(evs)
	primaryShare := primaryShareOf(evs)
	topDomainShare := topDomainShareOf(evs)

	thresholds := resolveThresholds(supply, intent, gates)

	var reasons []string
	if unionRate < thresholds.MinTriangulation {
		reasons = append(reasons, "triangulation_below_threshold")
	}
	if primaryShare < thresholds.MinPrimaryShare {
		reasons = append(reasons, "primary_share_below_target")
	}
	if len(evs) < thresholds.MinSources {
		reasons = append(reasons, "insufficient_cards")
	}

	allow := len(reasons) == 0
	confidence := confidenceFor(allow, supply, unionRate, primaryShare, thresholds)

	metrics := model.RunMetrics{
		Cards:                len(evs),
		UnionTriangulation:   unionRate,
		PrimaryShare:         primaryShare,
		TopDomainShare:       topDomainShare,
		UniqueDomains:        uniqueDomains,
		CredibleCards:        credibleCards,
		TriangulatedCards:    countTriangulated(evs),
		TriangulatedClusters: countDistinctClusters(evs),
		ProviderErrorRate:    providerErrorRate,
		Supply:               supply,
		EffectiveThresholds:  thresholds,
	}

	return model.GateDecision{
		AllowFinalReport: allow,
		Confidence:       confidence,
		FailingReasons:   reasons,
		Metrics:          metrics,
		Thresholds:       thresholds,
	}
}

// resolveThresholds picks the per-supply-context threshold tier and raises
// the triangulation floor to the per-intent minimum when that minimum is
// stricter (spec §4.1 table ∨ §4.12 supply-adaptive defaults, whichever is
// higher).
func resolveThresholds(supply model.SupplyContext, intent model.Intent, gates config.GateThresholds) model.Thresholds {
	var triangulation, primary float64
	switch supply {
	case model.SupplyNormal:
		triangulation = gates.StrictTriangulationTarget
		primary = gates.PrimaryTarget
	case model.SupplyConstrained:
		triangulation = gates.NormalTriangulationTarget
		primary = gates.PrimaryTarget
	default:
		triangulation = gates.LowSupplyTriangulationFloor
		primary = gates.PrimaryLowSupply
	}
	if intentMin, ok := gates.MinTriangulation[string(intent)]; ok && intentMin > triangulation {
		triangulation = intentMin
	}

	minSources := gates.MinSources[string(intent)]
	if minSources <= 0 {
		minSources = gates.MinCards
	}

	domainCap := gates.DomainCap
	if supply != model.SupplyNormal {
		domainCap = gates.DomainCapRelaxed
	}

	return model.Thresholds{
		MinTriangulation: triangulation,
		MinSources:       minSources,
		MinPrimaryShare:  primary,
		MinCards:         gates.MinCards,
		DomainCap:        domainCap,
	}
}

func confidenceFor(allow bool, supply model.SupplyContext, unionRate, primaryShare float64, t model.Thresholds) model.ConfidenceLevel {
	if !allow {
		return model.ConfidenceLow
	}
	if supply == model.SupplyNormal && unionRate >= t.MinTriangulation*1.1 && primaryShare >= t.MinPrimaryShare*1.1 {
		return model.ConfidenceHigh
	}
	if supply == model.SupplyNormal {
		return model.ConfidenceHigh
	}
	return model.ConfidenceModerate
}

func countUniqueDomains(evs []model.Evidence) int {
	seen := make(map[string]bool)
	for _, ev := range evs {
		seen[ev.SourceDomain] = true
	}
	return len(seen)
}

func countCredible(evs []model.Evidence, threshold float64) int {
	n := 0
	for _, ev := range evs {
		if ev.CredibilityScore >= threshold {
			n++
		}
	}
	return n
}

func countTriangulated(evs []model.Evidence) int {
	n := 0
	for _, ev := range evs {
		if ev.IsTriangulated {
			n++
		}
	}
	return n
}

func countDistinctClusters(evs []model.Evidence) int {
	seen := make(map[string]bool)
	for _, ev := range evs {
		if ev.ClusterID != "" {
			seen[ev.ClusterID] = true
		}
	}
	return len(seen)
}

func triangulationRate(evs []model.Evidence) float64 {
	if len(evs) == 0 {
		return 0
	}
	return float64(countTriangulated(evs)) / float64(len(evs))
}

func primaryShareOf(evs []model.Evidence) float64 {
	if len(evs) == 0 {
		return 0
	}
	n := 0
	for _, ev := range evs {
		if ev.IsPrimarySource {
			n++
		}
	}
	return float64(n) / float64(len(evs))
}

func topDomainShareOf(evs []model.Evidence) float64 {
	if len(evs) == 0 {
		return 0
	}
	counts := make(map[string]int)
	for _, ev := range evs {
		counts[ev.SourceDomain]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(len(evs))
}

// OrderForWriting sorts evidence into the deterministic order the spec's
// concurrency model requires for the final written file: (is_triangulated
// DESC, credibility*relevance DESC, stable record id ASC).
func OrderForWriting(evs []model.Evidence) []model.Evidence {
	out := make([]model.Evidence, len(evs))
	copy(out, evs)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsTriangulated != b.IsTriangulated {
			return a.IsTriangulated
		}
		sa, sb := a.CredibilityScore*a.RelevanceScore, b.CredibilityScore*b.RelevanceScore
		if sa != sb {
			return sa > sb
		}
		return a.ID < b.ID
	})
	return out
}

// FailingReasonsString joins the failing-reason codes for metrics.json /
// report rendering (spec §4.12: "comma-joined failing predicates").
func FailingReasonsString(d model.GateDecision) string {
	return strings.Join(d.FailingReasons, ",")
}

// WriteMetrics persists m to runDir/metrics.json. Callers must write it only
// after all filtering (Domain Balancer, Credibility Floor) has run, so the
// count it carries matches exactly what's written to evidence_cards.jsonl
// (spec §3: "write metrics.json after all filtering").
func WriteMetrics(runDir string, m model.RunMetrics) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, MetricsFilename), b, 0o644); err != nil {
		return fmt.Errorf("write metrics.json: %w", err)
	}
	return nil
}

// LoadMetrics reads runDir/metrics.json back. The pipeline Runner reloads
// the decision's metrics through this path after Evaluate and hands the
// reloaded value, not the in-memory one, to the Report Dispatcher, so a
// run's written report can never drift from the metrics.json it cites
// (spec §3).
func LoadMetrics(runDir string) (model.RunMetrics, error) {
	b, err := os.ReadFile(filepath.Join(runDir, MetricsFilename))
	if err != nil {
		return model.RunMetrics{}, fmt.Errorf("read metrics.json: %w", err)
	}
	var m model.RunMetrics
	if err := json.Unmarshal(b, &m); err != nil {
		return model.RunMetrics{}, fmt.Errorf("unmarshal metrics.json: %w", err)
	}
	return m, nil
}
