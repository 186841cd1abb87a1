package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvidence() []model.Evidence {
	now := time.Now()
	return []model.Evidence{
		{
			ID: "1", SourceDomain: "imf.org", Provider: model.ProviderWorldBank,
			Title: "GDP growth report", Claim: "GDP grew 3.2 percent in 2024",
			CredibilityScore: 0.9, RelevanceScore: 0.9, IsPrimarySource: true,
			IsTriangulated: true, ClusterID: "cluster-1", CollectedAt: now,
		},
		{
			ID: "2", SourceDomain: "reuters.com", Provider: model.ProviderSerpAPI,
			Title: "GDP growth report", BestQuote: "GDP grew roughly 3.2 percent in 2024",
			CredibilityScore: 0.7, RelevanceScore: 0.8, IsTriangulated: true,
			ClusterID: "cluster-1", CollectedAt: now,
		},
		{
			ID: "3", SourceDomain: "worldbank.org", Provider: model.ProviderWorldBank,
			Title: "Standalone primary fact", Claim: "Unemployment fell to 4.1 percent",
			CredibilityScore: 0.95, RelevanceScore: 0.9, IsPrimarySource: true, CollectedAt: now,
		},
	}
}

func passingDecision() model.GateDecision {
	return model.GateDecision{
		AllowFinalReport: true,
		Confidence:       model.ConfidenceHigh,
		Metrics:          model.RunMetrics{Cards: 3, UnionTriangulation: 0.6, PrimaryShare: 0.5},
		Thresholds:       model.Thresholds{MinTriangulation: 0.3, MinPrimaryShare: 0.3, MinSources: 2},
	}
}

func failingDecision() model.GateDecision {
	return model.GateDecision{
		AllowFinalReport: false,
		Confidence:       model.ConfidenceLow,
		FailingReasons:   []string{"triangulation_below_threshold", "insufficient_cards"},
		Metrics:          model.RunMetrics{Cards: 1, UnionTriangulation: 0.1, PrimaryShare: 0.0},
		Thresholds:       model.Thresholds{MinTriangulation: 0.3, MinPrimaryShare: 0.3, MinSources: 5},
	}
}

func TestRenderFinalReport_IncludesTriangulatedFindingAndKeyNumber(t *testing.T) {
	evs := sampleEvidence()
	clusters := []model.Cluster{
		{ID: "cluster-1", Members: []string{"1", "2"}, Domains: []string{"imf.org", "reuters.com"},
			Size: 2, RepresentativeID: "1", RepresentativeText: "GDP grew 3.2 percent in 2024"},
	}
	tris := map[string][]model.StructuredClaim{
		"gdp growth report|growth|2024": {
			{SourceEvidenceID: "1", Entity: "gdp growth report", Metric: "growth", Period: "2024", Value: 3.2, Unit: "percent"},
			{SourceEvidenceID: "2", Entity: "gdp growth report", Metric: "growth", Period: "2024", Value: 3.2, Unit: "percent"},
		},
	}
	out := RenderFinalReport(FinalReportInput{Topic: "economy", Evidence: evs, Clusters: clusters, StructuredTris: tris, Decision: passingDecision()})

	assert.Contains(t, out, "Key Findings")
	assert.Contains(t, out, "GDP grew 3.2 percent in 2024")
	assert.Contains(t, out, "corroborated across 2 sources")
	assert.Contains(t, out, "Unemployment fell to 4.1 percent")
	assert.Contains(t, out, "Key Numbers")
	assert.Contains(t, out, "3.2")
}

func TestRenderInsufficientReport_IntentTemplatedNextSteps(t *testing.T) {
	out := RenderInsufficientReport(InsufficientReportInput{Topic: "inflation trend", Intent: model.IntentStats, Decision: failingDecision()})
	assert.Contains(t, out, "Insufficient Evidence")
	assert.Contains(t, out, "Failing Gates")
	assert.Contains(t, out, "inflation trend")
	assert.Contains(t, out, "national statistics office")
	assert.Contains(t, out, "Troubleshooting")
}

func TestRenderInsufficientReport_FallsBackToDefaultNextSteps(t *testing.T) {
	out := RenderInsufficientReport(InsufficientReportInput{Topic: "widget pricing", Intent: model.IntentProduct, Decision: failingDecision()})
	assert.Contains(t, out, "widget pricing")
	assert.Contains(t, out, "Try rephrasing")
}

func TestRenderDraftReport_IncludesBannerAndBullets(t *testing.T) {
	out := RenderDraftReport("economy", sampleEvidence())
	assert.Contains(t, out, "DRAFT")
	assert.Contains(t, out, "unreviewed draft")
	assert.Contains(t, out, "imf.org")
}

func TestPersistBundle_WritesAllThreeFiles(t *testing.T) {
	dir := t.TempDir()
	evs := sampleEvidence()
	metrics := model.RunMetrics{Cards: len(evs), UnionTriangulation: 0.5}

	require.NoError(t, PersistBundle(dir, evs, metrics))

	cardsPath := filepath.Join(dir, "evidence", "final_cards.jsonl")
	require.FileExists(t, cardsPath)
	data, err := os.ReadFile(cardsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "imf.org")

	require.FileExists(t, filepath.Join(dir, "evidence", "sources.csv"))

	snapPath := filepath.Join(dir, "evidence", "metrics_snapshot.json")
	require.FileExists(t, snapPath)
	var readBack model.RunMetrics
	snap, err := os.ReadFile(snapPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(snap, &readBack))
	assert.Equal(t, len(evs), readBack.Cards)
}

func TestDispatch_WritesFinalReportAndPersistsBundleOnPass(t *testing.T) {
	dir := t.TempDir()
	evs := sampleEvidence()
	out, err := Dispatch(DispatchInput{
		RunDir: dir, Topic: "economy", Intent: model.IntentStats,
		Evidence: evs, Metrics: model.RunMetrics{Cards: len(evs)}, Decision: passingDecision(),
	})
	require.NoError(t, err)
	assert.Equal(t, KindFinal, out.Kind)
	assert.NoError(t, out.RenderErr)
	require.FileExists(t, filepath.Join(dir, "final_report.md"))
	require.FileExists(t, filepath.Join(dir, "evidence", "final_cards.jsonl"))
	assert.NoFileExists(t, filepath.Join(dir, "insufficient_evidence_report.md"))
}

func TestDispatch_WritesInsufficientReportOnFail(t *testing.T) {
	dir := t.TempDir()
	evs := sampleEvidence()
	out, err := Dispatch(DispatchInput{
		RunDir: dir, Topic: "economy", Intent: model.IntentStats,
		Evidence: evs, Metrics: model.RunMetrics{Cards: len(evs)}, Decision: failingDecision(),
	})
	require.NoError(t, err)
	assert.Equal(t, KindInsufficient, out.Kind)
	assert.False(t, out.DraftWritten)
	require.FileExists(t, filepath.Join(dir, "insufficient_evidence_report.md"))
	assert.NoFileExists(t, filepath.Join(dir, "final_report.md"))
}

func TestDispatch_WritesDraftWhenPreliminaryOnFailSet(t *testing.T) {
	dir := t.TempDir()
	evs := sampleEvidence()
	out, err := Dispatch(DispatchInput{
		RunDir: dir, Topic: "economy", Intent: model.IntentStats,
		Evidence: evs, Metrics: model.RunMetrics{Cards: len(evs)}, Decision: failingDecision(),
		PreliminaryOnFail: true,
	})
	require.NoError(t, err)
	assert.True(t, out.DraftWritten)
	require.FileExists(t, filepath.Join(dir, "draft_degraded.md"))
}

func TestDispatch_EvidenceBundleNeverSkippedRegardlessOfGate(t *testing.T) {
	for _, decision := range []model.GateDecision{passingDecision(), failingDecision()} {
		dir := t.TempDir()
		evs := sampleEvidence()
		_, err := Dispatch(DispatchInput{
			RunDir: dir, Topic: "t", Intent: model.IntentGeneric,
			Evidence: evs, Metrics: model.RunMetrics{Cards: len(evs)}, Decision: decision,
		})
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(dir, "evidence", "final_cards.jsonl"))
	}
}

func TestDispatch_WritesCoreArtifacts(t *testing.T) {
	dir := t.TempDir()
	evs := sampleEvidence()
	rejected := []model.RejectedEvidence{
		{Raw: map[string]any{"url": ""}, Reasons: []model.RejectReason{{Field: "url", Reason: "missing"}}},
	}
	clusters := []model.Cluster{
		{ID: "cluster-1", Members: []string{"1", "2"}, Domains: []string{"imf.org", "reuters.com"}, Size: 2},
	}
	tris := map[string][]model.StructuredClaim{
		"gdp growth report|growth|2024": {
			{SourceEvidenceID: "1", Entity: "gdp growth report", Metric: "growth", Period: "2024", Value: 3.2, Unit: "percent"},
			{SourceEvidenceID: "2", Entity: "gdp growth report", Metric: "growth", Period: "2024", Value: 3.2, Unit: "percent"},
		},
	}

	_, err := Dispatch(DispatchInput{
		RunDir: dir, Topic: "economy", Intent: model.IntentStats,
		Evidence: evs, Rejected: rejected, Metrics: model.RunMetrics{Cards: len(evs)},
		Decision: passingDecision(), Clusters: clusters, StructuredTris: tris,
	})
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(dir, "evidence_cards.jsonl"))
	cardsData, err := os.ReadFile(filepath.Join(dir, "evidence_cards.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, len(evs), countNonEmptyLines(string(cardsData)))

	require.FileExists(t, filepath.Join(dir, "evidence_cards.errors.jsonl"))
	errData, err := os.ReadFile(filepath.Join(dir, "evidence_cards.errors.jsonl"))
	require.NoError(t, err)
	assert.Equal(t, 1, countNonEmptyLines(string(errData)))

	require.FileExists(t, filepath.Join(dir, "triangulation.json"))
	var doc triangulationDoc
	triData, err := os.ReadFile(filepath.Join(dir, "triangulation.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(triData, &doc))
	require.Len(t, doc.ParaphraseClusters, 1)
	require.Len(t, doc.StructuredTriangles, 1)
	assert.ElementsMatch(t, []string{"imf.org", "reuters.com"}, doc.StructuredTriangles[0].Domains)
}

func countNonEmptyLines(s string) int {
	n := 0
	for _, line := range splitLines(s) {
		if line != "" {
			n++
		}
	}
	return n
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
