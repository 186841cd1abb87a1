package gate

import (
	"testing"

	"github.com/dlevien/research-agent/internal/config"
	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySupply_Normal(t *testing.T) {
	assert.Equal(t, model.SupplyNormal, ClassifySupply(10, 35, 0.1))
}

func TestClassifySupply_Constrained(t *testing.T) {
	assert.Equal(t, model.SupplyConstrained, ClassifySupply(7, 26, 0.25))
}

func TestClassifySupply_LowEvidence(t *testing.T) {
	assert.Equal(t, model.SupplyLow, ClassifySupply(2, 5, 0.5))
}

func makeEvidence(n int, triangulated bool, primary bool, credibility float64, domains int) []model.Evidence {
	var out []model.Evidence
	for i := 0; i < n; i++ {
		out = append(out, model.Evidence{
			ID:               string(rune('a' + i%26)),
			SourceDomain:     domainName(i % domains),
			IsTriangulated:   triangulated,
			IsPrimarySource:  primary,
			CredibilityScore: credibility,
			RelevanceScore:   1.0,
		})
	}
	return out
}

func domainName(i int) string {
	return string(rune('a'+i)) + ".com"
}

func TestEvaluate_PassesWhenAllThresholdsMet(t *testing.T) {
	evs := makeEvidence(40, true, true, 0.9, 10)
	d := Evaluate(evs, model.IntentGeneric, 0.05, config.DefaultGateThresholds())
	assert.True(t, d.AllowFinalReport)
	assert.Equal(t, model.ConfidenceHigh, d.Confidence)
	assert.Empty(t, d.FailingReasons)
}

func TestEvaluate_FailsAndRecordsReasons(t *testing.T) {
	evs := makeEvidence(1, false, false, 0.2, 1)
	d := Evaluate(evs, model.IntentStats, 0.5, config.DefaultGateThresholds())
	assert.False(t, d.AllowFinalReport)
	assert.Equal(t, model.ConfidenceLow, d.Confidence)
	assert.Contains(t, d.FailingReasons, "triangulation_below_threshold")
	assert.Contains(t, d.FailingReasons, "insufficient_cards")
	assert.Equal(t, "triangulation_below_threshold,primary_share_below_target,insufficient_cards", FailingReasonsString(d))
}

func TestOrderForWriting_TriangulatedFirst(t *testing.T) {
	evs := []model.Evidence{
		{ID: "b", IsTriangulated: false, CredibilityScore: 1, RelevanceScore: 1},
		{ID: "a", IsTriangulated: true, CredibilityScore: 0.5, RelevanceScore: 0.5},
	}
	ordered := OrderForWriting(evs)
	assert.Equal(t, "a", ordered[0].ID)
}

func TestOrderForWriting_StableIDTiebreak(t *testing.T) {
	evs := []model.Evidence{
		{ID: "z", IsTriangulated: true, CredibilityScore: 0.5, RelevanceScore: 1},
		{ID: "a", IsTriangulated: true, CredibilityScore: 0.5, RelevanceScore: 1},
	}
	ordered := OrderForWriting(evs)
	assert.Equal(t, "a", ordered[0].ID)
}

func TestWriteMetricsThenLoadMetrics_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	m := model.RunMetrics{Cards: 7, UnionTriangulation: 0.42, PrimaryShare: 0.55, UniqueDomains: 5}

	require.NoError(t, WriteMetrics(dir, m))
	reloaded, err := LoadMetrics(dir)
	require.NoError(t, err)
	assert.Equal(t, m, reloaded)
}

func TestLoadMetrics_ErrorsWhenMissing(t *testing.T) {
	_, err := LoadMetrics(t.TempDir())
	assert.Error(t, err)
}
