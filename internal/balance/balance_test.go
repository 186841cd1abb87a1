package balance

import (
	"testing"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evAt(domain string, credibility, relevance float64, triangulated bool) model.Evidence {
	return model.Evidence{
		SourceDomain:     domain,
		CredibilityScore: credibility,
		RelevanceScore:   relevance,
		IsTriangulated:   triangulated,
	}
}

func TestApplyDomainCap_LimitsDominantDomain(t *testing.T) {
	var evs []model.Evidence
	for i := 0; i < 8; i++ {
		evs = append(evs, evAt("spammy.com", 0.5, 0.5, false))
	}
	for i := 0; i < 8; i++ {
		evs = append(evs, evAt("other.com", 0.5, 0.5, false))
	}
	opts := DefaultOptions()
	out := applyDomainCap(evs, opts)

	counts := map[string]int{}
	for _, ev := range out {
		counts[ev.SourceDomain]++
	}
	assert.LessOrEqual(t, counts["spammy.com"], 6) // floor(0.40 relaxed cap * 16 total)

}

func TestApplyDomainCap_PrefersTriangulatedAndHigherScore(t *testing.T) {
	evs := []model.Evidence{
		evAt("a.com", 0.9, 0.9, false),
		evAt("a.com", 0.5, 0.5, true),
	}
	opts := Options{Cap: 0.01, CapRelaxed: 0.5, MinCards: 0}
	out := applyDomainCap(evs, opts)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsTriangulated)
}

func TestApplyCredibilityFloor_DropsLowCredibilitySingleton(t *testing.T) {
	evs := []model.Evidence{
		evAt("lowcred-singleton.com", 0.3, 0.5, false),
		evAt("other.com", 0.5, 0.5, false),
		evAt("other.com", 0.5, 0.5, false),
	}
	out := applyCredibilityFloor(evs, trustedSet(nil), DefaultOptions())
	for _, ev := range out {
		assert.NotEqual(t, "lowcred-singleton.com", ev.SourceDomain)
	}
}

func TestApplyCredibilityFloor_KeepsHighCredibilitySingleton(t *testing.T) {
	evs := []model.Evidence{
		evAt("highcred-singleton.com", 0.9, 0.5, false),
	}
	out := applyCredibilityFloor(evs, trustedSet(nil), DefaultOptions())
	require.Len(t, out, 1)
}

func TestApplyCredibilityFloor_TrustedBypassesFloorEntirely(t *testing.T) {
	evs := []model.Evidence{
		evAt("worldbank.org", 0.1, 0.5, false),
	}
	out := applyCredibilityFloor(evs, trustedSet(nil), DefaultOptions())
	require.Len(t, out, 1)
	assert.Less(t, out[0].CredibilityScore, 0.1) // downweighted, not dropped
}

func TestApply_SignalsBackfillWhenBelowMinCards(t *testing.T) {
	evs := []model.Evidence{
		evAt("a.com", 0.9, 0.9, false),
	}
	result := Apply(evs, DefaultOptions())
	assert.True(t, result.NeedsBackfill)
}

func TestApply_NoBackfillWhenAboveMinCards(t *testing.T) {
	domains := []string{"a.com", "b.com", "c.com", "d.com", "e.com", "f.com", "g.com", "h.com"}
	var varied []model.Evidence
	for i := 0; i < 30; i++ {
		varied = append(varied, evAt(domains[i%len(domains)], 0.9, 0.9, true))
	}
	result := Apply(varied, DefaultOptions())
	assert.False(t, result.NeedsBackfill)
}
