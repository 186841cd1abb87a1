package triangulate

import (
	"testing"

	"github.com/dlevien/research-agent/internal/intent/oracle"
	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(id, domain, text string, credibility float64, primary bool) model.Evidence {
	return model.Evidence{
		ID:               id,
		SourceDomain:     domain,
		Title:            text,
		Snippet:          text,
		CredibilityScore: credibility,
		IsPrimarySource:  primary,
	}
}

func TestCluster_GroupsSimilarParaphrasesAcrossDomains(t *testing.T) {
	evs := []model.Evidence{
		ev("1", "a.com", "global gdp growth reached 3.2 percent in 2024", 0.6, false),
		ev("2", "b.com", "world gdp growth hit 3.2 percent during 2024", 0.8, false),
		ev("3", "c.com", "completely unrelated statement about birds", 0.5, false),
	}
	c := NewClusterer(oracle.LexicalFallback{}, 0.35)
	clusters := c.Cluster(t.Context(), evs)

	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"1", "2"}, clusters[0].Members)
	assert.Equal(t, "2", clusters[0].RepresentativeID) // higher credibility wins tie-break
}

func TestCluster_NumericMismatchSplitsCluster(t *testing.T) {
	evs := []model.Evidence{
		ev("1", "a.com", "inflation rose by 3 percent this year across the region", 0.5, false),
		ev("2", "b.com", "inflation rose by 3 percent this year across the region", 0.5, false),
		ev("3", "c.com", "inflation rose by 9 percent this year across the region", 0.5, false),
	}
	c := NewClusterer(oracle.LexicalFallback{}, 0.30)
	clusters := c.Cluster(t.Context(), evs)

	for _, cl := range clusters {
		nums := map[string]bool{}
		for _, m := range cl.Members {
			nums[m] = true
		}
		assert.False(t, nums["1"] && nums["3"], "evidence with differing numeric tokens must not share a cluster")
	}
}

func TestSelectRepresentative_PrimaryBeatsHigherCredibility(t *testing.T) {
	evs := []model.Evidence{
		ev("1", "a.com", "x", 0.9, false),
		ev("2", "b.com", "x", 0.5, true),
	}
	best := selectRepresentative(evs, []int{0, 1})
	assert.Equal(t, 1, best)
}

func TestDirectionalContradictionSplit_DropsTwoSidedCluster(t *testing.T) {
	evs := []model.Evidence{
		ev("1", "a.com", "the new policy is safe for residents nearby", 0.5, false),
		ev("2", "b.com", "the new policy is safe according to officials", 0.5, false),
		ev("3", "c.com", "the new policy is unsafe according to critics", 0.5, false),
		ev("4", "d.com", "the new policy is unsafe for nearby residents", 0.5, false),
	}
	c := NewClusterer(oracle.LexicalFallback{}, 0.20)
	clusters := c.Cluster(t.Context(), evs)
	for _, cl := range clusters {
		assert.LessOrEqual(t, len(cl.Members), 3, "a two-sided contradiction cluster should be dropped")
	}
}
