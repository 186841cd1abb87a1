package evidence

import (
	"testing"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup_CollapsesByCanonicalID_KeepsHigherCredibility(t *testing.T) {
	evs := []model.Evidence{
		{CanonicalID: "url:abc", SourceDomain: "a.com", Title: "one", CredibilityScore: 0.4},
		{CanonicalID: "url:abc", SourceDomain: "a.com", Title: "one", CredibilityScore: 0.9},
	}
	kept, _ := Dedup(evs)
	require.Len(t, kept, 1)
	assert.Equal(t, 0.9, kept[0].CredibilityScore)
}

func TestDedup_CollapsesNearDuplicateTitles(t *testing.T) {
	evs := []model.Evidence{
		{CanonicalID: "url:1", SourceDomain: "a.com", Title: "Global GDP growth slows in 2024", CredibilityScore: 0.5},
		{CanonicalID: "url:2", SourceDomain: "a.com", Title: "Global GDP growth slows in 2024!", CredibilityScore: 0.7},
	}
	kept, _ := Dedup(evs)
	require.Len(t, kept, 1)
	assert.Equal(t, 0.7, kept[0].CredibilityScore)
}

func TestDedup_KeepsDistinctTitlesOnDifferentDomains(t *testing.T) {
	evs := []model.Evidence{
		{CanonicalID: "url:1", SourceDomain: "a.com", Title: "Global GDP growth slows", CredibilityScore: 0.5, Snippet: "a"},
		{CanonicalID: "url:2", SourceDomain: "b.com", Title: "Unrelated headline entirely", CredibilityScore: 0.5, Snippet: "b"},
	}
	kept, _ := Dedup(evs)
	assert.Len(t, kept, 2)
}

func TestDedup_CollapsesSyndicatedContent(t *testing.T) {
	text := "The central bank raised interest rates by half a percentage point on Tuesday, citing persistent inflation pressures across the economy."
	evs := []model.Evidence{
		{CanonicalID: "url:1", SourceDomain: "a.com", Title: "Rate hike A", Snippet: text, CredibilityScore: 0.5},
		{CanonicalID: "url:2", SourceDomain: "b.com", Title: "Rate hike B", Snippet: text, CredibilityScore: 0.8},
	}
	kept, _ := Dedup(evs)
	require.Len(t, kept, 1)
	assert.Equal(t, 0.8, kept[0].CredibilityScore)
}

func TestCanonicalize_NonDOIURL_LeavesCanonicalIDAsURLFingerprint(t *testing.T) {
	ev := model.Evidence{URL: "https://example.com/a?utm_source=x"}
	Canonicalize(t.Context(), &ev, nil, "")
	assert.Equal(t, "https://example.com/a", ev.CanonicalURL)
	assert.Regexp(t, `^url:[0-9a-f]{16}$`, ev.CanonicalID)
}

func TestCanonicalize_WithDOI(t *testing.T) {
	ev := model.Evidence{URL: "https://example.com/a"}
	Canonicalize(t.Context(), &ev, nil, "10.1/xyz")
	assert.Equal(t, "doi:10.1/xyz", ev.CanonicalID)
}
