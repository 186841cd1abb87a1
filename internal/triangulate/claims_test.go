package triangulate

import (
	"testing"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractClaims_FindsMetricNumberAndYear(t *testing.T) {
	e := model.Evidence{ID: "1", Title: "GDP report", Snippet: "GDP growth reached 3.2 percent in 2024."}
	claims := ExtractClaims(e)
	require.Len(t, claims, 1)
	assert.Equal(t, "growth", claims[0].Metric)
	assert.Equal(t, 3.2, claims[0].Value)
	assert.Contains(t, claims[0].Period, "2024")
}

func TestExtractClaims_NoMetricKeyword_ReturnsNil(t *testing.T) {
	e := model.Evidence{ID: "1", Title: "x", Snippet: "a pleasant walk through the park on a sunny day"}
	assert.Nil(t, ExtractClaims(e))
}

func TestBucketClaims_RequiresTwoDistinctDomains(t *testing.T) {
	claims := []model.StructuredClaim{
		{SourceEvidenceID: "1", Entity: "gdp report", Metric: "growth", Period: "2024"},
		{SourceEvidenceID: "2", Entity: "gdp report", Metric: "growth", Period: "2024"},
	}
	sameDomain := map[string]string{"1": "a.com", "2": "a.com"}
	assert.Empty(t, BucketClaims(claims, sameDomain))

	diffDomain := map[string]string{"1": "a.com", "2": "b.com"}
	buckets := BucketClaims(claims, diffDomain)
	assert.Len(t, buckets, 1)
}
