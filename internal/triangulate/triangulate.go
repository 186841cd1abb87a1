// Package triangulate implements the Triangulator (C8): paraphrase
// clustering over a pluggable similarity oracle, structured-claim bucketing,
// and the union triangulation rate the Gate Evaluator reads.
package triangulate

import (
	"context"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var logger = logging.GetLogger("triangulate")

// Result bundles the Triangulator's output. Evidence passed to Run is
// mutated in place (IsTriangulated, ClusterID); Clusters and StructuredTris
// are returned separately for report assembly.
type Result struct {
	Clusters       []model.Cluster
	StructuredTris map[string][]model.StructuredClaim
	UnionRate      float64
}

// Run clusters evs by paraphrase similarity and by structured-claim
// matching, flags triangulated evidence in place, and computes the union
// triangulation rate (spec §4.8).
func Run(ctx context.Context, evs []model.Evidence, clusterer *Clusterer) Result {
	if len(evs) == 0 {
		return Result{StructuredTris: map[string][]model.StructuredClaim{}}
	}

	clusters := clusterer.Cluster(ctx, evs)

	byID := make(map[string]int, len(evs))
	for i, ev := range evs {
		byID[ev.ID] = i
	}

	triangulated := make(map[string]bool)
	for _, cl := range clusters {
		if !cl.Triangulated() {
			continue
		}
		for _, mid := range cl.Members {
			idx, ok := byID[mid]
			if !ok {
				continue
			}
			evs[idx].IsTriangulated = true
			evs[idx].ClusterID = cl.ID
			triangulated[mid] = true
		}
	}

	var claims []model.StructuredClaim
	domainOf := make(map[string]string, len(evs))
	for _, ev := range evs {
		domainOf[ev.ID] = ev.SourceDomain
		claims = append(claims, ExtractClaims(ev)...)
	}
	triangles := BucketClaims(claims, domainOf)
	for _, members := range triangles {
		for _, c := range members {
			if idx, ok := byID[c.SourceEvidenceID]; ok {
				evs[idx].IsTriangulated = true
				triangulated[c.SourceEvidenceID] = true
			}
		}
	}

	rate := float64(len(triangulated)) / float64(len(evs))
	logger.Info("triangulation complete: %d/%d evidence triangulated (%.2f), %d clusters, %d structured buckets",
		len(triangulated), len(evs), rate, len(clusters), len(triangles))

	return Result{
		Clusters:       clusters,
		StructuredTris: triangles,
		UnionRate:      rate,
	}
}
