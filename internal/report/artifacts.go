package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dlevien/research-agent/internal/gate"
	"github.com/dlevien/research-agent/internal/model"
)

// triangulationDoc is the exact shape spec §6 names for triangulation.json:
// paraphrase clusters and structured-claim triangles, both rendered through
// model.Cluster's indices/domains/size/key schema.
type triangulationDoc struct {
	ParaphraseClusters  []model.Cluster `json:"paraphrase_clusters"`
	StructuredTriangles []model.Cluster `json:"structured_triangles"`
}

// writeCoreArtifacts writes the run-directory's primary, non-renderer
// outputs: evidence_cards.jsonl (accepted records), evidence_cards.errors.jsonl
// (rejected records), and triangulation.json (spec §6). metrics.json is
// owned by internal/gate's write-then-reload discipline and is not written
// here.
func writeCoreArtifacts(runDir string, evs []model.Evidence, rejected []model.RejectedEvidence, clusters []model.Cluster, structuredTris map[string][]model.StructuredClaim) error {
	ordered := gate.OrderForWriting(evs)

	if err := writeJSONL(filepath.Join(runDir, "evidence_cards.jsonl"), ordered); err != nil {
		return fmt.Errorf("write evidence_cards.jsonl: %w", err)
	}
	if err := writeJSONL(filepath.Join(runDir, "evidence_cards.errors.jsonl"), rejected); err != nil {
		return fmt.Errorf("write evidence_cards.errors.jsonl: %w", err)
	}

	domainOf := make(map[string]string, len(evs))
	for _, ev := range evs {
		domainOf[ev.ID] = ev.SourceDomain
	}
	doc := triangulationDoc{
		ParaphraseClusters:  clusters,
		StructuredTriangles: structuredClusters(structuredTris, domainOf),
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal triangulation.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "triangulation.json"), b, 0o644); err != nil {
		return fmt.Errorf("write triangulation.json: %w", err)
	}
	return nil
}

// structuredClusters reshapes the Triangulator's per-key claim buckets into
// the same indices/domains/size/key schema paraphrase clusters use, so both
// halves of triangulation.json share one record shape.
func structuredClusters(tris map[string][]model.StructuredClaim, domainOf map[string]string) []model.Cluster {
	out := make([]model.Cluster, 0, len(tris))
	for key, members := range tris {
		var indices []string
		domains := make(map[string]bool)
		for _, c := range members {
			indices = append(indices, c.SourceEvidenceID)
			if d := domainOf[c.SourceEvidenceID]; d != "" {
				domains[d] = true
			}
		}
		domainList := make([]string, 0, len(domains))
		for d := range domains {
			domainList = append(domainList, d)
		}
		first := members[0]
		out = append(out, model.Cluster{
			ID:      key,
			Members: indices,
			Domains: domainList,
			Size:    len(indices),
			StructuredKey: &model.CanonicalKey{
				Entity: first.Entity,
				Metric: first.Metric,
				Period: first.Period,
			},
		})
	}
	return out
}

func writeJSONL[T any](path string, records []T) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
