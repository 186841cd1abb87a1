package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dlevien/research-agent/internal/model"
)

// FinalReportInput bundles everything RenderFinalReport needs: the
// ordered evidence set, the paraphrase/structured clusters from the
// Triangulator, and the gate decision that authorized a final report.
type FinalReportInput struct {
	Topic          string
	Evidence       []model.Evidence
	Clusters       []model.Cluster
	StructuredTris map[string][]model.StructuredClaim
	Decision       model.GateDecision
}

// RenderFinalReport builds the markdown final report: Key Findings
// (triangulated clusters first, then every non-triangulated primary-source
// record that has a claim or quote; no numeric or period check is applied
// to these), then Key Numbers (claims with ≥2 distinct supporting domains,
// or ≥1 primary-whitelisted domain) (spec §4.13).
func RenderFinalReport(in FinalReportInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Research Report: %s\n\n", in.Topic)
	fmt.Fprintf(&sb, "Confidence: %s\n\n", in.Decision.Confidence)

	sb.WriteString("## Key Findings\n\n")
	writeTriangulatedFindings(&sb, in.Clusters)
	writePrimarySingleSourceFindings(&sb, in.Evidence)

	sb.WriteString("\n## Key Numbers\n\n")
	writeKeyNumbers(&sb, in.Evidence, in.StructuredTris)

	return sb.String()
}

func writeTriangulatedFindings(sb *strings.Builder, clusters []model.Cluster) {
	for _, cl := range clusters {
		if !cl.Triangulated() {
			continue
		}
		flag := ""
		if cl.NeedsReview {
			flag = " (needs review)"
		}
		fmt.Fprintf(sb, "- %s — corroborated across %d sources%s\n", cl.RepresentativeText, len(cl.Domains), flag)
	}
}

func writePrimarySingleSourceFindings(sb *strings.Builder, evs []model.Evidence) {
	for _, ev := range evs {
		if ev.IsTriangulated || !ev.IsPrimarySource {
			continue
		}
		if ev.Claim == "" && ev.BestQuote == "" {
			continue
		}
		text := ev.Claim
		if text == "" {
			text = ev.BestQuote
		}
		fmt.Fprintf(sb, "- %s (%s)\n", text, ev.SourceDomain)
	}
}

func writeKeyNumbers(sb *strings.Builder, evs []model.Evidence, tris map[string][]model.StructuredClaim) {
	domainOf := make(map[string]string, len(evs))
	primaryOf := make(map[string]bool, len(evs))
	for _, ev := range evs {
		domainOf[ev.ID] = ev.SourceDomain
		primaryOf[ev.ID] = ev.IsPrimarySource
	}

	var keys []string
	for k := range tris {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		claims := tris[key]
		domains := make(map[string]bool)
		hasPrimary := false
		for _, c := range claims {
			domains[domainOf[c.SourceEvidenceID]] = true
			if primaryOf[c.SourceEvidenceID] {
				hasPrimary = true
			}
		}
		if len(domains) < 2 && !hasPrimary {
			continue
		}
		c := claims[0]
		fmt.Fprintf(sb, "- %s %s: %g %s (%s)\n", c.Entity, c.Metric, c.Value, c.Unit, c.Period)
	}
}
