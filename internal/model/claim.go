package model

// StructuredClaim is a numeric fact extracted from evidence text, used both
// for structured-claim triangulation (C8) and the final report's "Key
// Numbers" section. Period is free-form ("2023", "Q2 2024", "2019-2023")
// because the source text rarely normalizes to one shape.
type StructuredClaim struct {
	Entity string  `json:"entity,omitempty"`
	Metric string  `json:"metric"`
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`

	// SourceEvidenceID is the evidence record this claim was extracted from.
	SourceEvidenceID string `json:"source_evidence_id"`
}

// CanonicalKey returns the bucket key used for structured-claim matching:
// (entity, metric, period), case-insensitive and unit-normalized by the
// caller before bucketing (see internal/triangulate).
type CanonicalKey struct {
	Entity string
	Metric string
	Period string
}

// Cluster is a set of evidence records sharing a paraphrase or a structured
// claim key. A cluster is triangulated iff it spans ≥2 distinct domains.
type Cluster struct {
	ID       string   `json:"id"`
	Members  []string `json:"indices"`
	Domains  []string `json:"domains"`
	Size     int      `json:"size"`

	RepresentativeID   string `json:"representative_id"`
	RepresentativeText string `json:"representative_text"`

	// StructuredKey is set when this cluster came from structured-claim
	// bucketing rather than paraphrase clustering.
	StructuredKey *CanonicalKey `json:"key,omitempty"`

	NeedsReview bool `json:"needs_review,omitempty"`
}

// Triangulated reports whether the cluster counts as corroborated: at least
// two distinct source domains among its members.
func (c *Cluster) Triangulated() bool {
	return len(c.Domains) >= 2
}
