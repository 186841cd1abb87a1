// Package model holds the data types shared across the research pipeline:
// evidence records, clusters, structured claims, provider state and run
// metrics. Types here are plain records; cross-references (e.g. disputed_by)
// are represented by id, never by pointer, so the model stays serializable
// and free of cycles.
package model

import "time"

// Stance describes how an evidence record relates to the claim it supports.
type Stance string

const (
	StanceSupports Stance = "supports"
	StanceDisputes Stance = "disputes"
	StanceNeutral  Stance = "neutral"
)

// Provider is the fixed enum of provider tags a hit can be attributed to.
// The constants below cover both the general search providers and the
// compiled-in vertical providers; the provider registry does not extend
// this set.
type Provider string

const (
	ProviderSerpAPI    Provider = "serpapi"
	ProviderSerper     Provider = "serper"
	ProviderBrave      Provider = "brave"
	ProviderTavily     Provider = "tavily"
	ProviderOpenAlex   Provider = "openalex"
	ProviderNPS        Provider = "nps"
	ProviderWorldBank  Provider = "worldbank"
	ProviderOECD       Provider = "oecd"
	ProviderEurostat   Provider = "eurostat"
	ProviderUnknown    Provider = "unknown"
)

// Evidence is the atomic unit of the pipeline. See spec §3 for invariants:
// Snippet is never empty after normalization; all *Score fields lie in
// [0,1]; CanonicalID is deterministic from DOI when present, else from the
// canonical URL fingerprint.
type Evidence struct {
	ID          string `json:"id"`
	CanonicalID string `json:"canonical_id"`

	Provider      Provider `json:"provider"`
	URL           string   `json:"url"`
	CanonicalURL  string   `json:"canonical_url"`
	SourceDomain  string   `json:"source_domain"`

	Title          string `json:"title"`
	Snippet        string `json:"snippet"`
	BestQuote      string `json:"supporting_text,omitempty"`
	Claim          string `json:"claim,omitempty"`
	SubtopicName   string `json:"subtopic_name,omitempty"`

	PublicationDate *time.Time `json:"publication_date,omitempty"`
	CollectedAt     time.Time  `json:"collected_at"`

	CredibilityScore float64 `json:"credibility_score"`
	RelevanceScore   float64 `json:"relevance_score"`
	Confidence       float64 `json:"confidence"`

	IsPrimarySource bool `json:"is_primary_source"`
	IsTriangulated  bool `json:"is_triangulated"`

	ClusterID string `json:"cluster_id,omitempty"`
	Family    string `json:"family,omitempty"`

	ControversyScore float64  `json:"controversy_score"`
	Stance           Stance   `json:"stance"`
	DisputedBy       []string `json:"disputed_by,omitempty"`

	// Reachability is set by the Enricher: 1.0 normally, 0 on a paywall
	// signal (402/403/451 or a known paywall domain). The record is kept
	// either way.
	Reachability float64 `json:"reachability"`
}

// Clamp01 clamps a score into [0,1], guarding against upstream arithmetic
// (credibility * relevance, downweight multipliers) drifting out of range.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RejectReason explains why a raw hit failed evidence validation (spec §6,
// §7): the record is routed to evidence_cards.errors.jsonl rather than
// dropped silently.
type RejectReason struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// RejectedEvidence pairs a best-effort partial record with why it failed
// validation, for the errors file.
type RejectedEvidence struct {
	Raw     map[string]any `json:"raw"`
	Reasons []RejectReason `json:"reasons"`
}
