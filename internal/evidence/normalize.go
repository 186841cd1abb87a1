// Package evidence implements the Normalizer (C5) and Canonicalizer/
// Deduper (C6) of spec §4.5-§4.6: turning raw provider hits into Evidence
// records with bounded, non-empty snippets and deterministic canonical
// ids, then collapsing duplicates and near-duplicates.
package evidence

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	dps "github.com/markusmobius/go-dateparser"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/dlevien/research-agent/internal/providers"
)

const maxSnippetLen = 500

// Normalize converts one provider Hit into an Evidence record, applying
// the snippet-repair chain, domain-tier credibility, topic relevance, and
// primary-source classification of spec §4.5. now is injected for
// deterministic tests.
func Normalize(hit providers.Hit, provider providers.Kind, tag, topic string, now time.Time) model.Evidence {
	domain := registeredDomain(hit.URL)

	snippet := repairSnippet(hit.Snippet, hit.Quote, hit.Title, domain)
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen]
	}

	cred := CredibilityScore(domain)
	rel := RelevanceScore(topic, hit.Title, snippet)

	ev := model.Evidence{
		ID:               uuid.NewString(),
		Provider:         model.Provider(tag),
		URL:              hit.URL,
		SourceDomain:     domain,
		Title:            hit.Title,
		Snippet:          snippet,
		BestQuote:        hit.Quote,
		CollectedAt:      now,
		CredibilityScore: model.Clamp01(cred),
		RelevanceScore:   model.Clamp01(rel),
		Confidence:       model.Clamp01(cred * rel),
		IsPrimarySource:  isPrimaryDomain(domain),
		Reachability:     1.0,
		Stance:           model.StanceNeutral,
	}
	if d, ok := parsePublicationDate(hit.PublishedAt); ok {
		ev.PublicationDate = &d
	}
	return ev
}

// Validate checks a normalized Evidence record against the evidence_cards.jsonl
// schema (spec §6/§9): non-empty identity/content fields and scores in
// [0,1]. Claim, SubtopicName, and BestQuote are deliberately not checked here
// — they are populated later by the Triangulator and Report Dispatcher, not
// at normalization time. A non-empty result means the record belongs in
// evidence_cards.errors.jsonl instead of the accepted set.
func Validate(ev model.Evidence) []model.RejectReason {
	var reasons []model.RejectReason
	if strings.TrimSpace(ev.ID) == "" {
		reasons = append(reasons, model.RejectReason{Field: "id", Reason: "missing"})
	}
	if strings.TrimSpace(ev.URL) == "" {
		reasons = append(reasons, model.RejectReason{Field: "url", Reason: "missing"})
	}
	if strings.TrimSpace(ev.SourceDomain) == "" {
		reasons = append(reasons, model.RejectReason{Field: "source_domain", Reason: "unresolvable from url"})
	}
	if strings.TrimSpace(ev.Snippet) == "" {
		reasons = append(reasons, model.RejectReason{Field: "snippet", Reason: "empty"})
	}
	if strings.TrimSpace(string(ev.Provider)) == "" {
		reasons = append(reasons, model.RejectReason{Field: "provider", Reason: "missing"})
	}
	if ev.CollectedAt.IsZero() {
		reasons = append(reasons, model.RejectReason{Field: "collected_at", Reason: "missing"})
	}
	if ev.CredibilityScore < 0 || ev.CredibilityScore > 1 {
		reasons = append(reasons, model.RejectReason{Field: "credibility_score", Reason: "out of [0,1]"})
	}
	if ev.RelevanceScore < 0 || ev.RelevanceScore > 1 {
		reasons = append(reasons, model.RejectReason{Field: "relevance_score", Reason: "out of [0,1]"})
	}
	if ev.Confidence < 0 || ev.Confidence > 1 {
		reasons = append(reasons, model.RejectReason{Field: "confidence", Reason: "out of [0,1]"})
	}
	return reasons
}

// RejectedFrom builds the best-effort partial record recorded alongside a
// validation failure, for evidence_cards.errors.jsonl.
func RejectedFrom(ev model.Evidence, reasons []model.RejectReason) model.RejectedEvidence {
	return model.RejectedEvidence{
		Raw: map[string]any{
			"id":            ev.ID,
			"url":           ev.URL,
			"source_domain": ev.SourceDomain,
			"provider":      string(ev.Provider),
			"title":         ev.Title,
			"snippet":       ev.Snippet,
		},
		Reasons: reasons,
	}
}

// repairSnippet applies the synthesis chain of spec §4.5 when the
// provider-supplied snippet is empty or whitespace: quote, then
// title-prefixed excerpt, then a domain-naming placeholder, then a final
// generic placeholder.
func repairSnippet(snippet, quote, title, domain string) string {
	if strings.TrimSpace(snippet) != "" {
		return strings.TrimSpace(snippet)
	}
	if strings.TrimSpace(quote) != "" {
		return strings.TrimSpace(quote)
	}
	if strings.TrimSpace(title) != "" {
		prefixed := "Content: " + strings.TrimSpace(title)
		if len(prefixed) > 280 {
			prefixed = prefixed[:280]
		}
		return prefixed
	}
	if domain != "" {
		return fmt.Sprintf("Source content from %s", domain)
	}
	return "Content available at source"
}

// parsePublicationDate interprets a provider's free-text date string.
// Providers are free-form here (spec leaves the raw format to the
// Normalizer to interpret); unparseable or empty strings are silently
// dropped since PublicationDate is optional.
func parsePublicationDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	parser := dps.Parser{}
	cfg := &dps.Configuration{PreferredDateSource: dps.CurrentPeriod}
	parsed, err := parser.Parse(cfg, raw)
	if err != nil || parsed.IsZero() {
		return time.Time{}, false
	}
	return parsed.Time, true
}
