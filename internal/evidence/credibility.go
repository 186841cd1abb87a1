package evidence

import "strings"

// domainTier ranks a source domain for credibility scoring (spec §4.5:
// "domain-tier table (primary/official > academic > think tank > media >
// blog)"). Higher is more credible.
type domainTier int

const (
	tierBlog domainTier = iota
	tierMedia
	tierThinkTank
	tierAcademic
	tierPrimary
)

var tierScore = map[domainTier]float64{
	tierBlog:      0.35,
	tierMedia:     0.55,
	tierThinkTank: 0.65,
	tierAcademic:  0.85,
	tierPrimary:   0.95,
}

// primarySuffixes are wildcard-matched against a domain's end (spec §4.5:
// ".gov/.edu wildcard patterns").
var primarySuffixes = []string{".gov", ".edu", ".int", ".mil"}

// primaryDomains is the built-in set of official/statistical-agency
// domains treated as primary regardless of suffix (also the seed for the
// trusted-domain allowlist in the Credibility Floor, spec §4.10).
var primaryDomains = map[string]bool{
	"oecd.org":        true,
	"worldbank.org":   true,
	"imf.org":         true,
	"ec.europa.eu":    true,
	"eurostat.ec.europa.eu": true,
	"who.int":         true,
	"un.org":          true,
	"nps.gov":         true,
	"census.gov":      true,
	"bls.gov":         true,
	"sec.gov":         true,
	"federalreserve.gov": true,
}

var academicDomains = map[string]bool{
	"openalex.org":    true,
	"arxiv.org":       true,
	"ncbi.nlm.nih.gov": true,
	"pubmed.ncbi.nlm.nih.gov": true,
	"nature.com":      true,
	"sciencedirect.com": true,
	"jstor.org":       true,
}

var thinkTankDomains = map[string]bool{
	"brookings.edu":  true, // .edu already covers this, kept for explicitness
	"pewresearch.org": true,
	"rand.org":       true,
	"cfr.org":        true,
}

var mediaDomains = map[string]bool{
	"reuters.com":  true,
	"apnews.com":   true,
	"bbc.com":      true,
	"nytimes.com":  true,
	"theguardian.com": true,
	"bloomberg.com": true,
	"wsj.com":      true,
}

// classifyDomainTier assigns a domain its tier, falling back to blog for
// anything unrecognized (spec §4.5's table is intentionally conservative:
// an unknown domain is never assumed credible).
func classifyDomainTier(domain string) domainTier {
	d := strings.ToLower(domain)
	if primaryDomains[d] {
		return tierPrimary
	}
	for _, suf := range primarySuffixes {
		if strings.HasSuffix(d, suf) {
			return tierPrimary
		}
	}
	if academicDomains[d] {
		return tierAcademic
	}
	if thinkTankDomains[d] {
		return tierThinkTank
	}
	if mediaDomains[d] {
		return tierMedia
	}
	return tierBlog
}

// CredibilityScore returns the domain-tier credibility score in [0,1] for
// domain (spec §4.5).
func CredibilityScore(domain string) float64 {
	return tierScore[classifyDomainTier(domain)]
}

// isPrimaryDomain reports whether domain counts as a primary source under
// the intent-scoped primary pool plus .gov/.edu/.int/.mil wildcard rule
// (spec §4.5's is_primary_source computation). Intent-specific pools are
// folded into the shared primaryDomains/academicDomains sets above rather
// than kept per-intent, since every intent in spec §4.1's table treats
// statistical agencies and .gov/.edu sources as primary.
func isPrimaryDomain(domain string) bool {
	return classifyDomainTier(domain) == tierPrimary
}

// RelevanceScore scores topic-token overlap against title+snippet text
// (spec §4.5: "relevance_score from topic-token overlap on title+snippet").
func RelevanceScore(topic, title, snippet string) float64 {
	topicTokens := tokenize(topic)
	if len(topicTokens) == 0 {
		return 0
	}
	textTokens := tokenSet(tokenize(title + " " + snippet))

	hits := 0
	for _, t := range topicTokens {
		if textTokens[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(topicTokens))
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]bool {
	out := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		out[t] = true
	}
	return out
}
