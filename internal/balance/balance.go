// Package balance implements the Domain Balancer (C9) and Credibility
// Floor (C10): per-domain/family cap enforcement and singleton-domain
// credibility filtering, applied after triangulation and before the gate
// evaluator sees the evidence set.
package balance

import (
	"math"
	"sort"
	"strings"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var logger = logging.GetLogger("balance")

const defaultMinCards = 24

// domainFamilies groups related hosts so that sibling subdomains of the
// same organization cannot evade the per-domain cap by fanning out across
// subdomains (spec §4.9: "e.g., .gov subdomains, an org and its
// subsidiaries").
var domainFamilies = map[string]string{
	"bls.gov":         "us-gov-stats",
	"bea.gov":         "us-gov-stats",
	"census.gov":      "us-gov-stats",
	"treasury.gov":    "us-gov-stats",
	"cbo.gov":         "us-gov-stats",
	"federalreserve.gov": "us-gov-stats",
	"ecb.europa.eu":   "eu-official",
	"europa.eu":       "eu-official",
	"eurostat.ec.europa.eu": "eu-official",
	"nytimes.com":     "nyt-group",
	"wsj.com":         "dowjones-group",
	"marketwatch.com": "dowjones-group",
}

// builtinPrimaryAllowlist is the built-in half of the trusted-domain
// allowlist that bypasses the credibility floor entirely (spec §4.10).
var builtinPrimaryAllowlist = map[string]bool{
	"worldbank.org": true, "imf.org": true, "oecd.org": true, "un.org": true,
	"who.int": true, "nps.gov": true, "census.gov": true, "bls.gov": true,
	"bea.gov": true, "cdc.gov": true, "nih.gov": true, "arxiv.org": true,
}

// whitelistedSingletonDownweight applies when a singleton domain is
// explicitly trusted but still the only source for a claim (spec §4.10:
// "keep but multiply credibility by a downweight factor").
const whitelistedSingletonDownweight = 0.85

// familyOf returns the domain-family tag for domain, or domain itself if
// it belongs to no explicit family.
func familyOf(domain string) string {
	if fam, ok := domainFamilies[domain]; ok {
		return fam
	}
	return domain
}

// Options configures a balance pass; zero-value Options uses spec defaults.
type Options struct {
	Cap            float64 // default 0.25
	CapRelaxed     float64 // default 0.40, used when unique domains < 6
	MinCards       int     // default 24
	TrustedDomains []string
	SingletonFloor float64 // default 0.7
	Downweight     float64 // default 0.85
}

// DefaultOptions returns the spec §4.9/§4.10 default thresholds.
func DefaultOptions() Options {
	return Options{
		Cap:            0.25,
		CapRelaxed:     0.40,
		MinCards:       defaultMinCards,
		SingletonFloor: 0.7,
		Downweight:     whitelistedSingletonDownweight,
	}
}

// Result reports whether the post-filter evidence count fell below
// MinCards, which signals the Backfill Controller (spec §4.9, §4.11).
type Result struct {
	Evidence      []model.Evidence
	NeedsBackfill bool
	DroppedCount  int
}

// Apply runs the domain cap (C9), then the credibility floor (C10), then
// re-applies the domain cap if floor filtering left any domain over its
// cap (spec §4.10: "reapply §4.9 if domain concentration rose above cap").
func Apply(evs []model.Evidence, opts Options) Result {
	trusted := trustedSet(opts.TrustedDomains)

	capped := applyDomainCap(evs, opts)
	floored := applyCredibilityFloor(capped, trusted, opts)
	final := applyDomainCap(floored, opts)

	needsBackfill := len(final) < minCards(opts)
	if needsBackfill {
		logger.Info("post-balance evidence count %d below min_cards %d, signaling backfill", len(final), minCards(opts))
	}

	return Result{
		Evidence:      final,
		NeedsBackfill: needsBackfill,
		DroppedCount:  len(evs) - len(final),
	}
}

func minCards(opts Options) int {
	if opts.MinCards > 0 {
		return opts.MinCards
	}
	return defaultMinCards
}

func trustedSet(extra []string) map[string]bool {
	set := make(map[string]bool, len(builtinPrimaryAllowlist)+len(extra))
	for d := range builtinPrimaryAllowlist {
		set[d] = true
	}
	for _, d := range extra {
		set[strings.ToLower(strings.TrimSpace(d))] = true
	}
	return set
}

// applyDomainCap implements spec §4.9: cap each domain/family at
// max(1, floor(cap*N)) kept records, relaxing the cap when unique domains
// are scarce, keeping the highest (is_triangulated, credibility*relevance)
// records within each group.
func applyDomainCap(evs []model.Evidence, opts Options) []model.Evidence {
	if len(evs) == 0 {
		return evs
	}

	uniqueDomains := make(map[string]bool)
	for _, ev := range evs {
		uniqueDomains[ev.SourceDomain] = true
	}

	capRatio := opts.Cap
	if capRatio <= 0 {
		capRatio = 0.25
	}
	if len(uniqueDomains) < 6 {
		relaxed := opts.CapRelaxed
		if relaxed <= 0 {
			relaxed = 0.40
		}
		capRatio = relaxed
	}

	byFamily := make(map[string][]int)
	for i, ev := range evs {
		fam := familyOf(ev.SourceDomain)
		byFamily[fam] = append(byFamily[fam], i)
	}

	n := len(evs)
	keepLimit := int(math.Max(1, math.Floor(capRatio*float64(n))))

	keep := make(map[int]bool, n)
	for _, idxs := range byFamily {
		sort.SliceStable(idxs, func(a, b int) bool {
			ea, eb := evs[idxs[a]], evs[idxs[b]]
			if ea.IsTriangulated != eb.IsTriangulated {
				return ea.IsTriangulated
			}
			return ea.CredibilityScore*ea.RelevanceScore > eb.CredibilityScore*eb.RelevanceScore
		})
		limit := keepLimit
		if limit > len(idxs) {
			limit = len(idxs)
		}
		for _, idx := range idxs[:limit] {
			keep[idx] = true
		}
	}

	out := make([]model.Evidence, 0, len(keep))
	for i, ev := range evs {
		if keep[i] {
			out = append(out, ev)
		}
	}
	return out
}

// applyCredibilityFloor implements spec §4.10: trusted domains bypass the
// floor; other singleton domains are dropped unless credibility >= floor;
// whitelisted singletons (explicitly trusted but still alone) are kept
// with a downweighted credibility score instead of being dropped.
func applyCredibilityFloor(evs []model.Evidence, trusted map[string]bool, opts Options) []model.Evidence {
	floor := opts.SingletonFloor
	if floor <= 0 {
		floor = 0.7
	}
	downweight := opts.Downweight
	if downweight <= 0 {
		downweight = whitelistedSingletonDownweight
	}

	counts := make(map[string]int)
	for _, ev := range evs {
		counts[ev.SourceDomain]++
	}

	out := make([]model.Evidence, 0, len(evs))
	for _, ev := range evs {
		isSingleton := counts[ev.SourceDomain] == 1
		isTrusted := trusted[ev.SourceDomain]

		if isTrusted {
			if isSingleton {
				ev.CredibilityScore = model.Clamp01(ev.CredibilityScore * downweight)
			}
			out = append(out, ev)
			continue
		}

		if isSingleton && ev.CredibilityScore < floor {
			logger.Debug("dropping singleton-domain evidence %s (credibility %.2f below floor %.2f)", ev.SourceDomain, ev.CredibilityScore, floor)
			continue
		}
		out = append(out, ev)
	}
	return out
}
