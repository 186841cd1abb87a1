package evidence

import (
	"context"
	"net/http"
	"time"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var dedupLogger = logging.GetLogger("evidence.dedup")

const (
	titleJaccardThreshold   = 0.90
	shingleSimilarityThresh = 0.92
	shingleSize             = 6
)

// DOIResolver follows a DOI URL's redirects once to find the publisher
// landing page (spec §4.6), so DOI-host traffic doesn't dominate domain
// caps and triangulation under the doi.org domain.
type DOIResolver struct {
	client *http.Client
}

// NewDOIResolver creates a resolver with a short per-request timeout.
func NewDOIResolver(timeout time.Duration) *DOIResolver {
	return &DOIResolver{client: &http.Client{Timeout: timeout}}
}

// Resolve follows raw's redirect chain once and returns the final URL, or
// raw unchanged if it is not a DOI host URL or the request fails.
func (r *DOIResolver) Resolve(ctx context.Context, raw string) string {
	if !isDOIHost(raw) {
		return raw
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return raw
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; research-agent/1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		dedupLogger.Debug("DOI resolution failed for %s: %v", raw, err)
		return raw
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if final != raw {
		dedupLogger.Debug("resolved DOI %s -> %s", raw, final)
	}
	return final
}

// Canonicalize sets ev.CanonicalURL, ev.SourceDomain (to the resolved
// publisher domain when applicable), and ev.CanonicalID in place, applying
// the DOI resolver when ev.URL is a DOI host URL (spec §4.6).
func Canonicalize(ctx context.Context, ev *model.Evidence, resolver *DOIResolver, doi string) {
	finalURL := ev.URL
	if resolver != nil && isDOIHost(ev.URL) {
		finalURL = resolver.Resolve(ctx, ev.URL)
		ev.SourceDomain = registeredDomain(finalURL)
	}
	ev.CanonicalURL = CanonicalURL(finalURL)
	ev.CanonicalID = CanonicalID(doi, ev.CanonicalURL)
}

// Dedup runs the three-pass collapse of spec §4.6 over evs and returns the
// surviving records. The rejected result is always empty: records dropped
// as duplicates are discarded without a RejectedEvidence entry.
func Dedup(evs []model.Evidence) (kept []model.Evidence, rejected []model.RejectedEvidence) {
	kept = dedupByCanonicalID(evs)
	kept = dedupNearDuplicateTitles(kept)
	kept = dedupSyndicatedContent(kept)
	return kept, rejected
}

// dedupByCanonicalID is pass 1: group by canonical_id, keep the highest
// credibility_score member of each group.
func dedupByCanonicalID(evs []model.Evidence) []model.Evidence {
	best := make(map[string]model.Evidence, len(evs))
	order := make([]string, 0, len(evs))
	for _, ev := range evs {
		key := ev.CanonicalID
		if key == "" {
			key = "url:" + ev.URL
		}
		cur, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = ev
			continue
		}
		if ev.CredibilityScore > cur.CredibilityScore {
			best[key] = ev
		}
	}
	out := make([]model.Evidence, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

// dedupNearDuplicateTitles is pass 2: within the same canonical domain,
// collapse records whose normalized title tokens have Jaccard ≥ 0.90,
// keeping the higher-credibility member.
func dedupNearDuplicateTitles(evs []model.Evidence) []model.Evidence {
	byDomain := make(map[string][]int)
	for i, ev := range evs {
		byDomain[ev.SourceDomain] = append(byDomain[ev.SourceDomain], i)
	}

	dropped := make(map[int]bool)
	for _, idxs := range byDomain {
		for a := 0; a < len(idxs); a++ {
			if dropped[idxs[a]] {
				continue
			}
			for b := a + 1; b < len(idxs); b++ {
				if dropped[idxs[b]] {
					continue
				}
				if titleTokenJaccard(evs[idxs[a]].Title, evs[idxs[b]].Title) >= titleJaccardThreshold {
					if evs[idxs[a]].CredibilityScore >= evs[idxs[b]].CredibilityScore {
						dropped[idxs[b]] = true
					} else {
						dropped[idxs[a]] = true
						break
					}
				}
			}
		}
	}
	return filterDropped(evs, dropped)
}

// dedupSyndicatedContent is pass 3: collapse records whose best-available
// text shingles are ≥0.92 similar (content syndication), keeping the
// higher-credibility member of each group.
func dedupSyndicatedContent(evs []model.Evidence) []model.Evidence {
	shingleSets := make([]map[string]bool, len(evs))
	for i, ev := range evs {
		shingleSets[i] = shingles(bestAvailableText(ev), shingleSize)
	}

	dropped := make(map[int]bool)
	for a := 0; a < len(evs); a++ {
		if dropped[a] {
			continue
		}
		for b := a + 1; b < len(evs); b++ {
			if dropped[b] {
				continue
			}
			if shingleSimilarity(shingleSets[a], shingleSets[b]) >= shingleSimilarityThresh {
				if evs[a].CredibilityScore >= evs[b].CredibilityScore {
					dropped[b] = true
				} else {
					dropped[a] = true
					break
				}
			}
		}
	}
	return filterDropped(evs, dropped)
}

func filterDropped(evs []model.Evidence, dropped map[int]bool) []model.Evidence {
	out := make([]model.Evidence, 0, len(evs))
	for i, ev := range evs {
		if !dropped[i] {
			out = append(out, ev)
		}
	}
	return out
}

// bestAvailableText returns the richest text available for an evidence
// record, in the same preference order the Triangulator uses for
// embedding input (spec §4.8: best_quote ∨ claim ∨ snippet ∨ title).
func bestAvailableText(ev model.Evidence) string {
	if ev.BestQuote != "" {
		return ev.BestQuote
	}
	if ev.Claim != "" {
		return ev.Claim
	}
	if ev.Snippet != "" {
		return ev.Snippet
	}
	return ev.Title
}
