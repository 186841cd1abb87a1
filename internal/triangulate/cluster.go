package triangulate

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dlevien/research-agent/internal/intent/oracle"
	"github.com/dlevien/research-agent/internal/model"
)

// numericTokenBoost is added to a raw similarity score when both texts
// share at least one numeric or year token (spec §4.8: "boost similarity
// for pairs sharing numeric tokens and year tokens").
const numericTokenBoost = 0.15

// directionalPairs lists antonym pairs whose simultaneous presence across
// a cluster's members signals a contradiction rather than a paraphrase
// (spec §4.8: "rise vs. fall, safe vs. unsafe").
var directionalPairs = [][2]string{
	{"rise", "fall"}, {"rose", "fell"}, {"increase", "decrease"},
	{"safe", "unsafe"}, {"approved", "rejected"}, {"confirmed", "denied"},
	{"growth", "decline"}, {"up", "down"}, {"support", "oppose"},
	{"legal", "illegal"}, {"effective", "ineffective"},
}

var numberToken = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

// Clusterer builds paraphrase clusters over an evidence set using an
// injectable similarity oracle (spec §9: SimilarityOracle), so tests can run
// deterministically against the lexical fallback without network access.
type Clusterer struct {
	Oracle    oracle.SimilarityOracle
	Threshold float64
}

// NewClusterer returns a Clusterer defaulting to the lexical fallback oracle
// and the spec's default cosine threshold of 0.40.
func NewClusterer(o oracle.SimilarityOracle, threshold float64) *Clusterer {
	if o == nil {
		o = oracle.LexicalFallback{}
	}
	if threshold <= 0 {
		threshold = 0.40
	}
	return &Clusterer{Oracle: o, Threshold: threshold}
}

// Cluster runs agglomerative single-linkage clustering by cosine/lexical
// similarity over evs, post-sanitizes clusters for numeric mismatch and
// directional contradiction, and returns sealed clusters in the order they
// were first formed (spec §4.8, §5 determinism note).
func (c *Clusterer) Cluster(ctx context.Context, evs []model.Evidence) []model.Cluster {
	n := len(evs)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	texts := make([]string, n)
	for i, ev := range evs {
		texts[i] = bestText(ev)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim, err := c.Oracle.PairSimilarity(ctx, texts[i], texts[j])
			if err != nil {
				continue
			}
			if sharesNumericOrYearToken(texts[i], texts[j]) {
				sim += numericTokenBoost
			}
			if sim >= c.Threshold {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	var rootsInOrder []int
	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		root := find(i)
		if !seen[root] {
			seen[root] = true
			rootsInOrder = append(rootsInOrder, root)
		}
	}

	var clusters []model.Cluster
	seq := 0
	for _, root := range rootsInOrder {
		members := groups[root]
		if len(members) < 2 {
			continue
		}
		split := sanitizeCluster(evs, members, texts)
		for _, group := range split {
			if len(group) < 2 {
				continue
			}
			groupTexts := make([]string, len(group))
			for i, idx := range group {
				groupTexts[i] = texts[idx]
			}
			sideA, sideB := directionalContradictionSplit(groupTexts, group)
			if sideA >= 2 && sideB >= 2 {
				continue // spec §4.8: two-sided contradiction, drop the cluster
			}
			seq++
			clusters = append(clusters, sealCluster(seq, evs, group, sideA > 0 && sideB > 0))
		}
	}
	return clusters
}

// sanitizeCluster splits a raw cluster on numeric mismatch and drops
// clusters with a two-sided directional contradiction rather than flagging
// needs_review (spec §4.8: "drop clusters with ≥2 cards on each side").
// Clusters with a single dissenting card instead of an even split keep but
// flag needs_review via sealCluster's directional check.
func sanitizeCluster(evs []model.Evidence, members []int, texts []string) [][]int {
	byNumbers := make(map[string][]int)
	for _, idx := range members {
		key := strings.Join(numberToken.FindAllString(texts[idx], -1), ",")
		byNumbers[key] = append(byNumbers[key], idx)
	}
	if len(byNumbers) <= 1 {
		return [][]int{members}
	}
	var out [][]int
	for _, group := range byNumbers {
		out = append(out, group)
	}
	return out
}

func directionalContradictionSplit(texts []string, members []int) (sideA, sideB int) {
	for _, idx := range members {
		lower := strings.ToLower(texts[idx])
		for _, pair := range directionalPairs {
			if strings.Contains(lower, pair[0]) {
				sideA++
			}
			if strings.Contains(lower, pair[1]) {
				sideB++
			}
		}
	}
	return sideA, sideB
}

func sealCluster(seq int, evs []model.Evidence, members []int, needsReview bool) model.Cluster {
	domainSet := make(map[string]bool)
	var memberIDs []string
	for _, idx := range members {
		memberIDs = append(memberIDs, evs[idx].ID)
		domainSet[evs[idx].SourceDomain] = true
	}
	var domains []string
	for d := range domainSet {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	rep := selectRepresentative(evs, members)

	return model.Cluster{
		ID:                 clusterID(seq),
		Members:            memberIDs,
		Domains:            domains,
		Size:               len(members),
		RepresentativeID:   evs[rep].ID,
		RepresentativeText: bestText(evs[rep]),
		NeedsReview:        needsReview,
	}
}

func clusterID(seq int) string {
	return "cluster-" + strconv.Itoa(seq)
}

// selectRepresentative applies the spec §4.8 tie-break order: primary >
// higher credibility > more recent > longer best_quote.
func selectRepresentative(evs []model.Evidence, members []int) int {
	best := members[0]
	for _, idx := range members[1:] {
		if isBetterRepresentative(evs[idx], evs[best]) {
			best = idx
		}
	}
	return best
}

func isBetterRepresentative(a, b model.Evidence) bool {
	if a.IsPrimarySource != b.IsPrimarySource {
		return a.IsPrimarySource
	}
	if a.CredibilityScore != b.CredibilityScore {
		return a.CredibilityScore > b.CredibilityScore
	}
	if (a.PublicationDate == nil) != (b.PublicationDate == nil) {
		return a.PublicationDate != nil
	}
	if a.PublicationDate != nil && b.PublicationDate != nil && !a.PublicationDate.Equal(*b.PublicationDate) {
		return a.PublicationDate.After(*b.PublicationDate)
	}
	return len(a.BestQuote) > len(b.BestQuote)
}

func sharesNumericOrYearToken(a, b string) bool {
	ta := numberToken.FindAllString(a, -1)
	tb := make(map[string]bool)
	for _, t := range numberToken.FindAllString(b, -1) {
		tb[t] = true
	}
	for _, t := range ta {
		if tb[t] {
			return true
		}
	}
	return false
}
