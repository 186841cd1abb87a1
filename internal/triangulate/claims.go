package triangulate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dlevien/research-agent/internal/model"
)

// metricKeywords is the deterministic pattern set used to recognize a
// number+unit+time token as a structured claim rather than incidental text.
var metricKeywords = []string{
	"gdp", "growth", "rate", "inflation", "unemployment", "revenue",
	"population", "price", "export", "import", "production", "emission",
	"temperature", "rainfall", "visitors", "cases", "deaths", "cost",
}

var numberPattern = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*(%|percent|million|billion|trillion|thousand)?`)
var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)
var quarterPattern = regexp.MustCompile(`(?i)\bQ[1-4]\b|\b(first|second|third|fourth)\s+quarter\b`)

// ExtractClaims scans evidence text for (entity, metric, period) tuples. The
// "entity" is approximated as the evidence's source title (spec §4.8 leaves
// entity resolution to a deterministic pattern set, not full NER); the
// metric is the first keyword found; the period is a year or quarter token
// if present.
func ExtractClaims(ev model.Evidence) []model.StructuredClaim {
	text := bestText(ev)
	lower := strings.ToLower(text)

	metric := ""
	for _, kw := range metricKeywords {
		if strings.Contains(lower, kw) {
			metric = kw
			break
		}
	}
	if metric == "" {
		return nil
	}

	numMatches := numberPattern.FindAllStringSubmatch(text, -1)
	if len(numMatches) == 0 {
		return nil
	}

	period := yearPattern.FindString(text)
	if q := quarterPattern.FindString(text); q != "" {
		if period != "" {
			period = period + " " + q
		} else {
			period = q
		}
	}

	var claims []model.StructuredClaim
	for _, m := range numMatches {
		val, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		claims = append(claims, model.StructuredClaim{
			SourceEvidenceID: ev.ID,
			Entity:           strings.ToLower(strings.TrimSpace(ev.Title)),
			Metric:           metric,
			Period:           strings.ToLower(strings.TrimSpace(period)),
			Value:            val,
			Unit:             strings.ToLower(m[2]),
		})
		break // one claim per evidence record is sufficient for bucketing
	}
	return claims
}

// canonicalKey builds the case-insensitive (entity, metric, period) bucket
// key a structured claim matches on (spec §4.8).
func canonicalKey(c model.StructuredClaim) string {
	return c.Entity + "|" + c.Metric + "|" + c.Period
}

// BucketClaims groups claims by their canonical (entity, metric, period)
// key and returns only buckets that form a structured triangle: at least 2
// claims backed by at least 2 distinct source domains (spec §4.8).
func BucketClaims(claims []model.StructuredClaim, domainOf map[string]string) map[string][]model.StructuredClaim {
	buckets := make(map[string][]model.StructuredClaim)
	for _, c := range claims {
		buckets[canonicalKey(c)] = append(buckets[canonicalKey(c)], c)
	}
	triangles := make(map[string][]model.StructuredClaim)
	for key, members := range buckets {
		domains := make(map[string]bool)
		for _, m := range members {
			domains[domainOf[m.SourceEvidenceID]] = true
		}
		if len(members) >= 2 && len(domains) >= 2 {
			triangles[key] = members
		}
	}
	return triangles
}

func bestText(ev model.Evidence) string {
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
