package intent

import (
	"regexp"
	"strings"
)

// ambiguousCities maps a lowercase city name to its disambiguated forms.
// Grounded on original_source's detect_geographic_ambiguity table.
var ambiguousCities = map[string][]string{
	"portland":   {"Portland, OR", "Portland, ME"},
	"springfield": {"Springfield, IL", "Springfield, MA", "Springfield, MO"},
	"columbus":   {"Columbus, OH", "Columbus, GA"},
	"jackson":    {"Jackson, MS", "Jackson, WY", "Jackson, MI"},
	"aurora":     {"Aurora, CO", "Aurora, IL"},
	"richmond":   {"Richmond, VA", "Richmond, CA"},
	"arlington":  {"Arlington, TX", "Arlington, VA"},
	"cambridge":  {"Cambridge, MA", "Cambridge, UK"},
	"oxford":     {"Oxford, UK", "Oxford, MS"},
	"paris":      {"Paris, France", "Paris, TX"},
}

var stateIdentifierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(or|oregon)\b`),
	regexp.MustCompile(`(?i)\b(me|maine)\b`),
	regexp.MustCompile(`(?i)\b(ma|massachusetts)\b`),
	regexp.MustCompile(`(?i)\b(il|illinois)\b`),
	regexp.MustCompile(`(?i)\b(mo|missouri)\b`),
	regexp.MustCompile(`(?i)\b(oh|ohio)\b`),
	regexp.MustCompile(`(?i)\b(ga|georgia)\b`),
	regexp.MustCompile(`(?i)\b(ms|mississippi)\b`),
	regexp.MustCompile(`(?i)\b(wy|wyoming)\b`),
	regexp.MustCompile(`(?i)\b(mi|michigan)\b`),
	regexp.MustCompile(`(?i)\b(co|colorado)\b`),
	regexp.MustCompile(`(?i)\b(va|virginia)\b`),
	regexp.MustCompile(`(?i)\b(ca|california)\b`),
	regexp.MustCompile(`(?i)\b(tx|texas)\b`),
	regexp.MustCompile(`(?i)\buk\b`),
	regexp.MustCompile(`(?i)\bfrance\b`),
}

// DetectGeographicAmbiguity reports the disambiguated location candidates
// when query names an ambiguous city with no accompanying state/country
// identifier (spec §4.2's supplemented geographic-disambiguation feature,
// carried over from original_source since the distilled spec is silent on
// it but it materially changes query planning for local/travel intent).
func DetectGeographicAmbiguity(query string) []string {
	q := strings.ToLower(query)
	for city, locations := range ambiguousCities {
		if !strings.Contains(q, city) {
			continue
		}
		hasState := false
		for _, p := range stateIdentifierPatterns {
			if p.MatchString(q) {
				hasState = true
				break
			}
		}
		if !hasState {
			return locations
		}
	}
	return nil
}
