package backfill

import (
	"fmt"
	"strings"

	"github.com/dlevien/research-agent/internal/model"
)

// axisPack is a minimal topic shape: a handful of upstream/downstream/risk
// terms and a counter-position hint, plus the primary-source domains worth
// nudging the query planner toward when primary_share is short. This is a
// small hardcoded stand-in for the topic_packs.yaml data file that drove
// the original related-topics tool; the axis/site-hint shape is carried
// over, the data itself covers only a handful of topic shapes.
type axisPack struct {
	upstream       []string
	downstream     []string
	risks          []string
	counter        string
	primaryDomains []string
}

var topicPacks = map[string]axisPack{
	"macroeconomics": {
		upstream:       []string{"monetary policy", "central bank decisions"},
		downstream:     []string{"consumer prices", "employment effects"},
		risks:          []string{"recession risk", "policy missteps"},
		counter:        "skeptics argue",
		primaryDomains: []string{"imf.org", "worldbank.org", "oecd.org"},
	},
	"health": {
		upstream:       []string{"clinical trial design", "regulatory approval"},
		downstream:     []string{"patient outcomes", "public health impact"},
		risks:          []string{"side effects", "long-term safety"},
		counter:        "critics say",
		primaryDomains: []string{"who.int", "pubmed.ncbi.nlm.nih.gov"},
	},
	"climate": {
		upstream:       []string{"emissions sources", "policy drivers"},
		downstream:     []string{"ecosystem impact", "economic cost"},
		risks:          []string{"tipping points", "adaptation limits"},
		counter:        "contrarian view",
		primaryDomains: []string{"ipcc.ch", "noaa.gov"},
	},
	"general": {
		upstream:       []string{"background", "underlying causes"},
		downstream:     []string{"consequences", "affected parties"},
		risks:          []string{"risks", "criticism"},
		counter:        "counterargument",
		primaryDomains: nil,
	},
}

func packFor(topicKey string) axisPack {
	if p, ok := topicPacks[strings.ToLower(topicKey)]; ok {
		return p
	}
	return topicPacks["general"]
}

// GenerateQueries builds up to maxQueries targeted search queries closing
// the specific shortfalls named in decision, mirroring the
// trigger-to-query-expansion mapping of the related-topics backfill tool:
// a triangulation gap expands along the upstream/downstream/risks axes, a
// primary-share gap adds topic primary-site hints, and a card-count gap
// adds a plain broadening query (spec §4.11).
func GenerateQueries(topic, topicKey string, decision model.GateDecision, maxQueries int) []TargetedQuery {
	pack := packFor(topicKey)
	var out []TargetedQuery

	add := func(axis, q string) {
		if len(out) >= maxQueries {
			return
		}
		out = append(out, TargetedQuery{Axis: axis, Query: q})
	}

	for _, s := range Shortfalls(decision) {
		switch s {
		case ShortfallTriangulation:
			for _, term := range pack.upstream {
				add("upstream", fmt.Sprintf("%s %s", topic, term))
			}
			for _, term := range pack.downstream {
				add("downstream", fmt.Sprintf("%s %s", topic, term))
			}
			for _, term := range pack.risks {
				add("risks", fmt.Sprintf("%s %s", topic, term))
			}
			add("counter-position", fmt.Sprintf("%s %s", topic, pack.counter))
		case ShortfallPrimaryShare:
			for _, domain := range pack.primaryDomains {
				add("primary-site", fmt.Sprintf("%s site:%s", topic, domain))
			}
		case ShortfallCardCount:
			add("broaden", topic)
		}
	}

	if len(out) > maxQueries {
		out = out[:maxQueries]
	}
	return out
}
