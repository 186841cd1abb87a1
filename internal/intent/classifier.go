// Package intent implements the Intent Classifier (spec §4.2, C1): a
// three-stage hybrid pipeline (fast rules, semantic similarity, zero-shot
// fallback) mapping a research topic onto the fixed Intent tag set used to
// select providers, expansion templates, and gate thresholds downstream.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/dlevien/research-agent/internal/intent/oracle"
	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var logger = logging.GetLogger("intent.classifier")

type rule struct {
	intent  model.Intent
	pattern *regexp.Regexp
}

// rules lists the fixed intent patterns in priority order: more specific
// intents are checked first so, e.g., "beaches in Thailand" matches travel
// rather than local, and a medical query never falls through to generic.
// Order and wording follow original_source's intent/classifier.py verbatim.
var rules = []rule{
	{model.IntentMedical, regexp.MustCompile(`(?i)\b(symptoms?|treatment|diagnosis|side effects?|contraindications?|disease|cure|therapy|medical|health condition)\b`)},
	{model.IntentTravel, regexp.MustCompile(`(?i)\b(itinerary|visa|travel|tourist|vacation|trip|where to stay|things to do|destination|beaches? in \w+|resorts?|tourism)\b`)},
	{model.IntentLocal, regexp.MustCompile(`(?i)\b(near me|hours|open now|closest|nearby|local)\b|\b(restaurants?|cafes?|hotels?|shops?|stores?|parks|attractions?) in\b`)},
	{model.IntentAcademic, regexp.MustCompile(`(?i)\b(systematic review|meta-analysis|peer[- ]reviewed|doi:|arxiv:|journal|research paper|study|academic)\b`)},
	{model.IntentRegulatory, regexp.MustCompile(`(?i)\b(10-[kq]|8-k|regulation|sec\.gov|compliance|filing|disclosure|earnings report)\b`)},
	{model.IntentStats, regexp.MustCompile(`(?i)\b(dataset|time series|statistics|GDP|CPI|index|indicator|metric|data analysis|growth rate)\b`)},
	{model.IntentHowto, regexp.MustCompile(`(?i)\b(how to|tutorial|step by step|guide|instructions|diy|make|build|setup)\b`)},
	{model.IntentProduct, regexp.MustCompile(`(?i)\b(best|top|vs|versus|review|buy|price|budget|under \$\d+|cheapest|worth it|comparison|recommend)\b`)},
	{model.IntentNews, regexp.MustCompile(`(?i)\b(today|yesterday|this week|latest|breaking|current|recent|news|update)\b`)},
	{model.IntentEncyclopedia, regexp.MustCompile(`(?i)\b(history of|what is|who is|origins? of|biography|timeline|evolution of|definition)\b`)},
}

// allIntents is the candidate set handed to the semantic/NLI oracle stages.
var allIntents = []string{
	string(model.IntentMedical), string(model.IntentTravel), string(model.IntentLocal),
	string(model.IntentAcademic), string(model.IntentRegulatory), string(model.IntentStats),
	string(model.IntentHowto), string(model.IntentProduct), string(model.IntentNews),
	string(model.IntentEncyclopedia),
}

// Classifier runs the hybrid classification pipeline.
type Classifier struct {
	// SemanticOracle backs stage B (semantic similarity); NLIOracle backs
	// stage C (zero-shot fallback). In this module both stages are backed
	// by the same SimilarityOracle implementation, since both ask the same
	// "which label fits best" question — only the confidence thresholds
	// and prompt framing differ (spec §4.2 treats them as getting
	// successively less certain, not as structurally different models).
	SemanticOracle oracle.SimilarityOracle
	NLIOracle      oracle.SimilarityOracle

	// UseHybrid disables stages B/C when false, matching
	// original_source's INTENT_USE_HYBRID env var.
	UseHybrid bool

	SemanticMinConfidence float64
	NLIMinConfidence      float64
}

// New creates a Classifier with both oracle stages backed by o (or the
// dependency-free LexicalFallback if o is nil) and the original's default
// confidence floors (0.6 semantic, 0.5 NLI).
func New(o oracle.SimilarityOracle) *Classifier {
	if o == nil {
		o = oracle.LexicalFallback{}
	}
	return &Classifier{
		SemanticOracle:        o,
		NLIOracle:             o,
		UseHybrid:             true,
		SemanticMinConfidence: 0.6,
		NLIMinConfidence:      0.5,
	}
}

// Classify runs the rules -> semantic -> NLI -> generic pipeline.
func (c *Classifier) Classify(ctx context.Context, query string) model.Intent {
	if in := classifyRules(query); in != "" {
		logger.Debug("classified %q as %s (rules)", truncate(query, 50), in)
		return in
	}

	if !c.UseHybrid {
		logger.Info("classified %q as generic (rules failed, hybrid disabled)", truncate(query, 50))
		return model.IntentGeneric
	}

	if c.SemanticOracle != nil {
		if pred, err := c.SemanticOracle.ClassifyLabel(ctx, query, allIntents); err == nil && pred.Confidence >= c.SemanticMinConfidence && pred.Label != "" {
			logger.Debug("classified %q as %s (semantic, confidence=%.2f)", truncate(query, 50), pred.Label, pred.Confidence)
			return model.Intent(pred.Label)
		}
	}

	if c.NLIOracle != nil {
		if pred, err := c.NLIOracle.ClassifyLabel(ctx, query, allIntents); err == nil && pred.Confidence >= c.NLIMinConfidence && pred.Label != "" {
			logger.Debug("classified %q as %s (NLI, confidence=%.2f)", truncate(query, 50), pred.Label, pred.Confidence)
			return model.Intent(pred.Label)
		}
	}

	logger.Info("classified %q as generic (all stages failed)", truncate(query, 50))
	return model.IntentGeneric
}

func classifyRules(query string) model.Intent {
	q := strings.ToLower(query)
	for _, r := range rules {
		if r.pattern.MatchString(q) {
			return r.intent
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
