// Package oracle backs the semantic-similarity and zero-shot fallback
// stages the Intent Classifier and Triangulator use (spec §4.2, §4.8): a
// thin Claude client for when lexical heuristics are not confident, with a
// deterministic lexical-only implementation for tests and for operation
// without an API key.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Prediction is one label with a confidence in [0,1], matching the shape
// original_source's semantic.py/nli_fallback.py modules return.
type Prediction struct {
	Label      string
	Confidence float64
}

// SimilarityOracle is implemented by anything that can score how well a
// query matches one of a closed set of candidate labels, or how similar
// two free-text passages are (used for triangulation's semantic fallback,
// spec §4.8, when the lexical cosine threshold is ambiguous).
type SimilarityOracle interface {
	ClassifyLabel(ctx context.Context, text string, candidates []string) (Prediction, error)
	PairSimilarity(ctx context.Context, a, b string) (float64, error)
}

// AnthropicOracle implements SimilarityOracle using the Claude API, asking
// the model to pick the best-fitting label (or score similarity) and
// report its own confidence. It is deliberately conservative: any
// unparsable response yields zero confidence rather than a guess.
type AnthropicOracle struct {
	client anthropic.Client
	model  string
}

// NewAnthropicOracle creates an oracle. The API key is read from
// ANTHROPIC_API_KEY unless apiKey is non-empty.
func NewAnthropicOracle(apiKey, model string) *AnthropicOracle {
	var client anthropic.Client
	if apiKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(apiKey))
	} else {
		client = anthropic.NewClient()
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicOracle{client: client, model: model}
}

// ClassifyLabel asks the model to pick the single best candidate label for
// text, or report low confidence if none fit well.
func (o *AnthropicOracle) ClassifyLabel(ctx context.Context, text string, candidates []string) (Prediction, error) {
	prompt := fmt.Sprintf(
		"Classify the following query into exactly one of these categories: %s.\n"+
			"Query: %q\n"+
			"Reply with only the category name, then a space, then your confidence from 0.0 to 1.0.",
		strings.Join(candidates, ", "), text)

	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(o.model),
		MaxTokens: 20,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("oracle classify: %w", err)
	}

	text = ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseLabelConfidence(text, candidates), nil
}

// PairSimilarity asks the model to score semantic similarity between two
// passages from 0.0 (unrelated) to 1.0 (paraphrase of the same claim).
func (o *AnthropicOracle) PairSimilarity(ctx context.Context, a, b string) (float64, error) {
	prompt := fmt.Sprintf(
		"On a scale of 0.0 to 1.0, how semantically similar are these two statements "+
			"(1.0 meaning they assert the same fact)?\nA: %q\nB: %q\nReply with only the number.", a, b)

	resp, err := o.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(o.model),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("oracle similarity: %w", err)
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return parseFloat01(text), nil
}

func parseLabelConfidence(text string, candidates []string) Prediction {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Prediction{}
	}
	label := strings.ToLower(strings.TrimSpace(fields[0]))
	for _, c := range candidates {
		if strings.EqualFold(c, label) {
			conf := 0.6
			if len(fields) > 1 {
				conf = parseFloat01(fields[1])
			}
			return Prediction{Label: c, Confidence: conf}
		}
	}
	return Prediction{}
}

func parseFloat01(s string) float64 {
	s = strings.TrimSpace(s)
	var f float64
	if _, err := fmt.Sscanf(s, "%f", &f); err != nil {
		return 0
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// LexicalFallback is a deterministic, no-network SimilarityOracle used in
// tests and when no API key is configured (spec §9: components must
// degrade rather than fail when an optional dependency is unavailable).
// It scores by normalized token overlap (Jaccard), which is weaker than a
// true embedding model but stable and dependency-free.
type LexicalFallback struct{}

// ClassifyLabel scores each candidate by token-overlap with text and
// returns the best match at a fixed, modest confidence.
func (LexicalFallback) ClassifyLabel(_ context.Context, text string, candidates []string) (Prediction, error) {
	best := Prediction{}
	textTokens := tokenSet(text)
	for _, c := range candidates {
		score := jaccard(textTokens, tokenSet(c))
		if score > best.Confidence {
			best = Prediction{Label: c, Confidence: score}
		}
	}
	return best, nil
}

// PairSimilarity returns the Jaccard token overlap between a and b.
func (LexicalFallback) PairSimilarity(_ context.Context, a, b string) (float64, error) {
	return jaccard(tokenSet(a), tokenSet(b)), nil
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = true
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if b[w] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
