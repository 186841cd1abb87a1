package report

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/dlevien/research-agent/internal/model"
)

// nextStepsByIntent gives the intent-templated "try this next" action for
// each failing reason the gate can emit. Placeholders refer to fields of
// nextStepData.
var nextStepsByIntent = map[model.Intent]map[string]string{
	model.IntentStats: {
		"triangulation_below_threshold": "Search official statistics agencies directly for {{.Topic}} (e.g. national statistics office, IMF, World Bank).",
		"primary_share_below_target":    "Add site-restricted queries against government/international-org domains for {{.Topic}}.",
		"insufficient_cards":            "Broaden the query for {{.Topic}} — drop narrow qualifiers and retry.",
	},
	model.IntentMedical: {
		"triangulation_below_threshold": "Search PubMed and WHO directly for {{.Topic}}.",
		"primary_share_below_target":    "Prioritize peer-reviewed and regulatory sources for {{.Topic}}.",
		"insufficient_cards":            "Broaden the query for {{.Topic}} to a related medical subtopic.",
	},
}

var defaultNextSteps = map[string]string{
	"triangulation_below_threshold": "Try rephrasing {{.Topic}} to surface independent corroborating sources.",
	"primary_share_below_target":    "Add queries targeting primary/official sources for {{.Topic}}.",
	"insufficient_cards":            "Broaden or rephrase the query for {{.Topic}}; too few sources were found.",
}

// troubleshootingByReason gives a short diagnostic note per failing gate
// predicate, independent of intent.
var troubleshootingByReason = map[string]string{
	"triangulation_below_threshold": "Fewer than the required fraction of evidence cards share corroborating claims across independent domains.",
	"primary_share_below_target":    "Too few cards came from primary/official sources relative to the intent's target.",
	"insufficient_cards":            "The run collected fewer evidence cards than the minimum required for this intent.",
}

type nextStepData struct {
	Topic string
}

// InsufficientReportInput bundles what RenderInsufficientReport needs to
// explain why the gate failed and what to try next.
type InsufficientReportInput struct {
	Topic    string
	Intent   model.Intent
	Decision model.GateDecision
}

// RenderInsufficientReport builds the markdown insufficient-evidence
// report: the failing gates with their actual values and thresholds, an
// intent-templated list of next-step actions, and a troubleshooting list
// keyed by which metric failed (spec §4.13).
func RenderInsufficientReport(in InsufficientReportInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Insufficient Evidence: %s\n\n", in.Topic)
	sb.WriteString("This run did not collect enough corroborated evidence to produce a final report.\n\n")

	sb.WriteString("## Failing Gates\n\n")
	m, t := in.Decision.Metrics, in.Decision.Thresholds
	for _, reason := range in.Decision.FailingReasons {
		switch reason {
		case "triangulation_below_threshold":
			fmt.Fprintf(&sb, "- triangulation: %.2f (needed ≥ %.2f)\n", m.UnionTriangulation, t.MinTriangulation)
		case "primary_share_below_target":
			fmt.Fprintf(&sb, "- primary_share: %.2f (needed ≥ %.2f)\n", m.PrimaryShare, t.MinPrimaryShare)
		case "insufficient_cards":
			fmt.Fprintf(&sb, "- cards: %d (needed ≥ %d)\n", m.Cards, t.MinSources)
		default:
			fmt.Fprintf(&sb, "- %s\n", reason)
		}
	}

	sb.WriteString("\n## Next Steps\n\n")
	data := nextStepData{Topic: in.Topic}
	for _, reason := range in.Decision.FailingReasons {
		step := nextStepFor(in.Intent, reason)
		rendered, err := renderTemplate(step, data)
		if err != nil {
			rendered = step
		}
		fmt.Fprintf(&sb, "- %s\n", rendered)
	}

	sb.WriteString("\n## Troubleshooting\n\n")
	for _, reason := range in.Decision.FailingReasons {
		if note, ok := troubleshootingByReason[reason]; ok {
			fmt.Fprintf(&sb, "- **%s**: %s\n", reason, note)
		}
	}

	return sb.String()
}

func nextStepFor(intent model.Intent, reason string) string {
	if byIntent, ok := nextStepsByIntent[intent]; ok {
		if step, ok := byIntent[reason]; ok {
			return step
		}
	}
	if step, ok := defaultNextSteps[reason]; ok {
		return step
	}
	return "Review the failing metric and retry with a broader or more targeted query."
}

func renderTemplate(text string, data nextStepData) (string, error) {
	tmpl, err := template.New("step").Parse(text)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// RenderDraftReport builds the banner-prefixed draft report emitted when
// the "preliminary on fail" flag is set: a visible warning banner followed
// by the raw evidence bullets, in the order they were collected (spec
// §4.13: "WriteDraft").
func RenderDraftReport(topic string, evs []model.Evidence) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# DRAFT — %s\n\n", topic)
	sb.WriteString("> This is an unreviewed draft. The evidence below did not clear the quality gate.\n\n")
	for _, ev := range evs {
		text := ev.BestQuote
		if text == "" {
			text = ev.Snippet
		}
		fmt.Fprintf(&sb, "- %s — %s\n", ev.SourceDomain, text)
	}
	return sb.String()
}
