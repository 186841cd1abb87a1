// Package enrich implements the Enricher (spec §4.7, C7): best-effort,
// time-bounded, HTML-only page fetch and best-quote extraction.
package enrich

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/model"
)

var logger = logging.GetLogger("enrich.fetch")

const (
	maxBodyBytes  = 1 << 20 // 1MB
	excerptMaxLen = 800
	quoteMinLen   = 60
	quoteMaxLen   = 400
)

// knownPaywallDomains is the small, explicit table of domains enrichment
// treats as paywalled even when the HTTP status alone doesn't say so
// (spec §4.7: "known paywall domains").
var knownPaywallDomains = map[string]bool{
	"wsj.com":            true,
	"ft.com":             true,
	"nytimes.com":        true,
	"bloomberg.com":      true,
	"economist.com":      true,
	"washingtonpost.com": true,
}

var yearOrDigitPattern = regexp.MustCompile(`\d`)

// Enricher fetches evidence pages and extracts excerpt/best-quote text.
type Enricher struct {
	client *http.Client
}

// New creates an Enricher with a tight per-request timeout and a bounded
// redirect count (spec §4.7: "limited redirects").
func New(timeout time.Duration) *Enricher {
	return &Enricher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Enrich fetches ev.URL and fills in BestQuote (and extends Snippet when
// the page yields a richer excerpt) in place. It never returns an error:
// any failure leaves ev unchanged except, on a paywall signal, setting
// Reachability to 0 (spec §4.7 — enrichment is best-effort and must never
// fail the pipeline).
func (e *Enricher) Enrich(ctx context.Context, ev *model.Evidence) {
	domain := ev.SourceDomain
	if knownPaywallDomains[domain] {
		ev.Reachability = 0
		logger.Debug("skipping known paywall domain %s", domain)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ev.URL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; research-agent/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		logger.Debug("enrich fetch failed for %s: %v", ev.URL, err)
		return
	}
	defer resp.Body.Close()

	if isPaywallStatus(resp.StatusCode) {
		ev.Reachability = 0
		return
	}
	if resp.StatusCode != http.StatusOK {
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "html") {
		logger.Debug("skipping non-HTML content-type %q for %s", contentType, ev.URL)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return
	}

	text := extractMainText(doc)
	if text == "" {
		return
	}

	excerpt := text
	if len(excerpt) > excerptMaxLen {
		excerpt = excerpt[:excerptMaxLen]
	}
	if strings.TrimSpace(ev.Snippet) == "" || len(excerpt) > len(ev.Snippet) {
		ev.Snippet = excerpt
	}
	if quote := selectBestQuote(text); quote != "" {
		ev.BestQuote = quote
	}
}

func isPaywallStatus(code int) bool {
	return code == http.StatusPaymentRequired || code == http.StatusForbidden || code == 451
}

// extractMainText walks the parsed document, preferring <article> or
// <main> containers; paragraphs under 50 chars are dropped as navigation/
// boilerplate noise (spec §4.7: "join paragraphs ≥50 chars").
func extractMainText(doc *html.Node) string {
	var containers []*html.Node
	var fallback []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "article", "main":
				containers = append(containers, n)
			case "p":
				if text := textContent(n); len(text) >= 50 {
					fallback = append(fallback, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(containers) > 0 {
		var parts []string
		for _, c := range containers {
			for _, p := range paragraphsIn(c) {
				if len(p) >= 50 {
					parts = append(parts, p)
				}
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	return strings.Join(fallback, " ")
}

func paragraphsIn(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "p" {
			out = append(out, textContent(node))
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(strings.Join(strings.Fields(sb.String()), " "))
}

// selectBestQuote picks the first sentence containing a digit (covers
// both numeric values and 4-digit years) with length in [60, 400], else
// the first sentence of any length (spec §4.7).
func selectBestQuote(text string) string {
	sentences := splitSentences(text)
	for _, s := range sentences {
		if yearOrDigitPattern.MatchString(s) && len(s) >= quoteMinLen && len(s) <= quoteMaxLen {
			return s
		}
	}
	if len(sentences) > 0 {
		return sentences[0]
	}
	return ""
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?])\s+`)

func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
