package enrich

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dlevien/research-agent/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseForTest(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

func TestEnrich_ExtractsArticleTextAndBestQuote(t *testing.T) {
	body := `<html><body><nav>Home About</nav><article>
		<p>This is a short nav-like line.</p>
		<p>The central bank raised interest rates to 5.25 percent in 2024, citing persistent inflation across the economy and a tight labor market.</p>
		<p>Analysts expect further tightening through the remainder of the year as policymakers respond to incoming data.</p>
	</article></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	ev := model.Evidence{URL: srv.URL, SourceDomain: "example.com"}
	New(5 * time.Second).Enrich(t.Context(), &ev)

	assert.Contains(t, ev.BestQuote, "5.25 percent")
	assert.Contains(t, ev.Snippet, "interest rates")
}

func TestEnrich_SkipsNonHTMLContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"foo":"bar"}`))
	}))
	defer srv.Close()

	ev := model.Evidence{URL: srv.URL, SourceDomain: "example.com", Snippet: "original"}
	New(5 * time.Second).Enrich(t.Context(), &ev)

	assert.Equal(t, "original", ev.Snippet)
	assert.Empty(t, ev.BestQuote)
}

func TestEnrich_PaywallStatusSetsReachabilityZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	ev := model.Evidence{URL: srv.URL, SourceDomain: "example.com", Reachability: 1.0}
	New(5 * time.Second).Enrich(t.Context(), &ev)

	assert.Equal(t, 0.0, ev.Reachability)
}

func TestEnrich_KnownPaywallDomain_SkipsFetchEntirely(t *testing.T) {
	ev := model.Evidence{URL: "https://wsj.com/articles/x", SourceDomain: "wsj.com", Reachability: 1.0}
	New(5 * time.Second).Enrich(t.Context(), &ev)

	assert.Equal(t, 0.0, ev.Reachability)
}

func TestEnrich_FetchFailure_LeavesEvidenceUnchanged(t *testing.T) {
	ev := model.Evidence{URL: "http://127.0.0.1:1/unreachable", SourceDomain: "example.com", Snippet: "keep me", Reachability: 1.0}
	New(200 * time.Millisecond).Enrich(t.Context(), &ev)

	assert.Equal(t, "keep me", ev.Snippet)
	assert.Equal(t, 1.0, ev.Reachability)
}

func TestSelectBestQuote_PrefersSentenceWithDigit(t *testing.T) {
	text := "This is an opening sentence with no numbers at all in it whatsoever. Revenue grew by 12 percent in the most recent fiscal quarter compared to a year earlier."
	quote := selectBestQuote(text)
	assert.Contains(t, quote, "12 percent")
}

func TestSelectBestQuote_FallsBackToFirstSentence(t *testing.T) {
	text := "Nothing numeric appears anywhere in this short passage at all."
	quote := selectBestQuote(text)
	assert.Equal(t, text, quote)
}

func TestExtractMainText_PrefersArticleOverNav(t *testing.T) {
	htmlStr := `<html><body><nav><p>Home About Contact Navigation links here too long to be trivial but still nav</p></nav>` +
		`<article><p>` + strings.Repeat("Substantive article content. ", 5) + `</p></article></body></html>`
	doc, err := parseForTest(htmlStr)
	require.NoError(t, err)
	text := extractMainText(doc)
	assert.Contains(t, text, "Substantive article content")
}
