// Package vertical implements the official/structured-data providers (spec
// §4.3): APIs scoped to one domain, selected by intent affinity or topic
// trigger rather than offered to every query like the general providers in
// internal/providers/search.
package vertical

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/providers"
)

// OpenAlexClient queries the OpenAlex scholarly-works API, the primary
// provider for academic intent (spec §4.1 academic row).
type OpenAlexClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	mailto     string
}

// NewOpenAlexClient creates an OpenAlex adapter. mailto is sent as a query
// parameter per OpenAlex's polite-pool convention; it may be empty.
func NewOpenAlexClient(mailto string, timeout time.Duration) *OpenAlexClient {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &OpenAlexClient{
		baseURL: "https://api.openalex.org/works",
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logging.GetLogger("providers.vertical.openalex"),
		mailto: mailto,
	}
}

// Metadata marks OpenAlex as a vertical provider primary to academic intent
// and additionally triggered by topic words naming scholarly concepts.
func (c *OpenAlexClient) Metadata() providers.Metadata {
	return providers.Metadata{
		Tag:              "openalex",
		Kind:             providers.KindVertical,
		IntentAffinities: []string{"academic"},
		TopicTriggers:    []string{"study", "meta-analysis", "peer-reviewed", "journal"},
		CallBudget:       0,
	}
}

type openAlexResponse struct {
	Results []struct {
		Title           string `json:"title"`
		DOI             string `json:"doi"`
		PublicationDate string `json:"publication_date"`
		Abstract        map[string][]int `json:"abstract_inverted_index"`
		PrimaryLocation struct {
			LandingPageURL string `json:"landing_page_url"`
		} `json:"primary_location"`
	} `json:"results"`
}

// Search queries OpenAlex works matching query, ignoring freshness/region
// (OpenAlex has no regional facet; freshness would require a date filter
// this minimal adapter does not yet build).
func (c *OpenAlexClient) Search(ctx context.Context, query string, count int, freshness, region string) ([]providers.Hit, error) {
	q := url.Values{}
	q.Set("search", query)
	q.Set("per-page", strconv.Itoa(count))
	if c.mailto != "" {
		q.Set("mailto", c.mailto)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build openalex request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.CallError{Err: fmt.Errorf("openalex request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read openalex body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("openalex request failed: status=%d", resp.StatusCode)
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("openalex status %d", resp.StatusCode)}
	}

	var parsed openAlexResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse openalex response: %w", err)
	}

	hits := make([]providers.Hit, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		link := r.PrimaryLocation.LandingPageURL
		if link == "" && r.DOI != "" {
			link = r.DOI
		}
		if link == "" {
			continue
		}
		hits = append(hits, providers.Hit{
			Title:       r.Title,
			URL:         link,
			Snippet:     reconstructAbstract(r.Abstract),
			PublishedAt: r.PublicationDate,
			Raw: map[string]any{
				"doi": r.DOI,
			},
		})
	}
	return hits, nil
}

// reconstructAbstract rebuilds a plain-text snippet from OpenAlex's
// inverted-index abstract representation (word -> token positions), since
// OpenAlex does not return abstracts as plain text.
func reconstructAbstract(inverted map[string][]int) string {
	if len(inverted) == 0 {
		return ""
	}
	maxPos := 0
	for _, positions := range inverted {
		for _, p := range positions {
			if p > maxPos {
				maxPos = p
			}
		}
	}
	words := make([]string, maxPos+1)
	for word, positions := range inverted {
		for _, p := range positions {
			words[p] = word
		}
	}

	out := ""
	for _, w := range words {
		if w == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += w
		if len(out) > 400 {
			break
		}
	}
	return out
}
