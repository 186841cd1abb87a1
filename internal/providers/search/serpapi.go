// Package search implements the general web-search providers (spec §4.3):
// backends that accept an arbitrary query string and return ranked web
// results. Each adapter is a thin HTTP client in the style of the teacher's
// integration clients (tuned transport, context-scoped requests, full body
// drain for connection reuse).
package search

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

// SerpAPIClient is the general-search adapter for serpapi.com's Google
// Search API (spec §6: SERPAPI_API_KEY, SERPAPI_MAX_CALLS_PER_RUN).
type SerpAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSerpAPIClient creates a client with a tuned transport matching the
// pooling settings used elsewhere in this codebase for outbound HTTP.
func NewSerpAPIClient(apiKey string, timeout time.Duration) *SerpAPIClient {
	transport := &http.Transport{
		MaxIdleConns:        50,
		MaxConnsPerHost:     10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &SerpAPIClient{
		apiKey:  apiKey,
		baseURL: "https://serpapi.com/search",
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logging.GetLogger("providers.search.serpapi"),
	}
}

// Metadata identifies this as a general provider with a tight call budget,
// since SerpAPI billing is per-call (spec §6 SERPAPI_MAX_CALLS_PER_RUN).
func (c *SerpAPIClient) Metadata() providers.Metadata {
	return providers.Metadata{
		Tag:        "serpapi",
		Kind:       providers.KindGeneral,
		CallBudget: 8,
	}
}

type serpAPIResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search issues one query against SerpAPI's Google engine.
func (c *SerpAPIClient) Search(ctx context.Context, query string, count int, freshness, region string) ([]providers.Hit, error) {
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", c.apiKey)
	q.Set("num", strconv.Itoa(count))
	if freshness != "" {
		q.Set("tbs", "qdr:"+freshness)
	}
	if region != "" {
		q.Set("gl", region)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build serpapi request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.CallError{Err: fmt.Errorf("serpapi request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read serpapi body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("serpapi request failed: status=%d", resp.StatusCode)
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("serpapi status %d", resp.StatusCode)}
	}

	var parsed serpAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse serpapi response: %w", err)
	}
	if parsed.Error != "" {
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("serpapi error: %s", parsed.Error)}
	}

	hits := make([]providers.Hit, 0, len(parsed.OrganicResults))
	for _, r := range parsed.OrganicResults {
		if r.Link == "" {
			continue
		}
		hits = append(hits, providers.Hit{
			Title:       r.Title,
			URL:         r.Link,
			Snippet:     r.Snippet,
			PublishedAt: r.Date,
		})
	}
	return hits, nil
}
