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

// NPSClient queries the National Park Service API, a vertical provider for
// local and travel intent when the topic names a park or trail (spec §4.1
// local/travel rows, §4.3 topic-trigger selection).
type NPSClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewNPSClient creates an NPS adapter. apiKey may be empty in the free tier.
func NewNPSClient(apiKey string, timeout time.Duration) *NPSClient {
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
	return &NPSClient{
		apiKey:  apiKey,
		baseURL: "https://developer.nps.gov/api/v1/parks",
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logging.GetLogger("providers.vertical.nps"),
	}
}

// Metadata marks NPS as primary to local intent and additionally triggered
// by park/trail vocabulary regardless of classified intent.
func (c *NPSClient) Metadata() providers.Metadata {
	return providers.Metadata{
		Tag:              "nps",
		Kind:             providers.KindVertical,
		IntentAffinities: []string{"local", "travel"},
		TopicTriggers:    []string{"national park", "trail", "wilderness", "monument"},
		CallBudget:       0,
	}
}

type npsResponse struct {
	Data []struct {
		FullName    string `json:"fullName"`
		Description string `json:"description"`
		URL         string `json:"url"`
		States      string `json:"states"`
	} `json:"data"`
}

// Search queries NPS parks matching query. region, if set, is passed as the
// states filter (two-letter state codes); freshness has no meaning here.
func (c *NPSClient) Search(ctx context.Context, query string, count int, freshness, region string) ([]providers.Hit, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(count))
	if region != "" {
		q.Set("stateCode", region)
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build nps request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.CallError{Err: fmt.Errorf("nps request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read nps body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("nps request failed: status=%d", resp.StatusCode)
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("nps status %d", resp.StatusCode)}
	}

	var parsed npsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse nps response: %w", err)
	}

	hits := make([]providers.Hit, 0, len(parsed.Data))
	for _, p := range parsed.Data {
		if p.URL == "" {
			continue
		}
		hits = append(hits, providers.Hit{
			Title:   p.FullName,
			URL:     p.URL,
			Snippet: p.Description,
			Raw: map[string]any{
				"states": p.States,
			},
		})
	}
	return hits, nil
}
