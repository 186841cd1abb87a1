package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dlevien/research-agent/internal/logging"
	"github.com/dlevien/research-agent/internal/providers"
)

// SerperClient is the general-search adapter for serper.dev (spec §6:
// SERPER_API_KEY). It is registered whenever SERPER_API_KEY is set and is
// queried alongside the other general providers named in SEARCH_PROVIDERS.
type SerperClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSerperClient creates a Serper adapter.
func NewSerperClient(apiKey string, timeout time.Duration) *SerperClient {
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
	return &SerperClient{
		apiKey:  apiKey,
		baseURL: "https://google.serper.dev/search",
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logging.GetLogger("providers.search.serper"),
	}
}

// Metadata identifies this as an uncapped general provider.
func (c *SerperClient) Metadata() providers.Metadata {
	return providers.Metadata{
		Tag:        "serper",
		Kind:       providers.KindGeneral,
		CallBudget: 0, // unbounded; governed by the circuit breaker instead
	}
}

type serperRequest struct {
	Q      string `json:"q"`
	Num    int    `json:"num,omitempty"`
	Gl     string `json:"gl,omitempty"`
	TBS    string `json:"tbs,omitempty"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
	} `json:"organic"`
}

// Search issues one query against serper.dev's search API.
func (c *SerperClient) Search(ctx context.Context, query string, count int, freshness, region string) ([]providers.Hit, error) {
	reqBody := serperRequest{Q: query, Num: count, Gl: region}
	if freshness != "" {
		reqBody.TBS = "qdr:" + freshness
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build serper request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.CallError{Err: fmt.Errorf("serper request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read serper body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("serper request failed: status=%d", resp.StatusCode)
		return nil, &providers.CallError{StatusCode: resp.StatusCode, Err: fmt.Errorf("serper status %d", resp.StatusCode)}
	}

	var parsed serperResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse serper response: %w", err)
	}

	hits := make([]providers.Hit, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
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
