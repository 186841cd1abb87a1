package search

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerpAPIClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"organic_results":[
			{"title":"A","link":"https://example.com/a","snippet":"snippet a","date":"Jan 1, 2026"},
			{"title":"No link"}
		]}`))
	}))
	defer srv.Close()

	c := NewSerpAPIClient("test-key", 5*time.Second)
	c.baseURL = srv.URL

	hits, err := c.Search(t.Context(), "test query", 5, "", "")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://example.com/a", hits[0].URL)
}

func TestSerpAPIClient_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer srv.Close()

	c := NewSerpAPIClient("bad-key", 5*time.Second)
	c.baseURL = srv.URL

	_, err := c.Search(t.Context(), "q", 5, "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}
