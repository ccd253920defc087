package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot/backend/internal/extract"
	"github.com/webpilot/backend/internal/fetch"
	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/page"
)

func testClient() *fetch.Client {
	c := fetch.NewClient(2*time.Second, "webpilot-test")
	c.Resty.SetRetryCount(0)
	return c
}

func newTestSummarizer(cfg Config, store *page.Store) *Summarizer {
	client := testClient()
	fetcher := fetch.NewFetcher(client, store, logging.NewNop())
	return NewSummarizer(cfg, client, fetcher, logging.NewNop())
}

func fakeCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["model"])
		assert.NotEmpty(t, req["messages"])

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		})
	}))
}

func TestSummarizeWithoutAPIKey(t *testing.T) {
	s := newTestSummarizer(Config{Model: "gpt-4o-mini"}, page.NewStore())

	got := s.Summarize(context.Background(), "what is this", extract.PageDigest{URL: "https://example.com"})
	assert.Equal(t, msgNoAPIKey, got)
}

func TestSummarizeReturnsModelContent(t *testing.T) {
	srv := fakeCompletionServer(t, "a tidy summary")
	defer srv.Close()

	s := newTestSummarizer(Config{
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		Endpoint:  srv.URL,
		MaxTokens: 1000,
	}, page.NewStore())

	got := s.Summarize(context.Background(), "summarize", extract.PageDigest{
		URL:     "https://example.com",
		Title:   "Example",
		Content: "Some page text.",
	})
	assert.Equal(t, "a tidy summary", got)
}

func TestSummarizeFailsSoftOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := newTestSummarizer(Config{APIKey: "test-key", Model: "m", Endpoint: srv.URL}, page.NewStore())

	got := s.Summarize(context.Background(), "summarize", extract.PageDigest{URL: "https://example.com"})
	assert.Equal(t, msgFailed, got)
}

func TestSummarizeFailsSoftOnUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	s := newTestSummarizer(Config{APIKey: "test-key", Model: "m", Endpoint: endpoint}, page.NewStore())

	got := s.Summarize(context.Background(), "summarize", extract.PageDigest{URL: "https://example.com"})
	assert.Equal(t, msgFailed, got)
}

func TestAnalyzeRefetchesPage(t *testing.T) {
	pageSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Fresh Page</h1><p>Fresh content for the digest.</p></body></html>`))
	}))
	defer pageSrv.Close()

	completionSrv := fakeCompletionServer(t, "analyzed")
	defer completionSrv.Close()

	store := page.NewStore()
	s := newTestSummarizer(Config{
		APIKey:   "test-key",
		Model:    "gpt-4o-mini",
		Endpoint: completionSrv.URL,
	}, store)

	got, err := s.Analyze(context.Background(), "analyze this page", pageSrv.URL)
	require.NoError(t, err)
	assert.Equal(t, "analyzed", got)

	// The deliberate re-fetch replaces the store snapshot.
	require.NotNil(t, store.Current())
	assert.Equal(t, pageSrv.URL, store.Current().URL)
}

func TestAnalyzeErrorsWhenPageUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := newTestSummarizer(Config{APIKey: "test-key", Model: "m"}, page.NewStore())

	_, err := s.Analyze(context.Background(), "analyze", url)
	require.Error(t, err)
}
