// Package fetch retrieves raw page markup and keeps the page store
// current. Fetch failures are reported to the caller, never fatal.
package fetch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/logging"
	"github.com/webpilot/backend/internal/page"
)

// Fetcher performs HTTP GETs and replaces the page store snapshot on
// every successful fetch.
type Fetcher struct {
	client *Client
	store  *page.Store
	logger *logging.Logger
}

// NewFetcher creates a fetcher bound to a store.
func NewFetcher(client *Client, store *page.Store, logger *logging.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		store:  store,
		logger: logger,
	}
}

// Fetch retrieves the page at url, stores the snapshot, and returns it.
// On any network or read failure it logs, leaves the store untouched,
// and returns an error; callers treat that as "no snapshot available"
// and must not retry automatically.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*page.Snapshot, error) {
	if err := f.client.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := f.client.Resty.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		Get(url)
	if err != nil {
		f.logger.Warn("page fetch failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 400 {
		f.logger.Warn("page fetch returned error status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode())
	}

	snap := &page.Snapshot{URL: url, HTML: string(resp.Body())}
	f.store.Set(snap)

	f.logger.Info("page fetched",
		zap.String("url", url),
		zap.Int("bytes", len(snap.HTML)))
	return snap, nil
}
