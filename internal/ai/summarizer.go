// Package ai calls the model-completion endpoint to analyze page
// content. Every failure path degrades to a fixed string so callers
// never have to guard against it.
package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/webpilot/backend/internal/extract"
	"github.com/webpilot/backend/internal/fetch"
	"github.com/webpilot/backend/internal/logging"
)

// Soft-failure sentinels returned instead of errors.
const (
	msgNoAPIKey = "AI analysis unavailable: API key not set"
	msgFailed   = "AI analysis failed"
)

const systemPrompt = "You are a webpage content analysis assistant. " +
	"Extract useful information from provided webpage content based on " +
	"user instructions. Return JSON."

// Config holds summarizer settings.
type Config struct {
	APIKey    string
	Model     string
	Endpoint  string
	MaxTokens int
}

// Summarizer re-fetches the current page as a plain-text digest and asks
// the completion endpoint to analyze it.
type Summarizer struct {
	cfg     Config
	client  *fetch.Client
	fetcher *fetch.Fetcher
	logger  *logging.Logger
}

// NewSummarizer creates a summarizer. An empty API key is allowed; the
// analysis path then returns an advisory string instead of calling out.
func NewSummarizer(cfg Config, client *fetch.Client, fetcher *fetch.Fetcher, logger *logging.Logger) *Summarizer {
	return &Summarizer{
		cfg:     cfg,
		client:  client,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Analyze builds a fresh digest of the page at url and returns the
// model's raw text response. The fetch is deliberately independent of
// the cached snapshot used for structural extraction. An error is
// returned only when the digest cannot be built at all; model-side
// failures fail soft.
func (s *Summarizer) Analyze(ctx context.Context, instruction, url string) (string, error) {
	snap, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	digest, err := extract.Digest(snap)
	if err != nil {
		return "", fmt.Errorf("build digest: %w", err)
	}

	return s.Summarize(ctx, instruction, digest), nil
}

// Summarize sends the digest and instruction to the completion endpoint.
// Never returns an error: missing credential and call failures map to
// fixed strings.
func (s *Summarizer) Summarize(ctx context.Context, instruction string, digest extract.PageDigest) string {
	if s.cfg.APIKey == "" {
		return msgNoAPIKey
	}

	userPrompt := fmt.Sprintf(
		"Page Title: %s\nPage URL: %s\n\nPage Content:\n%s\n\nUser Instruction: %s\n\nPlease return structured extracted information.",
		digest.Title, digest.URL, digest.Content, instruction,
	)

	content, err := Complete(ctx, s.client, s.cfg, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	})
	if err != nil {
		s.logger.Warn("completion call failed", zap.Error(err))
		return msgFailed
	}
	return content
}
