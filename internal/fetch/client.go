package fetch

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// Client wraps resty with retrying transport and rate limiting.
type Client struct {
	Resty   *resty.Client
	Limiter *rate.Limiter
}

// NewClient creates an HTTP client for outbound page and API calls.
func NewClient(timeout time.Duration, userAgent string) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New()
	restyClient.
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", userAgent).
		SetTransport(retryClient.HTTPClient.Transport)

	return &Client{
		Resty:   restyClient,
		Limiter: rate.NewLimiter(rate.Inf, 0),
	}
}

// SetRateLimit configures outbound requests per second. Zero or negative
// disables limiting.
func (c *Client) SetRateLimit(rps float64) {
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
	} else {
		c.Limiter = rate.NewLimiter(rate.Limit(rps), int(rps))
	}
}
