// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. limiter (shared token bucket, every worker waits here before a request)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. httpcache (ETag-based conditional request caching)
//  4. oauth2 (bearer token)
//  5. go-github (GitHub REST API client)
//
// limiter may be nil, in which case requests are not paced locally.
func NewClient(token string, limiter *rate.Limiter) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	cacheTransport := httpcache.NewMemoryCacheTransport()
	cacheTransport.Transport = &oauth2.Transport{Source: ts, Base: http.DefaultTransport}

	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	if limiter != nil {
		rateLimitClient.Transport = &limitedTransport{base: rateLimitClient.Transport, limiter: limiter}
	}

	return &Client{gh: gh.NewClient(rateLimitClient)}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// limitedTransport blocks each request until the shared limiter grants a token.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

// RoundTrip waits for a token, honoring request cancellation, then delegates.
func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	// The search API has its own 30/min bucket, so warn relative to the limit.
	if resp.Rate.Limit > 0 && resp.Rate.Remaining*10 < resp.Rate.Limit {
		slog.Warn("github rate limit low",
			"endpoint", endpoint,
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}
