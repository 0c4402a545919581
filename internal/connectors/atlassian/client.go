// Package atlassian provides the REST client shared by the Jira and
// Confluence connectors.
//
// Atlassian Cloud accepts an account email plus API token as HTTP basic
// auth; Data Center and OAuth apps use a bearer token. The client picks
// basic auth whenever an email is configured.
package atlassian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 2048
)

// Client issues authenticated GET requests against an Atlassian site.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	limiter *RateLimiter
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	rps     float64
	burst   int
	base    http.RoundTripper
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit sets the sustained request rate and burst.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(o *clientOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// WithTransport sets the underlying round tripper.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// NewClient creates a client for baseURL. With a non-empty email the token
// is sent as basic auth, otherwise as a bearer token.
func NewClient(baseURL, email string, tokens driven.TokenProvider, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	o := clientOptions{
		timeout: DefaultTimeout,
		rps:     DefaultRequestsPerSecond,
		burst:   DefaultBurstSize,
		base:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var transport http.RoundTripper
	if email != "" {
		transport = &basicAuthTransport{email: email, tokens: tokens, base: o.base}
	} else {
		transport = &oauth2.Transport{Source: &tokenSource{tokens: tokens}, Base: o.base}
	}

	return &Client{
		baseURL: u,
		http:    &http.Client{Transport: transport, Timeout: o.timeout},
		limiter: NewRateLimiter(o.rps, o.burst),
	}, nil
}

// BaseURL returns the site URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// GetJSON requests path with query and decodes the JSON body into out.
// A non-2xx response is returned as *APIError.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL.JoinPath(path)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.limiter.RecordRateLimit(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			URL:        u.String(),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// tokenSource adapts a TokenProvider to oauth2.TokenSource.
type tokenSource struct {
	tokens driven.TokenProvider
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.tokens.GetToken(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// basicAuthTransport sets email:token basic auth on each request.
type basicAuthTransport struct {
	email  string
	tokens driven.TokenProvider
	base   http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.tokens.GetToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.SetBasicAuth(t.email, token)
	return t.base.RoundTrip(clone)
}
