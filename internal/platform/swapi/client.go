// Package swapi is the HTTP client for the upstream Star Wars catalog.
package swapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
)

// Raw is one upstream record as decoded from JSON. Shape checks are left to
// the mapper.
type Raw map[string]any

// Options configures a Client.
type Options struct {
	BaseURL    string
	VerifySSL  bool
	Timeout    time.Duration
	RPS        float64
	MaxRetries int
	UserAgent  string
	// Backoff is the first retry delay; it doubles per attempt up to maxBackoff.
	Backoff time.Duration
}

const maxBackoff = 10 * time.Second

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

func NewClient(opts Options) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via VERIFY_SWAPI_SSL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "swapiapi/1.0"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent:  opts.UserAgent,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(opts.RPS), 1),
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
	}
}

// Endpoint returns the upstream collection path for kind.
func Endpoint(kind entity.Kind) string {
	switch kind {
	case entity.KindCharacter:
		return "people"
	case entity.KindFilm:
		return "films"
	case entity.KindStarship:
		return "starships"
	}
	return string(kind)
}

// page is the paginated upstream envelope.
type page struct {
	Results []Raw   `json:"results"`
	Next    *string `json:"next"`
}

// FetchAll walks every upstream page for kind. When a later page fails, the
// records gathered so far are returned together with the error.
func (c *Client) FetchAll(ctx context.Context, kind entity.Kind) ([]Raw, error) {
	next := c.baseURL + "/" + Endpoint(kind) + "/"
	seen := make(map[string]bool)

	var out []Raw
	for next != "" && !seen[next] {
		seen[next] = true

		p, err := c.fetchPage(ctx, kind, next)
		if err != nil {
			return out, err
		}
		out = append(out, p.Results...)

		if p.Next == nil || *p.Next == "" {
			break
		}
		resolved, err := resolve(next, *p.Next)
		if err != nil {
			return out, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: *p.Next, Err: err}
		}
		next = resolved
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, kind entity.Kind, u string) (*page, error) {
	body, err := c.get(ctx, kind, u)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, Err: errors.New("empty response body")}
	}

	// Some SWAPI mirrors return the whole collection as a bare array.
	if trimmed[0] == '[' {
		var results []Raw
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, Err: fmt.Errorf("decode list: %w", err)}
		}
		return &page{Results: results}, nil
	}

	var p page
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, Err: fmt.Errorf("decode page: %w", err)}
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, kind entity.Kind, u string) ([]byte, error) {
	var lastErr error
	var lastStatus int
	for i := 0; i <= c.maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(c.backoffFor(i)):
			case <-ctx.Done():
				return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, Err: ctx.Err()}
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, Err: err}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, Err: err}
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		body, status, err := c.do(req)
		if err != nil {
			lastErr, lastStatus = err, 0
			continue
		}
		if status < 200 || status > 299 {
			lastErr, lastStatus = fmt.Errorf("unexpected status code: %d", status), status
			if status == http.StatusTooManyRequests || status >= 500 {
				continue
			}
			break
		}
		return body, nil
	}
	return nil, &apperr.UpstreamUnavailableError{Kind: string(kind), URL: u, StatusCode: lastStatus, Err: lastErr}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// backoffFor returns the delay before retry attempt n (n >= 1).
func (c *Client) backoffFor(n int) time.Duration {
	d := c.backoff << uint(n-1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
