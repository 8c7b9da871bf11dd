// Package fetch provides the remote data source for postboard.
//
// A Client issues GET {baseURL}/posts?page={n} and decodes the JSON array of
// posts. It does not store anything; the caller decides what to do with the
// result.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/abelbrown/postboard/internal/store"
)

// postsPath is the collection endpoint relative to the base URL.
const postsPath = "/posts"

var (
	// ErrNoConnectivity is returned before any request when the prober
	// reports the device offline.
	ErrNoConnectivity = errors.New("no network connectivity")

	// ErrInvalidEndpoint is returned when the request URL cannot be built.
	// It indicates a configuration or programming error.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrDecode is returned when the response body is not a JSON array of posts.
	ErrDecode = errors.New("decode response")
)

// StatusError is returned when the server answers with a status outside the
// accepted set.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status: %d %s", e.Code, http.StatusText(e.Code))
}

// Accepted reports whether a status code lets the response through to decoding.
// 400, 401, 403 and 404 are accepted alongside 2xx; their bodies are decoded
// like any other and usually fail with ErrDecode.
func Accepted(code int) bool {
	if code >= 200 && code <= 299 {
		return true
	}
	switch code {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// post is the wire shape of a post. Pointer fields tell a missing or null
// key apart from a zero value; all three are required.
type post struct {
	ID    *int64  `json:"id"`
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

// decodePosts parses a page body. The top level must be a JSON array and
// every element must carry id, title and body.
func decodePosts(body []byte) ([]store.Post, error) {
	var wire []*post
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if wire == nil {
		return nil, fmt.Errorf("%w: body is not an array", ErrDecode)
	}

	posts := make([]store.Post, 0, len(wire))
	for i, w := range wire {
		switch {
		case w == nil:
			return nil, fmt.Errorf("%w: element %d is null", ErrDecode, i)
		case w.ID == nil:
			return nil, fmt.Errorf("%w: element %d: missing id", ErrDecode, i)
		case w.Title == nil:
			return nil, fmt.Errorf("%w: element %d: missing title", ErrDecode, i)
		case w.Body == nil:
			return nil, fmt.Errorf("%w: element %d: missing body", ErrDecode, i)
		}
		posts = append(posts, store.Post{ID: *w.ID, Title: *w.Title, Body: *w.Body})
	}
	return posts, nil
}

// Client retrieves pages of posts from the remote API.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	prober  Prober
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The Client keeps its
// own copy, so later options never modify hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.client = &cp
		}
	}
}

// WithTimeout sets the per-request timeout. Zero means wait indefinitely.
// Options apply in order, so pass it after WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		cp := *c.client
		cp.Timeout = d
		c.client = &cp
	}
}

// WithRateLimit paces requests to rps per second. Zero or less disables pacing.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithProber replaces the connectivity check.
func WithProber(p Prober) Option {
	return func(c *Client) {
		if p != nil {
			c.prober = p
		}
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a Client for baseURL.
// By default there is no request timeout and no pacing.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, 1),
		prober:  InterfaceProber{},
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageURL builds the request URL for page.
func (c *Client) PageURL(page int) (string, error) {
	u, err := url.Parse(c.baseURL + postsPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPage performs one round trip for page and returns the decoded posts.
// Favorite is false on every returned post.
func (c *Client) FetchPage(ctx context.Context, page int) ([]store.Post, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !c.prober.Reachable(ctx) {
		return nil, ErrNoConnectivity
	}

	pageURL, err := c.PageURL(page)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "postboard/0.1")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("GET", "url", pageURL, "status", resp.StatusCode, "dur", time.Since(start))

	if !Accepted(resp.StatusCode) {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	posts, err := decodePosts(body)
	if err != nil {
		c.logger.Warn("decode failed", "url", pageURL, "status", resp.StatusCode, "err", err)
		return nil, err
	}
	return posts, nil
}
