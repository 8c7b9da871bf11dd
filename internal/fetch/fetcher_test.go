package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const twoPosts = `[
  {"id": 1, "userId": 9, "title": "first", "body": "alpha"},
  {"id": 2, "userId": 9, "title": "second", "body": "beta"}
]`

func newTestClient(url string, opts ...Option) *Client {
	return NewClient(url, append([]Option{WithProber(AlwaysReachable)}, opts...)...)
}

func TestFetchPageDecodesPosts(t *testing.T) {
	var gotPath, gotPage, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("page")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(twoPosts))
	}))
	defer server.Close()

	posts, err := newTestClient(server.URL).FetchPage(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "/posts", gotPath)
	assert.Equal(t, "3", gotPage)
	assert.Equal(t, "application/json", gotContentType)

	require.Len(t, posts, 2)
	assert.Equal(t, int64(1), posts[0].ID)
	assert.Equal(t, "first", posts[0].Title)
	assert.Equal(t, "alpha", posts[0].Body)
	assert.False(t, posts[0].Favorite)
	assert.Equal(t, int64(2), posts[1].ID)
}

func TestFetchPageNoConnectivity(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	offline := ProberFunc(func(context.Context) bool { return false })
	_, err := NewClient(server.URL, WithProber(offline)).FetchPage(context.Background(), 1)

	assert.ErrorIs(t, err, ErrNoConnectivity)
	assert.Zero(t, hits, "no request may be issued when offline")
}

func TestFetchPageInvalidEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"no scheme", "example.com"},
		{"bad scheme", "ftp://example.com"},
		{"unparseable", "http://[::1"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestClient(tt.baseURL).FetchPage(context.Background(), 1)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestFetchPageStatusPolicy(t *testing.T) {
	tests := []struct {
		status     int
		body       string
		wantStatus bool
		wantDecode bool
	}{
		{http.StatusOK, twoPosts, false, false},
		{http.StatusCreated, `null`, false, true},
		{http.StatusNoContent, "", false, true},
		{http.StatusBadRequest, `{"error":"bad"}`, false, true},
		{http.StatusUnauthorized, `{}`, false, true},
		{http.StatusForbidden, `{}`, false, true},
		{http.StatusNotFound, `null`, false, true},
		{http.StatusInternalServerError, twoPosts, true, false},
		{http.StatusServiceUnavailable, twoPosts, true, false},
		{http.StatusConflict, twoPosts, true, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL).FetchPage(context.Background(), 1)

			var statusErr *StatusError
			assert.Equal(t, tt.wantStatus, errors.As(err, &statusErr), "status error for %d: %v", tt.status, err)
			if tt.wantStatus {
				assert.Equal(t, tt.status, statusErr.Code)
			}
			assert.Equal(t, tt.wantDecode, errors.Is(err, ErrDecode), "decode error for %d: %v", tt.status, err)
			if !tt.wantStatus && !tt.wantDecode {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFetchPageAcceptedErrorStatusWithArrayBody(t *testing.T) {
	// A 404 carrying a valid array is passed through as a successful page.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	posts, err := newTestClient(server.URL).FetchPage(context.Background(), 11)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFetchPageMalformedJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong id type", `[{"id": "not-a-number", "title": "t", "body": "b"}]`},
		{"null body", `null`},
		{"object body", `{"id": 1, "title": "t", "body": "b"}`},
		{"empty object element", `[{}]`},
		{"null element", `[null]`},
		{"unrelated keys only", `[{"userId": 3}]`},
		{"missing id", `[{"title": "t", "body": "b"}]`},
		{"missing title", `[{"id": 1, "body": "b"}]`},
		{"missing body", `[{"id": 1, "title": "t"}]`},
		{"null title", `[{"id": 1, "title": null, "body": "b"}]`},
		{"second element bad", `[{"id": 1, "title": "t", "body": "b"}, {"id": 2}]`},
		{"truncated", `[{"id": 1,`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			posts, err := newTestClient(server.URL).FetchPage(context.Background(), 1)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Nil(t, posts)
		})
	}
}

func TestFetchPageEmptyStrings(t *testing.T) {
	// Present but empty fields are valid.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 0, "title": "", "body": ""}]`))
	}))
	defer server.Close()

	posts, err := newTestClient(server.URL).FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(0), posts[0].ID)
	assert.Empty(t, posts[0].Title)
}

func TestFetchPageTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoConnectivity)
	assert.NotErrorIs(t, err, ErrDecode)
}

func TestFetchPageCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient("http://example.com").FetchPage(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchPageTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestClient(server.URL, WithTimeout(50*time.Millisecond)).FetchPage(context.Background(), 1)
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("https://example.com/")

	assert.Equal(t, "https://example.com", c.baseURL)
	assert.Zero(t, c.client.Timeout, "no timeout by default")
	assert.IsType(t, InterfaceProber{}, c.prober)
}

func TestWithHTTPClientIsCopied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoPosts))
	}))
	defer server.Close()

	hc := server.Client()
	c := newTestClient(server.URL, WithHTTPClient(hc), WithTimeout(time.Second))

	assert.Zero(t, hc.Timeout, "caller's client must not be modified")
	assert.Equal(t, time.Second, c.client.Timeout)
	assert.Same(t, hc.Transport, c.client.Transport)

	posts, err := c.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestWithRateLimit(t *testing.T) {
	paced := NewClient("https://example.com", WithRateLimit(2))
	assert.InDelta(t, 2.0, float64(paced.limiter.Limit()), 0.001)

	unpaced := NewClient("https://example.com", WithRateLimit(0))
	assert.True(t, unpaced.limiter.Limit() == rate.Inf)
}

func TestPageURL(t *testing.T) {
	u, err := NewClient("https://jsonplaceholder.typicode.com").PageURL(2)
	require.NoError(t, err)
	assert.Equal(t, "https://jsonplaceholder.typicode.com/posts?page=2", u)
}

func TestAccepted(t *testing.T) {
	for _, code := range []int{200, 201, 299, 400, 401, 403, 404} {
		assert.True(t, Accepted(code), "%d should be accepted", code)
	}
	for _, code := range []int{199, 300, 302, 402, 405, 429, 500} {
		assert.False(t, Accepted(code), "%d should be rejected", code)
	}
}
