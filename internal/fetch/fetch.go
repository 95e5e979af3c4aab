// Package fetch hides network retrieval behind one Fetcher interface so
// adapters never care whether a page came from plain HTTP, a proxy or a
// rendering browser.
package fetch

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Request describes one page to retrieve.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte

	// Render asks for a browser-rendered fetch. Nil means plain HTTP.
	Render *RenderOptions
}

// RenderOptions controls when a rendered page is considered complete.
// WaitFor takes precedence over Settle.
type RenderOptions struct {
	WaitFor string        // CSS selector that must appear
	Settle  time.Duration // fixed post-load delay
}

// Response is a fully read response body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Fetcher retrieves a single request.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Get builds a GET request.
func Get(rawURL string) *Request {
	return &Request{Method: http.MethodGet, URL: rawURL, Header: http.Header{}}
}

// PostJSON builds a POST request with a JSON body.
func PostJSON(rawURL string, body []byte) *Request {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &Request{Method: http.MethodPost, URL: rawURL, Header: h, Body: body}
}

// Rendered builds a GET that must go through the rendering browser.
func Rendered(rawURL string, opts RenderOptions) *Request {
	req := Get(rawURL)
	req.Render = &opts
	return req
}

// Host returns the request host, or "_" when the URL cannot be parsed.
func (r *Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Host == "" {
		return "_"
	}
	return u.Hostname()
}

// Router sends rendered requests to one fetcher and everything else to another.
type Router struct {
	plain    Fetcher
	rendered Fetcher
}

// NewRouter returns a Router. A nil rendered fetcher makes rendered requests
// fall back to plain HTTP.
func NewRouter(plain, rendered Fetcher) *Router {
	return &Router{plain: plain, rendered: rendered}
}

func (r *Router) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if req.Render != nil && r.rendered != nil {
		return r.rendered.Fetch(ctx, req)
	}
	return r.plain.Fetch(ctx, req)
}

// WithTimeout bounds every call to inner, retries included when inner retries.
func WithTimeout(inner Fetcher, d time.Duration) Fetcher {
	if d <= 0 {
		return inner
	}
	return FetcherFunc(func(ctx context.Context, req *Request) (*Response, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return inner.Fetch(ctx, req)
	})
}
