package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSettle is the post-load wait used when a rendered request names
// neither a selector nor a delay.
const DefaultSettle = 2 * time.Second

// RenderFetcher retrieves JavaScript-rendered pages through a headless
// browser service exposing a browserless-compatible /content endpoint.
type RenderFetcher struct {
	endpoint   string
	token      string
	settle     time.Duration
	client     *http.Client
	decorators []Decorator
}

// NewRenderFetcher creates a fetcher posting to endpoint. A zero settle falls
// back to DefaultSettle.
func NewRenderFetcher(client *http.Client, endpoint, token string, settle time.Duration, decorators ...Decorator) *RenderFetcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &RenderFetcher{
		endpoint:   strings.TrimRight(endpoint, "/"),
		token:      token,
		settle:     settle,
		client:     client,
		decorators: decorators,
	}
}

type waitForSelector struct {
	Selector string `json:"selector"`
	Timeout  int64  `json:"timeout"`
}

type contentRequest struct {
	URL                 string            `json:"url"`
	WaitForSelector     *waitForSelector  `json:"waitForSelector,omitempty"`
	WaitForTimeout      int64             `json:"waitForTimeout,omitempty"`
	SetExtraHTTPHeaders map[string]string `json:"setExtraHTTPHeaders,omitempty"`
}

// selectorTimeout bounds how long the browser waits for a marker element.
const selectorTimeout = 30 * time.Second

// Fetch renders req.URL and returns the final HTML.
func (f *RenderFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	opts := RenderOptions{}
	if req.Render != nil {
		opts = *req.Render
	}

	payload := contentRequest{URL: req.URL}
	switch {
	case opts.WaitFor != "":
		payload.WaitForSelector = &waitForSelector{
			Selector: opts.WaitFor,
			Timeout:  selectorTimeout.Milliseconds(),
		}
	case opts.Settle > 0:
		payload.WaitForTimeout = opts.Settle.Milliseconds()
	default:
		payload.WaitForTimeout = f.settle.Milliseconds()
	}

	// Decorators run against a scratch request so rotated headers reach the
	// page load inside the browser, not the call to the render service.
	scratch, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build render request for %s: %w", req.URL, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			scratch.Header.Add(k, v)
		}
	}
	for _, d := range f.decorators {
		d.Decorate(scratch)
	}
	if len(scratch.Header) > 0 {
		payload.SetExtraHTTPHeaders = make(map[string]string, len(scratch.Header))
		for k := range scratch.Header {
			payload.SetExtraHTTPHeaders[k] = scratch.Header.Get(k)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.contentURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request for %s: %w", req.URL, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	return readResponse(resp, req.URL)
}

func (f *RenderFetcher) contentURL() string {
	u := f.endpoint + "/content"
	if f.token != "" {
		u += "?token=" + url.QueryEscape(f.token)
	}
	return u
}
