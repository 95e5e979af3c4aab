package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/amishk599/harvester/internal/model"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

// HTTPFetcher performs plain HTTP requests through an *http.Client, applying
// request decorators (header rotation and similar) before each send.
type HTTPFetcher struct {
	client     *http.Client
	decorators []Decorator
}

// NewHTTPFetcher creates a fetcher over client.
func NewHTTPFetcher(client *http.Client, decorators ...Decorator) *HTTPFetcher {
	return &HTTPFetcher{client: client, decorators: decorators}
}

// Fetch sends req and reads the whole body. Non-2xx statuses are returned as
// *model.HTTPError so retry logic can inspect them.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", req.URL, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for _, d := range f.decorators {
		d.Decorate(httpReq)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	return readResponse(resp, req.URL)
}

func readResponse(resp *http.Response, rawURL string) (*Response, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        rawURL,
	}, nil
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
