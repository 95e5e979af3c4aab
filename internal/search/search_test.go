package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/harvester/internal/model"
)

type recordedRequest struct {
	method string
	path   string
	body   []byte
}

// mockTransport answers Elasticsearch requests and records what it saw.
type mockTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(req *http.Request) (int, string)
}

func (t *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}
	t.mu.Lock()
	t.requests = append(t.requests, recordedRequest{method: req.Method, path: req.URL.Path, body: body})
	t.mu.Unlock()

	status, payload := t.respond(req)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(payload)),
		Header:     http.Header{"X-Elastic-Product": []string{"Elasticsearch"}, "Content-Type": []string{"application/json"}},
	}, nil
}

func newTestIndexer(t *testing.T, respond func(req *http.Request) (int, string)) (*ESIndexer, *mockTransport) {
	t.Helper()
	transport := &mockTransport{respond: respond}
	client, err := es.NewClient(es.Config{Transport: transport})
	require.NoError(t, err)
	return NewESIndexer(client, "jobs_test"), transport
}

func sampleRecord() *model.JobRecord {
	lo := 30
	return &model.JobRecord{
		Title:       "Deckhand",
		CompanyName: "Ocean Choice",
		City:        "St. John's",
		Province:    "NL",
		Country:     "CA",
		Industry:    model.IndustryFishing,
		JobType:     model.JobTypeTemporary,
		SalaryMin:   &lo,
		Source:      "jobbank",
		SourceID:    "4242",
		SourceURL:   "https://www.jobbank.gc.ca/jobsearch/jobposting/4242",
		ScrapedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestIndex_UsesDeterministicDocumentID(t *testing.T) {
	x, transport := newTestIndexer(t, func(*http.Request) (int, string) {
		return http.StatusCreated, `{"result":"created"}`
	})

	require.NoError(t, x.Index(context.Background(), sampleRecord()))
	require.NoError(t, x.Index(context.Background(), sampleRecord()))

	require.Len(t, transport.requests, 2)
	for _, r := range transport.requests {
		assert.Equal(t, http.MethodPut, r.method)
		assert.Equal(t, "/jobs_test/_doc/jobbank_4242", r.path)
	}

	var doc map[string]any
	require.NoError(t, json.Unmarshal(transport.requests[0].body, &doc))
	assert.Equal(t, "Deckhand", doc["title"])
	assert.Equal(t, "fishing", doc["industry"])
	assert.EqualValues(t, 30, doc["salary_min"])
	assert.NotContains(t, doc, "geo_point", "geo_point requires both coordinates")
	assert.NotContains(t, doc, "salary_max")
}

func TestToDocument_GeoPoint(t *testing.T) {
	rec := sampleRecord()
	lat := 47.56
	rec.Latitude = &lat
	assert.Nil(t, toDocument(rec).GeoPoint, "latitude alone is not a point")

	lon := -52.71
	rec.Longitude = &lon
	doc := toDocument(rec)
	require.NotNil(t, doc.GeoPoint)
	assert.Equal(t, geoPoint{Lat: 47.56, Lon: -52.71}, *doc.GeoPoint)
}

func TestIndex_ErrorResponse(t *testing.T) {
	x, _ := newTestIndexer(t, func(*http.Request) (int, string) {
		return http.StatusBadRequest, `{"error":{"type":"mapper_parsing_exception"}}`
	})

	err := x.Index(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jobbank_4242")
}

func TestEnsureIndex_CreatesMissingIndex(t *testing.T) {
	x, transport := newTestIndexer(t, func(req *http.Request) (int, string) {
		if req.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	})

	require.NoError(t, x.EnsureIndex(context.Background()))
	require.Len(t, transport.requests, 2)
	assert.Equal(t, http.MethodPut, transport.requests[1].method)
	assert.Equal(t, "/jobs_test", transport.requests[1].path)

	var body map[string]any
	require.NoError(t, json.Unmarshal(transport.requests[1].body, &body))
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "geo_point"}, props["geo_point"])
	assert.Equal(t, map[string]any{"type": "keyword"}, props["province"])
	assert.Equal(t, map[string]any{"type": "integer"}, props["salary_max"])
}

func TestEnsureIndex_ExistingIndexIsLeftAlone(t *testing.T) {
	x, transport := newTestIndexer(t, func(*http.Request) (int, string) {
		return http.StatusOK, ``
	})

	require.NoError(t, x.EnsureIndex(context.Background()))
	assert.Len(t, transport.requests, 1)
}

func TestEnsureIndex_UnexpectedStatus(t *testing.T) {
	x, _ := newTestIndexer(t, func(*http.Request) (int, string) {
		return http.StatusUnauthorized, ``
	})
	assert.Error(t, x.EnsureIndex(context.Background()))
}

func TestNewESIndexer_DefaultIndex(t *testing.T) {
	client, err := es.NewClient(es.Config{Transport: &mockTransport{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultIndex, NewESIndexer(client, "").index)
}
