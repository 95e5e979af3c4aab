package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amishk599/harvester/internal/model"
)

func jobbankPage(startID, n, total int) string {
	jobs := make([]string, n)
	for i := range n {
		jobs[i] = fmt.Sprintf(`{"jobId": %d, "title": "Job %d", "employer": "Employer", "location": "Sudbury"}`, startID+i, startID+i)
	}
	return fmt.Sprintf(`{"jobs": [%s], "total": %d}`, strings.Join(jobs, ","), total)
}

func TestJobbankListings_PaginatesAndFetchesDetails(t *testing.T) {
	var detailCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/jobsearch":
			if r.URL.Query().Get("sort") != "M" || r.URL.Query().Get("searchstring") != "oil gas" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			switch r.URL.Query().Get("page") {
			case "1":
				w.Write([]byte(jobbankPage(1, 25, 30)))
			case "2":
				w.Write([]byte(jobbankPage(26, 5, 30)))
			default:
				t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
			}
		case strings.HasPrefix(r.URL.Path, "/api/job/"):
			detailCalls.Add(1)
			w.Write([]byte(`{
				"title": "Driller",
				"employer": {"name": "Vale"},
				"location": {"city": "Sudbury", "province": "ON"},
				"description": "Underground drilling.",
				"employmentType": "Seasonal",
				"salary": {"value": "$30.00 to $35.00 hourly", "min": 30, "max": 35},
				"datePosted": "2026-01-05",
				"dateExpires": "2026-03-05"
			}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	a := NewJobbankAdapter([]string{"oil gas"}, true, 10, newTestFetcher(srv), discardLogger())
	listings, errs := drain(a.Listings(context.Background()))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(listings) != 30 {
		t.Fatalf("expected 30 listings over 2 pages, got %d", len(listings))
	}
	if detailCalls.Load() != 30 {
		t.Errorf("expected 30 detail fetches, got %d", detailCalls.Load())
	}

	l := listings[0]
	if got := l.String(model.FieldSourceID); got != "1" {
		t.Errorf("source_id = %q", got)
	}
	if got := l.String(model.FieldSourceURL); got != "https://www.jobbank.gc.ca/jobsearch/jobposting/1" {
		t.Errorf("source_url = %q", got)
	}
	if got := l.String(model.FieldLocation); got != "Sudbury, ON" {
		t.Errorf("location = %q, want city and province joined", got)
	}
	if got := l.String(model.FieldProvince); got != "ON" {
		t.Errorf("province = %q", got)
	}
	if got := l.String(model.FieldJobType); got != "temporary" {
		t.Errorf("job_type = %q", got)
	}
	if got, ok := l[model.FieldSalaryMin].(float64); !ok || got != 30 {
		t.Errorf("salary_min = %v", l[model.FieldSalaryMin])
	}
}

func TestJobbankListings_PageCap(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		w.Write([]byte(jobbankPage(int(pages.Load())*100, 25, 10000)))
	}))
	defer srv.Close()

	a := NewJobbankAdapter([]string{"mining"}, false, 3, newTestFetcher(srv), discardLogger())
	listings, _ := drain(a.Listings(context.Background()))
	if pages.Load() != 3 {
		t.Errorf("expected 3 page fetches, got %d", pages.Load())
	}
	if len(listings) != 75 {
		t.Errorf("expected 75 listings, got %d", len(listings))
	}
	if got := listings[0].String(model.FieldCompanyName); got != "Employer" {
		t.Errorf("summary employer = %q", got)
	}
}

func TestJobbankListings_FailedKeywordContinues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("searchstring") == "forestry" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(jobbankPage(1, 2, 2)))
	}))
	defer srv.Close()

	a := NewJobbankAdapter([]string{"forestry", "fishing"}, false, 5, newTestFetcher(srv), discardLogger())
	listings, errs := drain(a.Listings(context.Background()))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	var pageErr *model.PageError
	if !errors.As(errs[0], &pageErr) || pageErr.Entity != "forestry" || pageErr.Page != 1 {
		t.Errorf("unexpected error %v", errs[0])
	}
	if len(listings) != 2 {
		t.Errorf("expected 2 listings from the second keyword, got %d", len(listings))
	}
}

func TestJobbankListings_FailedDetailSkipsOnlyThatJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/jobsearch":
			w.Write([]byte(jobbankPage(1, 2, 2)))
		case "/api/job/1":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.Write([]byte(`{"title": "Deckhand", "employer": {"name": "Clearwater"}}`))
		}
	}))
	defer srv.Close()

	a := NewJobbankAdapter([]string{"fishing"}, true, 5, newTestFetcher(srv), discardLogger())
	listings, errs := drain(a.Listings(context.Background()))
	if len(errs) != 1 || len(listings) != 1 {
		t.Fatalf("expected 1 error and 1 listing, got %d/%d", len(errs), len(listings))
	}
	if got := listings[0].String(model.FieldTitle); got != "Deckhand" {
		t.Errorf("title = %q", got)
	}
}

func TestJobbankListings_BadPageSkipsToNextPage(t *testing.T) {
	tests := []struct {
		name     string
		page2    func(w http.ResponseWriter)
		wantErrs int
	}{
		{"malformed", func(w http.ResponseWriter) { w.Write([]byte(`{"jobs": [ <html>`)) }, 0},
		{"retries exhausted", func(w http.ResponseWriter) { w.WriteHeader(http.StatusBadGateway) }, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pages atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				pages.Add(1)
				switch r.URL.Query().Get("page") {
				case "1":
					w.Write([]byte(jobbankPage(1, 25, 75)))
				case "2":
					tt.page2(w)
				case "3":
					w.Write([]byte(jobbankPage(51, 25, 75)))
				default:
					t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
				}
			}))
			defer srv.Close()

			a := NewJobbankAdapter([]string{"millwright"}, false, 10, newTestFetcher(srv), discardLogger())
			listings, errs := drain(a.Listings(context.Background()))
			if len(errs) != tt.wantErrs {
				t.Errorf("errors = %v, want %d", errs, tt.wantErrs)
			}
			if len(listings) != 50 {
				t.Errorf("expected 50 listings from pages 1 and 3, got %d", len(listings))
			}
			if got := listings[len(listings)-1].String(model.FieldSourceID); got != "75" {
				t.Errorf("last source_id = %q, want 75", got)
			}
			if pages.Load() != 3 {
				t.Errorf("fetched %d pages, want 3", pages.Load())
			}
		})
	}
}

func TestJobbankListings_MalformedFirstPageEndsKeyword(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	a := NewJobbankAdapter([]string{"deckhand"}, false, 10, newTestFetcher(srv), discardLogger())
	listings, errs := drain(a.Listings(context.Background()))
	if len(listings) != 0 || len(errs) != 0 {
		t.Errorf("got %d listings and %v", len(listings), errs)
	}
	if pages.Load() != 1 {
		t.Errorf("fetched %d pages, want 1 when no total is known", pages.Load())
	}
}
