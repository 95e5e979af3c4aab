package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amishk599/harvester/internal/model"
)

func TestAshbyListings_Success(t *testing.T) {
	payload := `{
		"apiVersion": "1",
		"jobs": [
			{
				"id": "abc-123",
				"title": "Environmental Scientist",
				"department": "Consulting",
				"employmentType": "FullTime",
				"location": "Halifax, NS",
				"descriptionPlain": "Wetland assessments.",
				"jobUrl": "https://jobs.ashbyhq.com/acme/abc-123",
				"publishedAt": "2026-02-13T10:00:00Z",
				"isListed": true
			},
			{
				"id": "def-456",
				"title": "Data Analyst",
				"employmentType": "PartTime",
				"isRemote": true,
				"descriptionHtml": "<p>Remote analytics</p>",
				"jobUrl": "https://jobs.ashbyhq.com/acme/def-456",
				"isListed": true
			},
			{
				"id": "ghi-789",
				"title": "Unlisted Role",
				"jobUrl": "https://jobs.ashbyhq.com/acme/ghi-789",
				"isListed": false
			}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/posting-api/job-board/acme" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	a := NewAshbyAdapter([]Company{{Name: "Acme Environmental", Token: "acme"}}, newTestFetcher(srv), discardLogger())
	listings, errs := drain(a.Listings(context.Background()))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings (unlisted filtered), got %d", len(listings))
	}

	l := listings[0]
	if got := l.String(model.FieldSourceID); got != "ashby_acme_abc-123" {
		t.Errorf("source_id = %q", got)
	}
	if got := l.String(model.FieldJobType); got != "full_time" {
		t.Errorf("job_type = %q", got)
	}
	if got := l.String(model.FieldPostedAt); got != "2026-02-13T10:00:00Z" {
		t.Errorf("posted_at = %q", got)
	}

	r := listings[1]
	if got := r.String(model.FieldLocation); got != "Remote" {
		t.Errorf("remote location = %q", got)
	}
	if got := r.String(model.FieldDescription); got != "Remote analytics" {
		t.Errorf("description = %q", got)
	}
	if got := r.String(model.FieldJobType); got != "part_time" {
		t.Errorf("job_type = %q", got)
	}
}

func TestAshbyListings_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not valid json`))
	}))
	defer srv.Close()

	a := NewAshbyAdapter([]Company{{Name: "Bad", Token: "bad"}}, newTestFetcher(srv), discardLogger())
	listings, errs := drain(a.Listings(context.Background()))
	if len(listings) != 0 || len(errs) != 0 {
		t.Fatalf("malformed board should be skipped silently, got %d/%d", len(listings), len(errs))
	}
}
