package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amishk599/harvester/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleStats() *model.RunStats {
	stats := model.NewRunStats("run-123")
	gh := stats.For("greenhouse")
	gh.Found.Add(10)
	gh.Persisted.Add(8)
	gh.Duplicates.Add(2)
	jb := stats.For("jobbank")
	jb.Found.Add(5)
	jb.Persisted.Add(4)
	jb.Failed.Add(1)
	stats.Finish()
	return stats
}

func TestLogReporter_WritesTotals(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogReporter(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := r.Report(context.Background(), sampleStats()); err != nil {
		t.Fatalf("Report() = %v, want nil", err)
	}
	out := buf.String()
	for _, want := range []string{"source=greenhouse", "source=jobbank", "run_id=run-123", "found=15", "persisted=12"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSlackReporter_SingleMessage(t *testing.T) {
	var calls atomic.Int32
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), discardLogger())
	if err := r.Report(context.Background(), sampleStats()); err != nil {
		t.Fatalf("Report() = %v, want nil", err)
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("expected 1 HTTP call, got %d", c)
	}

	var payload slackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(payload.Blocks))
	}
	if !strings.Contains(payload.Blocks[0].Text.Text, "failures") {
		t.Errorf("header = %q, want failure headline", payload.Blocks[0].Text.Text)
	}
	if got := payload.Blocks[1].Fields[0].Text; got != "*Found:*\n15" {
		t.Errorf("found field = %q", got)
	}
	table := payload.Blocks[2].Text.Text
	if !strings.Contains(table, "greenhouse") || !strings.Contains(table, "jobbank") {
		t.Errorf("per-source table missing rows:\n%s", table)
	}
	if !strings.Contains(payload.Blocks[3].Elements[0].Text, "run-123") {
		t.Errorf("context block lacks run id: %q", payload.Blocks[3].Elements[0].Text)
	}
}

func TestSlackReporter_CleanRunHeadline(t *testing.T) {
	stats := model.NewRunStats("ok")
	stats.For("lever").Persisted.Add(3)
	payload := buildPayload(stats)
	if !strings.Contains(payload.Blocks[0].Text.Text, "complete") {
		t.Errorf("header = %q", payload.Blocks[0].Text.Text)
	}
}

func TestSlackReporter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), discardLogger())
	if err := r.Report(context.Background(), sampleStats()); err == nil {
		t.Error("expected error on 500, got nil")
	}
}

func TestSlackReporter_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), discardLogger())
	if err := r.Report(context.Background(), sampleStats()); err != nil {
		t.Fatalf("expected nil after retry, got %v", err)
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected 2 HTTP calls (initial + retry), got %d", c)
	}
}

func TestSlackReporter_RateLimitedTwice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := NewSlackReporter(srv.URL, srv.Client(), discardLogger())
	if err := r.Report(context.Background(), sampleStats()); err == nil {
		t.Error("expected error when retry is also rate limited")
	}
	if c := calls.Load(); c != 2 {
		t.Errorf("expected exactly one retry, got %d calls", c)
	}
}
