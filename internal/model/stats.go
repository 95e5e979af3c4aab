package model

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SourceStats counts what happened to one adapter's output during a run.
type SourceStats struct {
	Found        atomic.Int64 // raw listings yielded by the adapter
	Validated    atomic.Int64
	Rejected     atomic.Int64 // failed validation
	Normalized   atomic.Int64
	Duplicates   atomic.Int64 // dropped as near-duplicates
	Persisted    atomic.Int64 // relational upsert succeeded
	Failed       atomic.Int64 // relational upsert failed
	SearchFailed atomic.Int64 // search index write failed
	FailedPages  atomic.Int64 // units of work that exhausted retries
}

// SourceSnapshot is a plain copy of SourceStats for reporting.
type SourceSnapshot struct {
	Source       string `json:"source"`
	Found        int64  `json:"found"`
	Validated    int64  `json:"validated"`
	Rejected     int64  `json:"rejected"`
	Normalized   int64  `json:"normalized"`
	Duplicates   int64  `json:"duplicates"`
	Persisted    int64  `json:"persisted"`
	Failed       int64  `json:"failed"`
	SearchFailed int64  `json:"search_failed"`
	FailedPages  int64  `json:"failed_pages"`
}

// RunStats aggregates per-source counters for one ingestion run.
type RunStats struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	mu      sync.Mutex
	sources map[string]*SourceStats
}

// NewRunStats creates stats for a run starting now.
func NewRunStats(runID string) *RunStats {
	return &RunStats{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		sources:   make(map[string]*SourceStats),
	}
}

// For returns the counters for source, creating them on first use.
func (s *RunStats) For(source string) *SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sources[source]
	if !ok {
		st = &SourceStats{}
		s.sources[source] = st
	}
	return st
}

// Finish stamps the end of the run.
func (s *RunStats) Finish() {
	s.FinishedAt = time.Now().UTC()
}

// Snapshot returns per-source counters sorted by source name.
func (s *RunStats) Snapshot() []SourceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SourceSnapshot, 0, len(s.sources))
	for name, st := range s.sources {
		out = append(out, SourceSnapshot{
			Source:       name,
			Found:        st.Found.Load(),
			Validated:    st.Validated.Load(),
			Rejected:     st.Rejected.Load(),
			Normalized:   st.Normalized.Load(),
			Duplicates:   st.Duplicates.Load(),
			Persisted:    st.Persisted.Load(),
			Failed:       st.Failed.Load(),
			SearchFailed: st.SearchFailed.Load(),
			FailedPages:  st.FailedPages.Load(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Totals sums every source.
func (s *RunStats) Totals() SourceSnapshot {
	total := SourceSnapshot{Source: "total"}
	for _, snap := range s.Snapshot() {
		total.Found += snap.Found
		total.Validated += snap.Validated
		total.Rejected += snap.Rejected
		total.Normalized += snap.Normalized
		total.Duplicates += snap.Duplicates
		total.Persisted += snap.Persisted
		total.Failed += snap.Failed
		total.SearchFailed += snap.SearchFailed
		total.FailedPages += snap.FailedPages
	}
	return total
}

// Duration is the wall time of the run, or the time so far if unfinished.
func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
