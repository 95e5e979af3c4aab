// Package persist writes a record to the relational store and the search
// index as two independent operations.
package persist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/amishk599/harvester/internal/model"
	"github.com/amishk599/harvester/internal/search"
	"github.com/amishk599/harvester/internal/store"
)

// DefaultTimeout bounds each write.
const DefaultTimeout = 10 * time.Second

// Result reports the outcome of both writes. A search failure after a
// successful upsert leaves the row durable; the next run's upsert reindexes it.
type Result struct {
	Inserted   bool
	Relational *model.PersistError
	Search     *model.PersistError
}

// Err joins whichever writes failed, or returns nil.
func (r Result) Err() error {
	var errs []error
	if r.Relational != nil {
		errs = append(errs, r.Relational)
	}
	if r.Search != nil {
		errs = append(errs, r.Search)
	}
	return errors.Join(errs...)
}

// Stage persists records.
type Stage struct {
	store   store.JobStore
	indexer search.Indexer
	timeout time.Duration
	logger  *slog.Logger
}

func New(st store.JobStore, indexer search.Indexer, timeout time.Duration, logger *slog.Logger) *Stage {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Stage{store: st, indexer: indexer, timeout: timeout, logger: logger}
}

// Persist upserts rec and indexes it, each under its own timeout. Neither
// failure rolls back the other.
func (s *Stage) Persist(ctx context.Context, rec *model.JobRecord) Result {
	var res Result

	inserted, err := s.upsert(ctx, rec)
	if err != nil {
		res.Relational = &model.PersistError{Target: model.TargetRelational, Source: rec.Source, SourceID: rec.SourceID, Err: err}
		s.logger.Error("relational upsert failed",
			"source", rec.Source, "source_id", rec.SourceID, "source_url", rec.SourceURL, "error", err)
	}
	res.Inserted = inserted

	if err := s.index(ctx, rec); err != nil {
		res.Search = &model.PersistError{Target: model.TargetSearch, Source: rec.Source, SourceID: rec.SourceID, Err: err}
		s.logger.Warn("search index write failed",
			"source", rec.Source, "source_id", rec.SourceID, "document_id", rec.DocumentID(), "error", err)
	}
	return res
}

func (s *Stage) upsert(ctx context.Context, rec *model.JobRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.Upsert(ctx, rec)
}

func (s *Stage) index(ctx context.Context, rec *model.JobRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.indexer.Index(ctx, rec)
}
