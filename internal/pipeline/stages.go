package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/harvester/internal/classify"
	"github.com/amishk599/harvester/internal/dedupe"
	"github.com/amishk599/harvester/internal/geocode"
	"github.com/amishk599/harvester/internal/model"
	"github.com/amishk599/harvester/internal/normalize"
	"github.com/amishk599/harvester/internal/persist"
	"github.com/amishk599/harvester/internal/validate"
)

// Persister is the final stage.
type Persister interface {
	Persist(ctx context.Context, rec *model.JobRecord) persist.Result
}

// RunState is shared by every adapter in one run.
type RunState struct {
	Fingerprints *dedupe.Set
	GeoCache     *geocode.Cache
}

// NewRunState creates an empty fingerprint set and geocode cache.
func NewRunState(threshold int, bucketed bool) *RunState {
	return &RunState{
		Fingerprints: dedupe.NewSet(threshold, bucketed),
		GeoCache:     geocode.NewCache(),
	}
}

// Stages is the per-record chain:
// validate → normalize → geocode → classify → dedupe → persist.
type Stages struct {
	Validator  *validate.Validator
	Normalizer *normalize.Normalizer
	Geocoder   *geocode.Geocoder
	Classifier *classify.Classifier
	Deduper    *dedupe.Deduper
	Persister  Persister
}

// NewStages wires the stage chain around state.
func NewStages(state *RunState, norm *normalize.Normalizer, provider geocode.Provider, geoTimeout time.Duration, persister Persister, logger *slog.Logger) Stages {
	return Stages{
		Validator:  validate.New(),
		Normalizer: norm,
		Geocoder:   geocode.New(provider, state.GeoCache, geoTimeout, logger),
		Classifier: classify.New(classify.Keywords),
		Deduper:    dedupe.New(state.Fingerprints),
		Persister:  persister,
	}
}

// Process carries raw through every stage, counting into st. It returns the
// record when it reached persistence, nil when it was dropped.
func (s Stages) Process(ctx context.Context, raw model.RawListing, st *model.SourceStats, logger *slog.Logger) *model.JobRecord {
	rec, err := s.Validator.Validate(raw)
	if err != nil {
		st.Rejected.Add(1)
		logger.Debug("record rejected",
			"source", raw.String(model.FieldSource), "source_url", raw.String(model.FieldSourceURL), "error", err)
		return nil
	}
	st.Validated.Add(1)

	rec = s.Normalizer.Normalize(rec)
	st.Normalized.Add(1)

	rec = s.Geocoder.Geocode(ctx, rec)
	rec = s.Classifier.Classify(rec)

	deduped, err := s.Deduper.Dedupe(rec)
	if err != nil {
		if model.IsDuplicate(err) {
			st.Duplicates.Add(1)
		}
		logger.Debug("record dropped", "source", rec.Source, "source_id", rec.SourceID, "error", err)
		return nil
	}

	res := s.Persister.Persist(ctx, deduped)
	if res.Relational != nil {
		st.Failed.Add(1)
	} else {
		st.Persisted.Add(1)
	}
	if res.Search != nil {
		st.SearchFailed.Add(1)
	}
	return deduped
}
