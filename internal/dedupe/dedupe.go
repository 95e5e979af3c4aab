// Package dedupe drops near-duplicate records using SimHash fingerprints of
// title, company and location.
package dedupe

import (
	"context"

	"github.com/amishk599/harvester/internal/model"
)

// DefaultThreshold is the largest Hamming distance still counted as a duplicate.
const DefaultThreshold = 3

// Deduper fingerprints records and rejects those close to one already seen.
type Deduper struct {
	set *Set
}

func New(set *Set) *Deduper {
	return &Deduper{set: set}
}

// Dedupe stamps rec with its fingerprint. It returns a dedupe-stage
// *model.Rejection when a near-duplicate was accepted earlier, either in this
// run or, under a different natural key, in a previous one.
func (d *Deduper) Dedupe(rec *model.JobRecord) (*model.JobRecord, error) {
	fp := Fingerprint(rec.Title, rec.CompanyName, rec.Location)
	rec.Fingerprint, rec.HasFingerprint = fp, true

	if match, dup := d.set.CheckAndAdd(fp, Key(rec)); dup {
		return nil, model.Reject(model.StageDedupe,
			"near-duplicate of %016x (distance %d)", match, Distance(fp, match))
	}
	return rec, nil
}

// Key is the natural key a fingerprint is recorded under.
func Key(rec *model.JobRecord) string {
	return rec.Source + "|" + rec.SourceID
}

// History persists accepted fingerprints between runs.
type History interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// NopHistory keeps nothing, so every run starts from an empty set.
type NopHistory struct{}

func (NopHistory) Load(context.Context) ([]Entry, error) { return nil, nil }
func (NopHistory) Save(context.Context, []Entry) error    { return nil }
