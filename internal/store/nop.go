package store

import (
	"context"

	"github.com/amishk599/harvester/internal/model"
)

// NopStore is used in dry-run mode. It accepts every record and keeps nothing,
// so every record looks new on each run.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Upsert(context.Context, *model.JobRecord) (bool, error) { return true, nil }
func (s *NopStore) Close() error                                           { return nil }
