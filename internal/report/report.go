// Package report delivers the end-of-run summary.
package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/amishk599/harvester/internal/model"
)

// Reporter publishes the RunStats of a finished run.
type Reporter interface {
	Report(ctx context.Context, stats *model.RunStats) error
}

// Ensure LogReporter implements Reporter.
var _ Reporter = (*LogReporter)(nil)

// LogReporter writes the run summary to the given logger, one line per
// source plus a totals line.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a reporter that logs via slog.
func NewLogReporter(logger *slog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report logs the counters. It never fails.
func (r *LogReporter) Report(_ context.Context, stats *model.RunStats) error {
	for _, s := range stats.Snapshot() {
		r.logger.Info("source summary", snapshotArgs(s)...)
	}
	args := append([]any{"run_id", stats.RunID, "duration", stats.Duration().Round(time.Millisecond).String()}, snapshotArgs(stats.Totals())...)
	r.logger.Info("run complete", args...)
	return nil
}

func snapshotArgs(s model.SourceSnapshot) []any {
	return []any{
		"source", s.Source,
		"found", s.Found,
		"validated", s.Validated,
		"rejected", s.Rejected,
		"normalized", s.Normalized,
		"duplicates", s.Duplicates,
		"persisted", s.Persisted,
		"failed", s.Failed,
		"search_failed", s.SearchFailed,
		"failed_pages", s.FailedPages,
	}
}
