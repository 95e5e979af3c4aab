// Package pipeline drives adapters through the record stages and reports
// the run.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/harvester/internal/dedupe"
	"github.com/amishk599/harvester/internal/model"
)

// finishTimeout bounds each post-run step (history save, metrics, report).
const finishTimeout = 30 * time.Second

// MetricsPusher publishes run counters.
type MetricsPusher interface {
	Push(ctx context.Context, stats *model.RunStats) error
}

// Reporter publishes the run summary.
type Reporter interface {
	Report(ctx context.Context, stats *model.RunStats) error
}

// Options are the optional collaborators of a Runner. Nil fields are skipped.
type Options struct {
	History  dedupe.History
	Metrics  MetricsPusher
	Reporter Reporter
	// OnRecord sees every record that reached persistence. It is called
	// from adapter goroutines concurrently.
	OnRecord func(source string, rec *model.JobRecord)
}

// Runner owns one ingestion run across all adapters:
// load history → drain adapters concurrently → save history → push → report.
type Runner struct {
	adapters []model.Adapter
	stages   Stages
	state    *RunState
	opts     Options
	logger   *slog.Logger
}

// NewRunner creates a runner. stages must have been built around state.
func NewRunner(adapters []model.Adapter, stages Stages, state *RunState, opts Options, logger *slog.Logger) *Runner {
	if opts.History == nil {
		opts.History = dedupe.NopHistory{}
	}
	return &Runner{
		adapters: adapters,
		stages:   stages,
		state:    state,
		opts:     opts,
		logger:   logger,
	}
}

// Run executes one run and always returns its stats. Cancelling ctx stops
// adapters from fetching; records already yielded still finish their stages.
func (r *Runner) Run(ctx context.Context, runID string) *model.RunStats {
	stats := model.NewRunStats(runID)
	r.logger.Info("starting run", "run_id", runID, "adapters", len(r.adapters))

	r.loadHistory(ctx)

	var g errgroup.Group
	for _, a := range r.adapters {
		st := stats.For(a.Source())
		g.Go(func() error {
			r.drain(ctx, a, st)
			return nil
		})
	}
	_ = g.Wait()
	stats.Finish()

	if ctx.Err() != nil {
		r.logger.Warn("run cancelled, reporting partial results", "run_id", runID)
	}
	r.finish(context.WithoutCancel(ctx), stats)
	return stats
}

// drain pulls every listing from a and processes it in emission order.
func (r *Runner) drain(ctx context.Context, a model.Adapter, st *model.SourceStats) {
	source := a.Source()
	work := context.WithoutCancel(ctx)

	for raw, err := range a.Listings(ctx) {
		if err != nil {
			st.FailedPages.Add(1)
			r.logger.Warn("unit of work failed", "source", source, "error", err)
			continue
		}
		st.Found.Add(1)

		if rec := r.stages.Process(work, raw, st, r.logger); rec != nil && r.opts.OnRecord != nil {
			r.opts.OnRecord(source, rec)
		}
	}

	r.logger.Info("adapter finished",
		"source", source,
		"found", st.Found.Load(),
		"persisted", st.Persisted.Load(),
		"duplicates", st.Duplicates.Load(),
		"failed_pages", st.FailedPages.Load(),
	)
}

func (r *Runner) loadHistory(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, finishTimeout)
	defer cancel()

	entries, err := r.opts.History.Load(ctx)
	if err != nil {
		r.logger.Warn("loading fingerprint history failed, starting empty", "error", err)
		return
	}
	r.state.Fingerprints.Load(entries)
	if len(entries) > 0 {
		r.logger.Info("loaded fingerprint history", "fingerprints", len(entries))
	}
}

func (r *Runner) finish(ctx context.Context, stats *model.RunStats) {
	r.step(ctx, "saving fingerprint history", func(ctx context.Context) error {
		return r.opts.History.Save(ctx, r.state.Fingerprints.Added())
	})
	if r.opts.Metrics != nil {
		r.step(ctx, "pushing metrics", func(ctx context.Context) error {
			return r.opts.Metrics.Push(ctx, stats)
		})
	}
	if r.opts.Reporter != nil {
		r.step(ctx, "reporting run", func(ctx context.Context) error {
			return r.opts.Reporter.Report(ctx, stats)
		})
	}
}

func (r *Runner) step(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, finishTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		r.logger.Error(name+" failed", "error", err)
	}
}
