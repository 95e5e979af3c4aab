// Package metrics pushes run counters to a Prometheus Pushgateway. A batch
// run exits before any scraper could reach it, so counters are pushed once
// the run finishes.
package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/amishk599/harvester/internal/model"
)

const namespace = "harvester"

// Pusher publishes RunStats. The zero URL disables pushing.
type Pusher struct {
	url    string
	job    string
	logger *slog.Logger

	registry *prometheus.Registry
	records  *prometheus.GaugeVec
	duration prometheus.Gauge
	finished prometheus.Gauge
}

// NewPusher creates a pusher for the gateway at url under job name job.
func NewPusher(url, job string, logger *slog.Logger) *Pusher {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Pusher{
		url:      url,
		job:      job,
		logger:   logger,
		registry: reg,
		records: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "records",
				Help:      "Records per source and pipeline outcome in the last run",
			},
			[]string{"source", "outcome"},
		),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		finished: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_finished_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// Enabled reports whether a gateway is configured.
func (p *Pusher) Enabled() bool {
	return p.url != ""
}

// Push records stats in the registry and sends it, grouped by run_id.
func (p *Pusher) Push(ctx context.Context, stats *model.RunStats) error {
	p.observe(stats)
	if !p.Enabled() {
		return nil
	}

	err := push.New(p.url, p.job).
		Gatherer(p.registry).
		Grouping("run_id", stats.RunID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics for run %s: %w", stats.RunID, err)
	}
	p.logger.Debug("metrics pushed", "run_id", stats.RunID, "gateway", p.url)
	return nil
}

func (p *Pusher) observe(stats *model.RunStats) {
	for _, s := range stats.Snapshot() {
		for outcome, v := range map[string]int64{
			"found":         s.Found,
			"validated":     s.Validated,
			"rejected":      s.Rejected,
			"normalized":    s.Normalized,
			"duplicate":     s.Duplicates,
			"persisted":     s.Persisted,
			"failed":        s.Failed,
			"search_failed": s.SearchFailed,
			"failed_page":   s.FailedPages,
		} {
			p.records.WithLabelValues(s.Source, outcome).Set(float64(v))
		}
	}
	p.duration.Set(stats.Duration().Seconds())
	if !stats.FinishedAt.IsZero() {
		p.finished.Set(float64(stats.FinishedAt.Unix()))
	}
}
