package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/amishk599/harvester/internal/config"
	"github.com/amishk599/harvester/internal/dedupe"
	"github.com/amishk599/harvester/internal/metrics"
	"github.com/amishk599/harvester/internal/model"
	"github.com/amishk599/harvester/internal/normalize"
	"github.com/amishk599/harvester/internal/persist"
	"github.com/amishk599/harvester/internal/pipeline"
	"github.com/amishk599/harvester/internal/search"
	"github.com/amishk599/harvester/internal/store"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion pass over every enabled source",
	Long:  "Fetches every enabled worklist entry, runs each record through validation, normalization, geocoding, classification and deduplication, and persists the survivors. Blocks until done or SIGINT/SIGTERM.",
	RunE:  runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "run every stage but write nothing to the store, index or fingerprint history")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	lock := flock.New(cfg.Run.LockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock %s: %w", cfg.Run.LockFile, err)
	}
	if !locked {
		return fmt.Errorf("another run is in progress (lock %s)", cfg.Run.LockFile)
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		return err
	}

	jobStore, indexer, closeSinks, err := openSinks(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open persistence: %w", err)
	}
	defer closeSinks()

	var history dedupe.History
	if cfg.Dedupe.History == "redis" && !dryRun {
		h, err := dedupe.NewRedisHistory(ctx, cfg.Dedupe.RedisURL, cfg.Dedupe.HistoryTTL)
		if err != nil {
			return err
		}
		defer h.Close()
		history = h
	}

	adapters := buildAdapters(cfg, fetcher, logger)
	logger.Info("config loaded",
		"adapters", len(adapters),
		"worklist_entries", cfg.EnabledSources(),
		"database", cfg.Database.Driver,
		"search", cfg.Search.Enabled && !dryRun,
		"geocode", cfg.Geocode.Provider,
		"dry_run", dryRun,
	)

	state := pipeline.NewRunState(cfg.Dedupe.Threshold, cfg.Dedupe.Bucketed)
	stages := pipeline.NewStages(state,
		normalize.New(cfg.Normalize.DefaultCountry, cfg.Normalize.DefaultCurrency),
		buildGeocodeProvider(cfg, fetcher),
		cfg.Run.GeocodeTimeout,
		persist.New(jobStore, indexer, cfg.Run.PersistTimeout, logger),
		logger,
	)
	runner := pipeline.NewRunner(adapters, stages, state, pipeline.Options{
		History:  history,
		Metrics:  metrics.NewPusher(cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, logger),
		Reporter: setupReporter(cfg, logger),
	}, logger)

	stats := runner.Run(ctx, uuid.NewString())
	printStats(os.Stdout, stats)
	return nil
}

// openSinks opens the relational store and search index, or no-op stand-ins
// for a dry run.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.JobStore, search.Indexer, func(), error) {
	if dryRun {
		logger.Info("dry-run mode enabled, nothing will be persisted")
		return store.NewNopStore(), search.NopIndexer{}, func() {}, nil
	}

	sqlStore, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, nil, err
	}

	if !cfg.Search.Enabled {
		return sqlStore, search.NopIndexer{}, func() { sqlStore.Close() }, nil
	}

	client, err := search.NewClient(search.Config{
		Addresses: cfg.Search.Addresses,
		Username:  cfg.Search.Username,
		Password:  cfg.Search.Password,
		Index:     cfg.Search.Index,
	})
	if err != nil {
		sqlStore.Close()
		return nil, nil, nil, err
	}
	indexer := search.NewESIndexer(client, cfg.Search.Index)
	if err := indexer.EnsureIndex(ctx); err != nil {
		sqlStore.Close()
		return nil, nil, nil, err
	}
	return sqlStore, indexer, func() { sqlStore.Close() }, nil
}

func printStats(w io.Writer, stats *model.RunStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run %s (%s)", stats.RunID, stats.Duration().Round(time.Second))
	t.AppendHeader(table.Row{"Source", "Found", "Rejected", "Duplicates", "Persisted", "Failed", "Search failed", "Failed pages"})
	for _, s := range stats.Snapshot() {
		t.AppendRow(statsRow(s))
	}
	t.AppendFooter(statsRow(stats.Totals()))
	t.Render()
}

func statsRow(s model.SourceSnapshot) table.Row {
	return table.Row{s.Source, s.Found, s.Rejected, s.Duplicates, s.Persisted, s.Failed, s.SearchFailed, s.FailedPages}
}
