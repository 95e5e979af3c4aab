package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/amishk599/harvester/internal/adapter"
	"github.com/amishk599/harvester/internal/audit"
	"github.com/amishk599/harvester/internal/config"
	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/model"
	"github.com/amishk599/harvester/internal/normalize"
	"github.com/amishk599/harvester/internal/persist"
	"github.com/amishk599/harvester/internal/pipeline"
	"github.com/amishk599/harvester/internal/search"
	"github.com/amishk599/harvester/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check [source] [entity]",
	Short: "Drain one worklist entry through the stages without persisting",
	Long:  "Fetches a single company or keyword, runs every stage except persistence, and prints the resulting records. With no arguments an interactive picker lists the configured entries.",
	Args:  cobra.MaximumNArgs(2),
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	records []*model.JobRecord
	stats   model.SourceSnapshot
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	entries := worklist(cfg)
	if len(entries) == 0 {
		fmt.Println("No worklist entries in config.")
		return nil
	}

	entry, ok, err := chooseEntry(entries, args)
	if err != nil || !ok {
		return err
	}

	// Log output before the spinner starts corrupts the display.
	quiet := logger
	if !debug {
		quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	fetcher, err := buildFetcher(cfg, quiet)
	if err != nil {
		return err
	}
	a := entryAdapter(cfg, entry, fetcher, quiet)

	result, err := audit.RunLoader(entry.target().String(), func(ctx context.Context) (checkResult, error) {
		return drainOne(ctx, cfg, a, fetcher, quiet), nil
	})
	if err != nil {
		return err
	}
	fmt.Print(audit.RenderTable(result.records, result.stats))
	return nil
}

// chooseEntry matches args against the worklist, or asks interactively.
func chooseEntry(entries []worklistEntry, args []string) (worklistEntry, bool, error) {
	if len(args) == 0 {
		targets := make([]audit.Target, len(entries))
		for i, e := range entries {
			targets[i] = e.target()
		}
		i, err := audit.RunPicker(targets)
		if err != nil || i < 0 {
			return worklistEntry{}, false, err
		}
		return entries[i], true, nil
	}

	for _, e := range entries {
		if e.Source != args[0] {
			continue
		}
		if len(args) == 1 || e.entity() == args[1] || e.Company.Name == args[1] {
			return e, true, nil
		}
	}
	return worklistEntry{}, false, fmt.Errorf("no worklist entry matches %v", args)
}

// entryAdapter builds an adapter whose worklist is just e, enabled or not.
func entryAdapter(cfg *config.Config, e worklistEntry, f fetch.Fetcher, logger *slog.Logger) model.Adapter {
	co := e.Company
	co.Enabled = true
	cs := companies([]config.CompanyConfig{co})

	switch e.Source {
	case "jobbank":
		return adapter.NewJobbankAdapter([]string{e.Keyword}, cfg.Sources.Jobbank.FetchDetails, cfg.Run.PageCap, f, logger)
	case "greenhouse":
		return adapter.NewGreenhouseAdapter(cs, f, logger)
	case "lever":
		return adapter.NewLeverAdapter(cs, f, logger)
	case "ashby":
		return adapter.NewAshbyAdapter(cs, f, logger)
	default:
		return adapter.NewWorkdayAdapter(cs, cfg.Run.PageCap, f, logger)
	}
}

// drainOne runs a through every stage with no-op persistence and collects
// the records that survive.
func drainOne(ctx context.Context, cfg *config.Config, a model.Adapter, f fetch.Fetcher, logger *slog.Logger) checkResult {
	state := pipeline.NewRunState(cfg.Dedupe.Threshold, cfg.Dedupe.Bucketed)
	stages := pipeline.NewStages(state,
		normalize.New(cfg.Normalize.DefaultCountry, cfg.Normalize.DefaultCurrency),
		buildGeocodeProvider(cfg, f),
		cfg.Run.GeocodeTimeout,
		persist.New(store.NewNopStore(), search.NopIndexer{}, cfg.Run.PersistTimeout, logger),
		logger,
	)

	var mu sync.Mutex
	var records []*model.JobRecord
	runner := pipeline.NewRunner([]model.Adapter{a}, stages, state, pipeline.Options{
		OnRecord: func(_ string, rec *model.JobRecord) {
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
		},
	}, logger)

	stats := runner.Run(ctx, "check")
	return checkResult{records: records, stats: stats.Totals()}
}
