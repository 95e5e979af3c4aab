package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/harvester/internal/adapter"
	"github.com/amishk599/harvester/internal/config"
	"github.com/amishk599/harvester/internal/fetch"
	"github.com/amishk599/harvester/internal/geocode"
	"github.com/amishk599/harvester/internal/model"
	"github.com/amishk599/harvester/internal/ratelimit"
	"github.com/amishk599/harvester/internal/report"
	"github.com/amishk599/harvester/internal/retry"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "harvester",
	Short: "Resource-sector job ingestion pipeline",
	Long:  "Harvester pulls job postings from ATS boards and the government job bank, normalizes and deduplicates them, and writes them to the jobs store and search index.",
	// A bare `harvester` performs one run so cron entries can invoke the binary directly.
	RunE:         runRun,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: HARVESTER_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	addRunFlags(rootCmd)
}

// loadConfig loads .env if present, resolves the config path and parses it.
// Priority: explicit path arg > HARVESTER_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		if env := os.Getenv("HARVESTER_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// buildFetcher assembles timeout → retry → rate limit → plain/rendered routing.
func buildFetcher(cfg *config.Config, logger *slog.Logger) (fetch.Fetcher, error) {
	proxies, err := fetch.NewProxyRotator(cfg.HTTP.Proxies)
	if err != nil {
		return nil, fmt.Errorf("parse http.proxies: %w", err)
	}
	client := &http.Client{Timeout: cfg.HTTP.Timeout, Transport: fetch.NewTransport(proxies)}
	headers := fetch.NewHeaderRotator(cfg.HTTP.UserAgents, cfg.HTTP.AcceptLanguages)

	var rendered fetch.Fetcher
	if cfg.Render.Endpoint != "" {
		rendered = fetch.NewRenderFetcher(client, cfg.Render.Endpoint, cfg.Render.Token, cfg.Render.SettleDelay, headers)
	}
	router := fetch.NewRouter(fetch.NewHTTPFetcher(client, headers), rendered)

	overrides := make(map[string]ratelimit.Limit, len(cfg.RateLimit.DomainOverrides))
	for host, l := range cfg.RateLimit.DomainOverrides {
		overrides[host] = ratelimit.Limit(l)
	}
	limiter := ratelimit.NewDomainLimiter(ratelimit.Limit(cfg.RateLimit.Default), overrides)

	retrying := retry.New(ratelimit.NewFetcher(router, limiter),
		cfg.HTTP.MaxRetries, cfg.HTTP.BaseDelay, cfg.HTTP.RetryStatuses, logger)
	return fetch.WithTimeout(retrying, cfg.Run.FetchTimeout), nil
}

func companies(list []config.CompanyConfig) []adapter.Company {
	var out []adapter.Company
	for _, c := range list {
		if !c.Enabled {
			continue
		}
		out = append(out, adapter.Company{Name: c.Name, Token: c.Token, URL: c.URL, Industry: c.Industry})
	}
	return out
}

// buildAdapters returns one adapter per source family with enabled entries.
func buildAdapters(cfg *config.Config, f fetch.Fetcher, logger *slog.Logger) []model.Adapter {
	var adapters []model.Adapter
	src := cfg.Sources
	if src.Jobbank.Enabled && len(src.Jobbank.Keywords) > 0 {
		adapters = append(adapters, adapter.NewJobbankAdapter(src.Jobbank.Keywords, src.Jobbank.FetchDetails, cfg.Run.PageCap, f, logger))
	}
	if cs := companies(src.Greenhouse); len(cs) > 0 {
		adapters = append(adapters, adapter.NewGreenhouseAdapter(cs, f, logger))
	}
	if cs := companies(src.Lever); len(cs) > 0 {
		adapters = append(adapters, adapter.NewLeverAdapter(cs, f, logger))
	}
	if cs := companies(src.Ashby); len(cs) > 0 {
		adapters = append(adapters, adapter.NewAshbyAdapter(cs, f, logger))
	}
	if cs := companies(src.Workday); len(cs) > 0 {
		adapters = append(adapters, adapter.NewWorkdayAdapter(cs, cfg.Run.PageCap, f, logger))
	}
	return adapters
}

// buildGeocodeProvider returns nil when geocoding is off.
func buildGeocodeProvider(cfg *config.Config, f fetch.Fetcher) geocode.Provider {
	switch cfg.Geocode.Provider {
	case "google":
		return geocode.NewGoogleProvider(cfg.Geocode.BaseURL, cfg.Geocode.APIKey, f)
	case "nominatim":
		return geocode.NewNominatimProvider(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, f)
	default:
		return nil
	}
}

func setupReporter(cfg *config.Config, logger *slog.Logger) report.Reporter {
	switch cfg.Report.Type {
	case "slack":
		logger.Info("using slack reporter")
		return report.NewSlackReporter(cfg.Report.WebhookURL, &http.Client{Timeout: cfg.HTTP.Timeout}, logger)
	default:
		return report.NewLogReporter(logger)
	}
}
