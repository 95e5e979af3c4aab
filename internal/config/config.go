package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/harvester/internal/model"
)

// Config is the root configuration for one harvester deployment.
type Config struct {
	Run       RunConfig
	HTTP      HTTPConfig
	RateLimit RateLimitConfig
	Render    RenderConfig
	Sources   SourcesConfig
	Normalize NormalizeConfig
	Geocode   GeocodeConfig
	Dedupe    DedupeConfig
	Database  DatabaseConfig
	Search    SearchConfig
	Report    ReportConfig
	Metrics   MetricsConfig
}

// RunConfig bounds a single ingestion run.
type RunConfig struct {
	PageCap        int           // max pages per worklist entry
	FetchTimeout   time.Duration // per request, including retries
	GeocodeTimeout time.Duration
	PersistTimeout time.Duration // per persistence sub-operation
	LockFile       string
}

// HTTPConfig controls the shared fetch stack.
type HTTPConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	BaseDelay       time.Duration
	RetryStatuses   []int
	UserAgents      []string
	AcceptLanguages []string
	Proxies         []string
}

// DomainLimit is the request budget for one host.
type DomainLimit struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxConcurrency    int64   `yaml:"max_concurrency"`
}

// RateLimitConfig holds the default per-domain budget plus host overrides.
type RateLimitConfig struct {
	Default         DomainLimit
	DomainOverrides map[string]DomainLimit
}

// RenderConfig points at a browserless-compatible rendering service.
type RenderConfig struct {
	Endpoint    string
	Token       string
	SettleDelay time.Duration
}

// CompanyConfig describes one employer on an ATS. Token is the board token
// (greenhouse) or site slug (lever, ashby); URL is the careers site (workday).
type CompanyConfig struct {
	Name     string `yaml:"name"`
	Token    string `yaml:"token"`
	URL      string `yaml:"url"`
	Industry string `yaml:"industry"`
	Enabled  bool   `yaml:"enabled"`
}

// JobbankConfig is the keyword worklist for the government job bank.
type JobbankConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Keywords     []string `yaml:"keywords"`
	FetchDetails bool     `yaml:"fetch_details"`
}

// SourcesConfig externalizes every adapter worklist.
type SourcesConfig struct {
	Jobbank    JobbankConfig   `yaml:"jobbank"`
	Greenhouse []CompanyConfig `yaml:"greenhouse"`
	Lever      []CompanyConfig `yaml:"lever"`
	Ashby      []CompanyConfig `yaml:"ashby"`
	Workday    []CompanyConfig `yaml:"workday"`
}

// NormalizeConfig sets the defaults applied during normalization.
type NormalizeConfig struct {
	DefaultCountry  string `yaml:"default_country"`
	DefaultCurrency string `yaml:"default_currency"`
}

// GeocodeConfig selects and configures the geocoding provider.
type GeocodeConfig struct {
	Provider  string // "nominatim", "google" or "none"
	APIKey    string
	BaseURL   string
	UserAgent string
}

// DedupeConfig controls near-duplicate detection.
type DedupeConfig struct {
	Threshold  int
	Bucketed   bool
	History    string // "none" or "redis"
	RedisURL   string
	HistoryTTL time.Duration
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// SearchConfig controls the search index.
type SearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	Index     string   `yaml:"index"`
}

// ReportConfig controls where the run summary goes.
type ReportConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// MetricsConfig controls pushing run counters to a Prometheus Pushgateway.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

const (
	defaultUserAgent    = "ResourcesJobBoard/1.0 (+https://resourcesjobboard.ca)"
	defaultNominatimURL = "https://nominatim.openstreetmap.org"
	defaultGoogleURL    = "https://maps.googleapis.com/maps/api/geocode"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Run       rawRunConfig       `yaml:"run"`
	HTTP      rawHTTPConfig      `yaml:"http"`
	RateLimit rawRateLimitConfig `yaml:"rate_limit"`
	Render    rawRenderConfig    `yaml:"render"`
	Sources   SourcesConfig      `yaml:"sources"`
	Normalize NormalizeConfig    `yaml:"normalize"`
	Geocode   rawGeocodeConfig   `yaml:"geocode"`
	Dedupe    rawDedupeConfig    `yaml:"dedupe"`
	Database  DatabaseConfig     `yaml:"database"`
	Search    SearchConfig       `yaml:"search"`
	Report    ReportConfig       `yaml:"report"`
	Metrics   MetricsConfig      `yaml:"metrics"`
}

type rawRunConfig struct {
	PageCap        int    `yaml:"page_cap"`
	FetchTimeout   string `yaml:"fetch_timeout"`
	GeocodeTimeout string `yaml:"geocode_timeout"`
	PersistTimeout string `yaml:"persist_timeout"`
	LockFile       string `yaml:"lock_file"`
}

type rawHTTPConfig struct {
	Timeout         string   `yaml:"timeout"`
	MaxRetries      *int     `yaml:"max_retries"`
	BaseDelay       string   `yaml:"base_delay"`
	RetryStatuses   []int    `yaml:"retry_statuses"`
	UserAgents      []string `yaml:"user_agents"`
	AcceptLanguages []string `yaml:"accept_languages"`
	Proxies         []string `yaml:"proxies"`
}

type rawRateLimitConfig struct {
	RequestsPerSecond *float64               `yaml:"requests_per_second"`
	Burst             int                    `yaml:"burst"`
	MaxConcurrency    int64                  `yaml:"max_concurrency"`
	DomainOverrides   map[string]DomainLimit `yaml:"domain_overrides"`
}

type rawRenderConfig struct {
	Endpoint    string `yaml:"endpoint"`
	Token       string `yaml:"token"`
	SettleDelay string `yaml:"settle_delay"`
}

type rawGeocodeConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

type rawDedupeConfig struct {
	Threshold  *int   `yaml:"threshold"`
	Bucketed   bool   `yaml:"bucketed"`
	History    string `yaml:"history"`
	RedisURL   string `yaml:"redis_url"`
	HistoryTTL string `yaml:"history_ttl"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &Config{
		Sources:  raw.Sources,
		Database: raw.Database,
		Search:   raw.Search,
		Report:   raw.Report,
		Metrics:  raw.Metrics,
	}

	// run
	cfg.Run.PageCap = raw.Run.PageCap
	if cfg.Run.PageCap == 0 {
		cfg.Run.PageCap = 50
	}
	if cfg.Run.FetchTimeout, err = parseDuration("run.fetch_timeout", raw.Run.FetchTimeout, 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.Run.GeocodeTimeout, err = parseDuration("run.geocode_timeout", raw.Run.GeocodeTimeout, 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Run.PersistTimeout, err = parseDuration("run.persist_timeout", raw.Run.PersistTimeout, 10*time.Second); err != nil {
		return nil, err
	}
	cfg.Run.LockFile = raw.Run.LockFile
	if cfg.Run.LockFile == "" {
		cfg.Run.LockFile = os.TempDir() + "/harvester.lock"
	}

	// http
	if cfg.HTTP.Timeout, err = parseDuration("http.timeout", raw.HTTP.Timeout, 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTP.BaseDelay, err = parseDuration("http.base_delay", raw.HTTP.BaseDelay, time.Second); err != nil {
		return nil, err
	}
	cfg.HTTP.MaxRetries = 3
	if raw.HTTP.MaxRetries != nil {
		cfg.HTTP.MaxRetries = *raw.HTTP.MaxRetries
	}
	cfg.HTTP.RetryStatuses = raw.HTTP.RetryStatuses
	if len(cfg.HTTP.RetryStatuses) == 0 {
		cfg.HTTP.RetryStatuses = []int{429, 500, 502, 503, 504}
	}
	cfg.HTTP.UserAgents = raw.HTTP.UserAgents
	if len(cfg.HTTP.UserAgents) == 0 {
		cfg.HTTP.UserAgents = []string{defaultUserAgent}
	}
	cfg.HTTP.AcceptLanguages = raw.HTTP.AcceptLanguages
	cfg.HTTP.Proxies = raw.HTTP.Proxies

	// rate_limit
	cfg.RateLimit.Default = DomainLimit{
		RequestsPerSecond: 2,
		Burst:             raw.RateLimit.Burst,
		MaxConcurrency:    raw.RateLimit.MaxConcurrency,
	}
	if raw.RateLimit.RequestsPerSecond != nil {
		cfg.RateLimit.Default.RequestsPerSecond = *raw.RateLimit.RequestsPerSecond
	}
	if cfg.RateLimit.Default.Burst == 0 {
		cfg.RateLimit.Default.Burst = 1
	}
	if cfg.RateLimit.Default.MaxConcurrency == 0 {
		cfg.RateLimit.Default.MaxConcurrency = 8
	}
	cfg.RateLimit.DomainOverrides = raw.RateLimit.DomainOverrides

	// render
	cfg.Render.Endpoint = raw.Render.Endpoint
	cfg.Render.Token = raw.Render.Token
	if cfg.Render.SettleDelay, err = parseDuration("render.settle_delay", raw.Render.SettleDelay, 2*time.Second); err != nil {
		return nil, err
	}

	// normalize
	cfg.Normalize = raw.Normalize
	if cfg.Normalize.DefaultCountry == "" {
		cfg.Normalize.DefaultCountry = "CA"
	}
	if cfg.Normalize.DefaultCurrency == "" {
		cfg.Normalize.DefaultCurrency = "CAD"
	}

	// geocode
	cfg.Geocode = GeocodeConfig{
		Provider:  strings.ToLower(raw.Geocode.Provider),
		APIKey:    raw.Geocode.APIKey,
		BaseURL:   raw.Geocode.BaseURL,
		UserAgent: raw.Geocode.UserAgent,
	}
	if cfg.Geocode.Provider == "" {
		cfg.Geocode.Provider = "nominatim"
	}
	if cfg.Geocode.BaseURL == "" {
		switch cfg.Geocode.Provider {
		case "google":
			cfg.Geocode.BaseURL = defaultGoogleURL
		default:
			cfg.Geocode.BaseURL = defaultNominatimURL
		}
	}
	if cfg.Geocode.UserAgent == "" {
		cfg.Geocode.UserAgent = defaultUserAgent
	}

	// dedupe
	cfg.Dedupe = DedupeConfig{
		Threshold: 3,
		Bucketed:  raw.Dedupe.Bucketed,
		History:   strings.ToLower(raw.Dedupe.History),
		RedisURL:  raw.Dedupe.RedisURL,
	}
	if raw.Dedupe.Threshold != nil {
		cfg.Dedupe.Threshold = *raw.Dedupe.Threshold
	}
	if cfg.Dedupe.History == "" {
		cfg.Dedupe.History = "none"
	}
	if cfg.Dedupe.HistoryTTL, err = parseDuration("dedupe.history_ttl", raw.Dedupe.HistoryTTL, 30*24*time.Hour); err != nil {
		return nil, err
	}

	// database, search, report, metrics
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if len(cfg.Search.Addresses) == 0 {
		cfg.Search.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = "jobs"
	}
	if cfg.Report.Type == "" {
		cfg.Report.Type = "log"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "harvester"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseDuration(key, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, value, err)
	}
	return d, nil
}

// EnabledSources counts worklist entries that will actually run.
func (c *Config) EnabledSources() int {
	n := 0
	if c.Sources.Jobbank.Enabled && len(c.Sources.Jobbank.Keywords) > 0 {
		n++
	}
	for _, list := range [][]CompanyConfig{c.Sources.Greenhouse, c.Sources.Lever, c.Sources.Ashby, c.Sources.Workday} {
		for _, co := range list {
			if co.Enabled {
				n++
			}
		}
	}
	return n
}

func validate(cfg *Config) error {
	if cfg.Run.PageCap < 1 {
		return fmt.Errorf("run.page_cap must be positive, got %d", cfg.Run.PageCap)
	}
	if cfg.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must not be negative, got %d", cfg.HTTP.MaxRetries)
	}
	if cfg.EnabledSources() == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}

	for name, list := range map[string][]CompanyConfig{
		"greenhouse": cfg.Sources.Greenhouse,
		"lever":      cfg.Sources.Lever,
		"ashby":      cfg.Sources.Ashby,
	} {
		for i, co := range list {
			if co.Enabled && co.Token == "" {
				return fmt.Errorf("sources.%s[%d].token is required", name, i)
			}
			if err := validateIndustry(name, i, co.Industry); err != nil {
				return err
			}
		}
	}
	for i, co := range cfg.Sources.Workday {
		if co.Enabled && !strings.HasPrefix(co.URL, "https://") {
			return fmt.Errorf("sources.workday[%d].url must be an https URL", i)
		}
		if err := validateIndustry("workday", i, co.Industry); err != nil {
			return err
		}
	}

	switch cfg.Geocode.Provider {
	case "nominatim", "none":
	case "google":
		if cfg.Geocode.APIKey == "" {
			return fmt.Errorf("geocode.api_key is required when provider is \"google\"")
		}
	default:
		return fmt.Errorf("geocode.provider must be nominatim, google or none, got %q", cfg.Geocode.Provider)
	}

	if cfg.Dedupe.Threshold < 0 || cfg.Dedupe.Threshold > 63 {
		return fmt.Errorf("dedupe.threshold must be between 0 and 63, got %d", cfg.Dedupe.Threshold)
	}
	switch cfg.Dedupe.History {
	case "none":
	case "redis":
		if cfg.Dedupe.RedisURL == "" {
			return fmt.Errorf("dedupe.redis_url is required when history is \"redis\"")
		}
	default:
		return fmt.Errorf("dedupe.history must be none or redis, got %q", cfg.Dedupe.History)
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	if cfg.Report.Type == "slack" {
		if cfg.Report.WebhookURL == "" {
			return fmt.Errorf("report.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Report.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("report.webhook_url must start with https://hooks.slack.com/")
		}
	} else if cfg.Report.Type != "log" {
		return fmt.Errorf("report.type must be log or slack, got %q", cfg.Report.Type)
	}

	return nil
}

func validateIndustry(source string, i int, industry string) error {
	if industry == "" {
		return nil
	}
	if _, ok := model.ParseIndustry(industry); !ok {
		return fmt.Errorf("sources.%s[%d].industry %q is not a known industry", source, i, industry)
	}
	return nil
}
