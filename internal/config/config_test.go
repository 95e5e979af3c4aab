package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
sources:
  greenhouse:
    - name: Hudbay Minerals
      token: hudbay
      industry: mining
      enabled: true
database:
  driver: sqlite
  dsn: file:test.db
`

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
run:
  page_cap: 10
  fetch_timeout: 20s
http:
  max_retries: 0
  retry_statuses: [429, 503]
rate_limit:
  requests_per_second: 0.5
  max_concurrency: 2
  domain_overrides:
    api.lever.co:
      requests_per_second: 5
      burst: 2
      max_concurrency: 4
sources:
  jobbank:
    enabled: true
    keywords: [mining, forestry]
  lever:
    - name: Teck
      token: teck
      enabled: true
  workday:
    - name: Suncor
      url: https://suncor.wd1.myworkdayjobs.com/Suncor_External
      industry: oil_gas
      enabled: true
dedupe:
  threshold: 5
  bucketed: true
database:
  driver: postgres
  dsn: postgres://localhost/jobs
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.PageCap != 10 || cfg.Run.FetchTimeout != 20*time.Second {
		t.Errorf("Run = %+v", cfg.Run)
	}
	if cfg.HTTP.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0", cfg.HTTP.MaxRetries)
	}
	if len(cfg.HTTP.RetryStatuses) != 2 {
		t.Errorf("RetryStatuses = %v", cfg.HTTP.RetryStatuses)
	}
	if cfg.RateLimit.Default.RequestsPerSecond != 0.5 || cfg.RateLimit.Default.MaxConcurrency != 2 {
		t.Errorf("RateLimit.Default = %+v", cfg.RateLimit.Default)
	}
	if o := cfg.RateLimit.DomainOverrides["api.lever.co"]; o.RequestsPerSecond != 5 || o.Burst != 2 || o.MaxConcurrency != 4 {
		t.Errorf("override = %+v", o)
	}
	if len(cfg.Sources.Jobbank.Keywords) != 2 {
		t.Errorf("Jobbank.Keywords = %v", cfg.Sources.Jobbank.Keywords)
	}
	if cfg.Sources.Workday[0].Industry != "oil_gas" {
		t.Errorf("Workday = %+v", cfg.Sources.Workday)
	}
	if cfg.Dedupe.Threshold != 5 || !cfg.Dedupe.Bucketed {
		t.Errorf("Dedupe = %+v", cfg.Dedupe)
	}
	if got := cfg.EnabledSources(); got != 3 {
		t.Errorf("EnabledSources = %d, want 3", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.PageCap != 50 {
		t.Errorf("PageCap = %d, want 50", cfg.Run.PageCap)
	}
	if cfg.Run.GeocodeTimeout != 5*time.Second {
		t.Errorf("GeocodeTimeout = %v, want 5s", cfg.Run.GeocodeTimeout)
	}
	if cfg.HTTP.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.HTTP.MaxRetries)
	}
	if cfg.Render.SettleDelay != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", cfg.Render.SettleDelay)
	}
	if cfg.Dedupe.Threshold != 3 || cfg.Dedupe.History != "none" {
		t.Errorf("Dedupe = %+v", cfg.Dedupe)
	}
	if cfg.Geocode.Provider != "nominatim" || cfg.Geocode.BaseURL != defaultNominatimURL {
		t.Errorf("Geocode = %+v", cfg.Geocode)
	}
	if cfg.Normalize.DefaultCountry != "CA" || cfg.Normalize.DefaultCurrency != "CAD" {
		t.Errorf("Normalize = %+v", cfg.Normalize)
	}
	if cfg.Search.Index != "jobs" || cfg.Report.Type != "log" {
		t.Errorf("Search=%+v Report=%+v", cfg.Search, cfg.Report)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("HARVESTER_TEST_DSN", "postgres://db/jobs")
	cfg, err := Load(writeConfig(t, strings.Replace(minimalConfig, "file:test.db", "${HARVESTER_TEST_DSN}", 1)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.DSN != "postgres://db/jobs" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "run: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantKey string
	}{
		{
			name: "no enabled sources",
			content: `
sources:
  greenhouse:
    - name: acme
      token: acme
      enabled: false
database: {driver: sqlite, dsn: x}
`,
			wantKey: "at least one source",
		},
		{
			name:    "missing dsn",
			content: strings.Replace(minimalConfig, "dsn: file:test.db", "", 1),
			wantKey: "database.dsn",
		},
		{
			name:    "unknown industry",
			content: strings.Replace(minimalConfig, "industry: mining", "industry: tech", 1),
			wantKey: "sources.greenhouse[0].industry",
		},
		{
			name:    "google without key",
			content: minimalConfig + "geocode:\n  provider: google\n",
			wantKey: "geocode.api_key",
		},
		{
			name:    "redis history without url",
			content: minimalConfig + "dedupe:\n  history: redis\n",
			wantKey: "dedupe.redis_url",
		},
		{
			name:    "slack without webhook",
			content: minimalConfig + "report:\n  type: slack\n",
			wantKey: "report.webhook_url",
		},
		{
			name:    "bad duration",
			content: minimalConfig + "run:\n  fetch_timeout: soon\n",
			wantKey: "run.fetch_timeout",
		},
		{
			name:    "threshold out of range",
			content: minimalConfig + "dedupe:\n  threshold: 64\n",
			wantKey: "dedupe.threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("error %q does not name %q", err, tt.wantKey)
			}
		})
	}
}
