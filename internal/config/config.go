// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingToken is returned by RequireToken when no GitHub token is set.
var ErrMissingToken = errors.New("PRHARVEST_GITHUB_TOKEN (or GITHUB_TOKEN) is required")

// Config holds the application configuration loaded from environment variables.
type Config struct {
	GitHubToken string
	DBPath      string
	DatabaseURL string // Postgres URL; when set it takes precedence over DBPath.

	Partitions        []string
	QuotaPerPartition int
	PageSize          int
	MaxPages          int
	PageDelay         time.Duration
	MinStars          int
	CreatedAfter      time.Time
	Licenses          []string

	PRSampleSize    int
	MinChangedLines int
	MinChangedFiles int
	BatchSize       int
	MaxBatches      int

	Concurrency       int
	RequestsPerSecond float64
	RetryAttempts     int

	ListenAddr string
	LogLevel   slog.Level
}

// Default values for optional variables.
var (
	defaultPartitions = []string{"Python", "JavaScript", "TypeScript", "Java", "Go", "Rust", "C++", "C"}
	defaultLicenses   = []string{
		"mit", "apache-2.0", "bsd-2-clause", "bsd-3-clause",
		"isc", "unlicense", "0bsd", "artistic-2.0",
		"zlib", "wtfpl", "cc0-1.0", "mpl-2.0",
	}
)

// Load reads configuration from environment variables. Unset variables take
// their defaults; a variable that is set but cannot be parsed is an error.
// The GitHub token is read from PRHARVEST_GITHUB_TOKEN, falling back to
// GITHUB_TOKEN. Load does not require the token; see RequireToken.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:     "prharvest.db",
		ListenAddr: "127.0.0.1:8080",
		LogLevel:   slog.LevelInfo,
	}

	cfg.GitHubToken = os.Getenv("PRHARVEST_GITHUB_TOKEN")
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}

	if v, ok := os.LookupEnv("PRHARVEST_DB_PATH"); ok {
		cfg.DBPath = v
	}
	cfg.DatabaseURL = os.Getenv("PRHARVEST_DATABASE_URL")
	if v, ok := os.LookupEnv("PRHARVEST_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	cfg.Partitions = lookupList("PRHARVEST_PARTITIONS", defaultPartitions)
	cfg.Licenses = lookupList("PRHARVEST_LICENSES", defaultLicenses)

	ints := []struct {
		key  string
		dst  *int
		dflt int
	}{
		{"PRHARVEST_QUOTA_PER_PARTITION", &cfg.QuotaPerPartition, 100},
		{"PRHARVEST_PAGE_SIZE", &cfg.PageSize, 100},
		{"PRHARVEST_MAX_PAGES", &cfg.MaxPages, 10},
		{"PRHARVEST_MIN_STARS", &cfg.MinStars, 1000},
		{"PRHARVEST_PR_SAMPLE_SIZE", &cfg.PRSampleSize, 10},
		{"PRHARVEST_MIN_CHANGED_LINES", &cfg.MinChangedLines, 500},
		{"PRHARVEST_MIN_CHANGED_FILES", &cfg.MinChangedFiles, 5},
		{"PRHARVEST_BATCH_SIZE", &cfg.BatchSize, 100},
		{"PRHARVEST_MAX_BATCHES", &cfg.MaxBatches, 0},
		{"PRHARVEST_CONCURRENCY", &cfg.Concurrency, 1},
		{"PRHARVEST_RETRY_ATTEMPTS", &cfg.RetryAttempts, 5},
	}
	for _, f := range ints {
		n, err := lookupInt(f.key, f.dflt)
		if err != nil {
			return nil, err
		}
		*f.dst = n
	}

	cfg.PageDelay = 1200 * time.Millisecond
	if v, ok := os.LookupEnv("PRHARVEST_PAGE_DELAY"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PRHARVEST_PAGE_DELAY has invalid duration %q: %w", v, err)
		}
		cfg.PageDelay = parsed
	}

	cfg.CreatedAfter = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	if v, ok := os.LookupEnv("PRHARVEST_CREATED_AFTER"); ok {
		parsed, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, fmt.Errorf("PRHARVEST_CREATED_AFTER has invalid date %q: %w", v, err)
		}
		cfg.CreatedAfter = parsed
	}

	cfg.RequestsPerSecond = 1
	if v, ok := os.LookupEnv("PRHARVEST_REQUESTS_PER_SECOND"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("PRHARVEST_REQUESTS_PER_SECOND has invalid number %q: %w", v, err)
		}
		cfg.RequestsPerSecond = parsed
	}

	if v, ok := os.LookupEnv("PRHARVEST_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("PRHARVEST_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	return cfg, nil
}

// Validate checks value ranges. It does not require the GitHub token.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.DBPath != "" || c.DatabaseURL != "", "PRHARVEST_DB_PATH must not be empty")
	check(len(c.Partitions) > 0, "PRHARVEST_PARTITIONS must name at least one partition")
	check(len(c.Licenses) > 0, "PRHARVEST_LICENSES must name at least one license")
	check(c.PageSize >= 1 && c.PageSize <= 100, "PRHARVEST_PAGE_SIZE must be between 1 and 100, got %d", c.PageSize)
	check(c.QuotaPerPartition >= 1, "PRHARVEST_QUOTA_PER_PARTITION must be positive, got %d", c.QuotaPerPartition)
	check(c.MaxPages >= 1, "PRHARVEST_MAX_PAGES must be positive, got %d", c.MaxPages)
	check(c.PageDelay >= 0, "PRHARVEST_PAGE_DELAY must not be negative, got %s", c.PageDelay)
	check(c.MinStars >= 0, "PRHARVEST_MIN_STARS must not be negative, got %d", c.MinStars)
	check(c.PRSampleSize >= 1 && c.PRSampleSize <= 100, "PRHARVEST_PR_SAMPLE_SIZE must be between 1 and 100, got %d", c.PRSampleSize)
	check(c.MinChangedLines >= 1, "PRHARVEST_MIN_CHANGED_LINES must be positive, got %d", c.MinChangedLines)
	check(c.MinChangedFiles >= 1, "PRHARVEST_MIN_CHANGED_FILES must be positive, got %d", c.MinChangedFiles)
	check(c.BatchSize >= 1, "PRHARVEST_BATCH_SIZE must be positive, got %d", c.BatchSize)
	check(c.MaxBatches >= 0, "PRHARVEST_MAX_BATCHES must not be negative, got %d", c.MaxBatches)
	check(c.Concurrency >= 1, "PRHARVEST_CONCURRENCY must be positive, got %d", c.Concurrency)
	check(c.RequestsPerSecond > 0, "PRHARVEST_REQUESTS_PER_SECOND must be positive, got %g", c.RequestsPerSecond)
	check(c.RetryAttempts >= 1, "PRHARVEST_RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)

	return errors.Join(errs...)
}

// RequireToken returns ErrMissingToken when no GitHub token is configured.
// Commands that call the GitHub API check it before doing any work.
func (c *Config) RequireToken() error {
	if c.GitHubToken == "" {
		return ErrMissingToken
	}
	return nil
}

// UsePostgres reports whether the Postgres store is selected.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func lookupInt(key string, dflt int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return dflt, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

// lookupList splits a comma-separated variable, trimming blanks. An unset or
// empty variable yields a copy of dflt.
func lookupList(key string, dflt []string) []string {
	var out []string
	if v, ok := os.LookupEnv(key); ok && v != "" {
		for _, item := range strings.Split(v, ",") {
			item = strings.TrimSpace(item)
			if item != "" {
				out = append(out, item)
			}
		}
	}
	if out == nil {
		out = append([]string(nil), dflt...)
	}
	return out
}
