package cli

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	githubadapter "github.com/ericfisherdev/prharvest/internal/adapter/driven/github"
	pgadapter "github.com/ericfisherdev/prharvest/internal/adapter/driven/postgres"
	sqliteadapter "github.com/ericfisherdev/prharvest/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/prharvest/internal/application"
	"github.com/ericfisherdev/prharvest/internal/config"
	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// stores bundles the persistence ports of the selected backend.
type stores struct {
	repos driven.RepoStore
	prs   driven.PRStore
	close func() error
}

func (s *stores) Close() {
	if err := s.close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// openStores opens Postgres when a database URL is configured and SQLite
// otherwise, then applies migrations.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.UsePostgres() {
		db, err := pgadapter.Open(ctx, pgadapter.Config{
			URL:      cfg.DatabaseURL,
			MaxConns: int32(max(cfg.Concurrency, 1) + 2),
		})
		if err != nil {
			return nil, err
		}
		if err := pgadapter.RunMigrations(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		slog.Info("database opened", "backend", "postgres")

		return &stores{
			repos: pgadapter.NewRepoRepo(db),
			prs:   pgadapter.NewPRRepo(db),
			close: db.Close,
		}, nil
	}

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("database opened", "backend", "sqlite", "path", cfg.DBPath)

	return &stores{
		repos: sqliteadapter.NewRepoRepo(db),
		prs:   sqliteadapter.NewPRRepo(db),
		close: db.Close,
	}, nil
}

// newRunner wires the GitHub client and both phase services.
func newRunner(cfg *config.Config, st *stores, batchSize, maxBatches int) *application.Runner {
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	client := githubadapter.NewClient(cfg.GitHubToken, limiter)

	retry := application.DefaultRetryPolicy()
	retry.Attempts = cfg.RetryAttempts

	partitions := make([]model.Partition, 0, len(cfg.Partitions))
	for _, lang := range cfg.Partitions {
		partitions = append(partitions, model.LanguagePartition(lang))
	}

	collector := application.NewCollector(client, application.CollectorConfig{
		Criteria: model.SearchCriteria{
			MinStars:     cfg.MinStars,
			CreatedAfter: cfg.CreatedAfter,
		},
		QuotaPerPartition: cfg.QuotaPerPartition,
		PageSize:          cfg.PageSize,
		MaxPages:          cfg.MaxPages,
		PageDelay:         cfg.PageDelay,
		Concurrency:       cfg.Concurrency,
		Retry:             retry,
	})
	discovery := application.NewDiscoveryService(
		collector,
		st.repos,
		model.NewLicenseAllowList(cfg.Licenses...),
		partitions,
	)

	validator := application.NewValidator(client, model.GateThresholds{
		SampleSize:      cfg.PRSampleSize,
		MinChangedLines: cfg.MinChangedLines,
		MinChangedFiles: cfg.MinChangedFiles,
	}, retry)
	process := application.NewProcessService(validator, st.repos, st.prs, application.ProcessConfig{
		BatchSize:   batchSize,
		MaxBatches:  maxBatches,
		Concurrency: cfg.Concurrency,
	})

	return application.NewRunner(discovery, process)
}

// pipelineEnv is the loaded configuration, open stores and wired runner
// shared by the pipeline commands.
type pipelineEnv struct {
	cfg    *config.Config
	stores *stores
	runner *application.Runner
}

// setupPipeline loads configuration, requires a token and wires the runner.
// Errors here are startup failures.
func setupPipeline(ctx context.Context, opts *RootOptions, batchSize, maxBatches int) (*pipelineEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}

	if batchSize <= 0 {
		batchSize = cfg.BatchSize
	}
	if maxBatches < 0 {
		maxBatches = cfg.MaxBatches
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &pipelineEnv{
		cfg:    cfg,
		stores: st,
		runner: newRunner(cfg, st, batchSize, maxBatches),
	}, nil
}
