package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

const defaultBatchSize = 100

// ProcessConfig controls the validation batch loop.
type ProcessConfig struct {
	BatchSize   int // Pending repositories selected per batch.
	MaxBatches  int // Batch ceiling; <=0 means no ceiling.
	Concurrency int // Repositories validated in parallel within a batch.
}

// ProcessResult summarizes one validation phase.
type ProcessResult struct {
	Batches     int
	Processed   int // Repositories marked processed.
	Failed      int // Repositories left pending because of an error.
	AcceptedPRs int
}

// ProcessService selects pending repositories in batches, validates each,
// persists its accepted pull requests and marks it processed.
type ProcessService struct {
	validator *Validator
	repoStore driven.RepoStore
	prStore   driven.PRStore
	cfg       ProcessConfig
}

// NewProcessService creates a ProcessService with all required dependencies.
func NewProcessService(
	validator *Validator,
	repoStore driven.RepoStore,
	prStore driven.PRStore,
	cfg ProcessConfig,
) *ProcessService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)

	return &ProcessService{
		validator: validator,
		repoStore: repoStore,
		prStore:   prStore,
		cfg:       cfg,
	}
}

// Run processes batches until no repository is pending or the batch ceiling
// is reached. A repository that fails is skipped for the rest of the run, so
// persistently failing rows at the head of the queue never block the rows
// behind them. It stays pending and is retried by the next run.
func (s *ProcessService) Run(ctx context.Context) (ProcessResult, error) {
	start := time.Now()
	var result ProcessResult
	failed := make(map[int64]struct{})

	for s.cfg.MaxBatches <= 0 || result.Batches < s.cfg.MaxBatches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.nextBatch(ctx, failed)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		result.Batches++
		b, failedIDs := s.processBatch(ctx, batch)
		result.Processed += b.Processed
		result.Failed += b.Failed
		result.AcceptedPRs += b.AcceptedPRs
		for _, id := range failedIDs {
			failed[id] = struct{}{}
		}

		slog.Info("batch processed",
			"batch", result.Batches,
			"size", len(batch),
			"processed", b.Processed,
			"failed", b.Failed,
			"accepted_prs", b.AcceptedPRs,
		)

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	slog.Info("validation complete",
		"batches", result.Batches,
		"processed", result.Processed,
		"failed", result.Failed,
		"skipped_pending", len(failed),
		"accepted_prs", result.AcceptedPRs,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, nil
}

// nextBatch selects up to BatchSize pending repositories that have not failed
// earlier in this run. Failed rows are still pending and sort first, so the
// selection over-fetches by their count and drops them.
func (s *ProcessService) nextBatch(ctx context.Context, failed map[int64]struct{}) ([]model.Repository, error) {
	pending, err := s.repoStore.ListPending(ctx, s.cfg.BatchSize+len(failed))
	if err != nil {
		return nil, fmt.Errorf("select pending repositories: %w", err)
	}

	batch := make([]model.Repository, 0, s.cfg.BatchSize)
	for _, repo := range pending {
		if _, ok := failed[repo.ID]; ok {
			continue
		}
		batch = append(batch, repo)
		if len(batch) == s.cfg.BatchSize {
			break
		}
	}
	return batch, nil
}

// processBatch handles each repository independently; one failure never
// aborts the rest of the batch. It returns the IDs that failed.
func (s *ProcessService) processBatch(ctx context.Context, batch []model.Repository) (ProcessResult, []int64) {
	accepted := make([]int, len(batch))
	errs := make([]error, len(batch))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, repo := range batch {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			accepted[i], errs[i] = s.ProcessRepo(ctx, repo)
			return nil
		})
	}
	_ = g.Wait()

	var result ProcessResult
	var failedIDs []int64
	for i, err := range errs {
		if err != nil {
			result.Failed++
			failedIDs = append(failedIDs, batch[i].ID)
			if ctx.Err() == nil {
				slog.Error("repository processing failed", "repo", batch[i].FullName(), "error", err)
			}
			continue
		}
		result.Processed++
		result.AcceptedPRs += accepted[i]
	}
	return result, failedIDs
}

// ProcessRepo validates one repository, persists its accepted pull requests
// and then marks it processed, in that order. A repository whose candidate
// search fails permanently (deleted or renamed) is marked processed with no
// pull requests. On any other error the repository stays pending.
func (s *ProcessService) ProcessRepo(ctx context.Context, repo model.Repository) (int, error) {
	prs, err := s.validator.Validate(ctx, repo)
	if err != nil {
		if ctx.Err() != nil || !errors.Is(err, driven.ErrPermanent) {
			return 0, err
		}
		slog.Warn("repository unavailable, marking processed", "repo", repo.FullName(), "error", err)
		prs = nil
	}

	if len(prs) > 0 {
		if err := s.prStore.Upsert(ctx, prs); err != nil {
			return 0, fmt.Errorf("persist pull requests of %s: %w", repo.FullName(), err)
		}
	}

	if err := s.repoStore.MarkProcessed(ctx, repo.ID); err != nil {
		return 0, fmt.Errorf("mark %s processed: %w", repo.FullName(), err)
	}

	slog.Info("repository validated", "repo", repo.FullName(), "accepted", len(prs))
	return len(prs), nil
}
