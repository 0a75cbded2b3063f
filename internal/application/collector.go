package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// StopReason records why the collector stopped paging a partition.
type StopReason string

const (
	StopExhausted   StopReason = "exhausted"    // Provider returned a short page.
	StopQuota       StopReason = "quota"        // Partition quota of unique repositories reached.
	StopPageCeiling StopReason = "page_ceiling" // Hard page ceiling hit.
	StopAbandoned   StopReason = "abandoned"    // A page failed after retries.
	StopCanceled    StopReason = "canceled"     // Context canceled.
)

// Collector defaults.
const (
	maxPageSize              = 100
	defaultQuotaPerPartition = 100
	defaultMaxPages          = 10
	defaultPageDelay         = 1200 * time.Millisecond
)

// CollectorConfig controls partition paging.
type CollectorConfig struct {
	Criteria          model.SearchCriteria
	QuotaPerPartition int
	PageSize          int // 1..100
	MaxPages          int // Page ceiling per partition.
	PageDelay         time.Duration
	Concurrency       int // Partitions collected in parallel.
	Retry             RetryPolicy
}

// DefaultCollectorConfig returns the configuration used when none is given.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Criteria: model.SearchCriteria{
			MinStars:     1000,
			CreatedAfter: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		QuotaPerPartition: defaultQuotaPerPartition,
		PageSize:          maxPageSize,
		MaxPages:          defaultMaxPages,
		PageDelay:         defaultPageDelay,
		Concurrency:       1,
		Retry:             DefaultRetryPolicy(),
	}
}

// PartitionReport summarizes the collection of one partition.
type PartitionReport struct {
	Partition string
	Pages     int // Pages fetched successfully.
	Seen      int // Items returned by the provider.
	Unique    int // Items not seen earlier in this run, in any partition.
	Stop      StopReason
	Err       error // Set when Stop is StopAbandoned.
}

// CollectResult holds the deduplicated repositories in arrival order together
// with a report per partition, in partition order.
type CollectResult struct {
	Repositories []model.Repository
	Partitions   []PartitionReport
}

// Collector pages the repository search provider per partition and
// deduplicates results across partitions.
//
// Quota cutoff truncates by arrival order under a stars-descending sort, so
// the result approximates the top N per partition only as well as the
// provider keeps its sort stable across pages.
type Collector struct {
	client driven.GitHubClient
	cfg    CollectorConfig
}

// NewCollector creates a Collector. Out-of-range values in cfg are replaced
// with defaults.
func NewCollector(client driven.GitHubClient, cfg CollectorConfig) *Collector {
	if cfg.PageSize <= 0 || cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.QuotaPerPartition <= 0 {
		cfg.QuotaPerPartition = defaultQuotaPerPartition
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)

	return &Collector{client: client, cfg: cfg}
}

// Collect pages every partition and returns the unique repositories found.
// Each returned repository carries the name of the partition that surfaced it
// first. When ctx is canceled the partial result is returned with ctx.Err().
func (c *Collector) Collect(ctx context.Context, partitions []model.Partition) (CollectResult, error) {
	start := time.Now()
	seen := newSeenSet()
	found := make([][]model.Repository, len(partitions))
	reports := make([]PartitionReport, len(partitions))

	var g errgroup.Group
	g.SetLimit(c.cfg.Concurrency)
	for i, p := range partitions {
		g.Go(func() error {
			found[i], reports[i] = c.collectPartition(ctx, p, seen)
			return nil
		})
	}
	_ = g.Wait()

	result := CollectResult{Partitions: reports}
	for i, repos := range found {
		result.Repositories = append(result.Repositories, repos...)

		r := reports[i]
		attrs := []any{
			"partition", r.Partition,
			"pages", r.Pages,
			"seen", r.Seen,
			"unique", r.Unique,
			"stop", string(r.Stop),
		}
		if r.Err != nil {
			slog.Warn("partition collected", append(attrs, "error", r.Err)...)
		} else {
			slog.Info("partition collected", attrs...)
		}
	}

	slog.Info("collection complete",
		"partitions", len(partitions),
		"repositories", len(result.Repositories),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, ctx.Err()
}

// collectPartition pages a single partition until one of the stop conditions
// holds. Repositories already claimed by another partition are skipped and do
// not count toward this partition's quota.
func (c *Collector) collectPartition(ctx context.Context, p model.Partition, seen *seenSet) ([]model.Repository, PartitionReport) {
	report := PartitionReport{Partition: p.Name}
	query := c.cfg.Criteria.Query(p)

	seq := newPageSeq(func(ctx context.Context, page int) ([]model.Repository, error) {
		return retryCall(ctx, c.cfg.Retry, "search repositories", func(ctx context.Context) ([]model.Repository, error) {
			return c.client.SearchRepositories(ctx, query, page, c.cfg.PageSize)
		})
	}, c.cfg.PageSize, c.cfg.MaxPages)

	var repos []model.Repository
	for {
		if ctx.Err() != nil {
			report.Stop = StopCanceled
			return repos, report
		}

		items, ok, err := seq.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				report.Stop = StopCanceled
			} else {
				report.Stop = StopAbandoned
				report.Err = err
			}
			return repos, report
		}
		if !ok {
			report.Stop = stopReason(seq)
			return repos, report
		}

		report.Pages++
		for _, repo := range items {
			report.Seen++
			if !seen.claim(repo.ID) {
				continue
			}
			repo.Partition = p.Name
			repos = append(repos, repo)
			report.Unique++
			if report.Unique >= c.cfg.QuotaPerPartition {
				report.Stop = StopQuota
				return repos, report
			}
		}

		if seq.Done() {
			report.Stop = stopReason(seq)
			return repos, report
		}

		if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
			report.Stop = StopCanceled
			return repos, report
		}
	}
}

func stopReason(seq *pageSeq) StopReason {
	if seq.Exhausted() {
		return StopExhausted
	}
	return StopPageCeiling
}

// seenSet is the cross-partition set of repository IDs claimed in one run.
type seenSet struct {
	mu  sync.Mutex
	ids map[int64]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{ids: make(map[int64]struct{})}
}

// claim records id and reports whether it was not seen before.
func (s *seenSet) claim(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}
