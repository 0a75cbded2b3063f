package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// PersistMode selects how discovered repositories are written.
type PersistMode int

const (
	// InsertNewOnly skips repositories already in the store.
	InsertNewOnly PersistMode = iota
	// UpsertOverwrite refreshes mutable fields of stored repositories. The
	// processed flag is never reset.
	UpsertOverwrite
)

// String returns the mode name used in logs.
func (m PersistMode) String() string {
	if m == UpsertOverwrite {
		return "upsert"
	}
	return "insert-new"
}

// DiscoveryResult summarizes one discovery phase.
type DiscoveryResult struct {
	Collected  int // Unique repositories returned by the collector.
	Licensed   int // Repositories left after the license filter.
	Written    int // Rows inserted (or inserted and updated, in upsert mode).
	Partitions []PartitionReport
}

// DiscoveryService runs collection, license filtering and persistence in order.
type DiscoveryService struct {
	collector  *Collector
	repoStore  driven.RepoStore
	allow      model.LicenseAllowList
	partitions []model.Partition
}

// NewDiscoveryService creates a DiscoveryService for the given partitions.
func NewDiscoveryService(
	collector *Collector,
	repoStore driven.RepoStore,
	allow model.LicenseAllowList,
	partitions []model.Partition,
) *DiscoveryService {
	return &DiscoveryService{
		collector:  collector,
		repoStore:  repoStore,
		allow:      allow,
		partitions: partitions,
	}
}

// partialWriteTimeout bounds the write of a partial collection after the run
// context is canceled.
const partialWriteTimeout = 10 * time.Second

// Discover collects repositories, drops those without an allowed license and
// writes the rest with the given mode. When collection is canceled the
// repositories gathered so far are still written, under a short detached
// deadline, and the cancellation error is returned.
func (s *DiscoveryService) Discover(ctx context.Context, mode PersistMode) (DiscoveryResult, error) {
	start := time.Now()

	collected, collectErr := s.collector.Collect(ctx, s.partitions)
	result := DiscoveryResult{
		Collected:  len(collected.Repositories),
		Partitions: collected.Partitions,
	}

	licensed := FilterLicensed(collected.Repositories, s.allow)
	result.Licensed = len(licensed)

	writeCtx := ctx
	if collectErr != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), partialWriteTimeout)
		defer cancel()
	}

	written, err := s.persist(writeCtx, mode, licensed)
	if err != nil {
		if collectErr != nil {
			return result, fmt.Errorf("collect repositories: %w", errors.Join(collectErr, err))
		}
		return result, fmt.Errorf("persist repositories: %w", err)
	}
	result.Written = written

	if collectErr != nil {
		slog.Warn("discovery interrupted, partial collection stored",
			"mode", mode.String(),
			"collected", result.Collected,
			"written", result.Written,
		)
		return result, fmt.Errorf("collect repositories: %w", collectErr)
	}

	slog.Info("discovery complete",
		"mode", mode.String(),
		"collected", result.Collected,
		"licensed", result.Licensed,
		"written", result.Written,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return result, nil
}

func (s *DiscoveryService) persist(ctx context.Context, mode PersistMode, repos []model.Repository) (int, error) {
	if mode == UpsertOverwrite {
		return s.repoStore.Upsert(ctx, repos)
	}
	return s.repoStore.InsertNew(ctx, repos)
}
