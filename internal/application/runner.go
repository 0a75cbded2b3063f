package application

import (
	"context"
	"errors"
	"log/slog"
)

// RunResult combines the outcome of both phases.
type RunResult struct {
	Discovery  DiscoveryResult
	Validation ProcessResult
}

// Runner sequences the discovery phase and the validation phase. Each phase
// can also be invoked on its own.
type Runner struct {
	discovery *DiscoveryService
	process   *ProcessService
}

// NewRunner creates a Runner from the two phase services.
func NewRunner(discovery *DiscoveryService, process *ProcessService) *Runner {
	return &Runner{discovery: discovery, process: process}
}

// Discover runs collection, license filtering and persistence.
func (r *Runner) Discover(ctx context.Context, mode PersistMode) (DiscoveryResult, error) {
	return r.discovery.Discover(ctx, mode)
}

// Validate runs the pending-selection, validation and marking loop.
func (r *Runner) Validate(ctx context.Context) (ProcessResult, error) {
	return r.process.Run(ctx)
}

// Run discovers, then validates. A failed discovery does not prevent
// validation of repositories stored by earlier runs; cancellation stops both.
func (r *Runner) Run(ctx context.Context, mode PersistMode) (RunResult, error) {
	var result RunResult

	discovery, discErr := r.Discover(ctx, mode)
	result.Discovery = discovery
	if discErr != nil {
		if ctx.Err() != nil {
			return result, discErr
		}
		slog.Error("discovery failed, continuing with validation", "error", discErr)
	}

	validation, valErr := r.Validate(ctx)
	result.Validation = validation

	return result, errors.Join(discErr, valErr)
}
