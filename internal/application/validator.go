package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// Validator runs the PR gate chain over a repository's recent merged pull
// requests. Gates run cheapest first and short-circuit: the changed-file list
// and the commit status are only fetched for PRs that already passed the
// merged, size and breadth gates.
type Validator struct {
	client     driven.GitHubClient
	thresholds model.GateThresholds
	retry      RetryPolicy
	now        func() time.Time
}

// NewValidator creates a Validator. Non-positive thresholds fall back to the
// defaults.
func NewValidator(client driven.GitHubClient, thresholds model.GateThresholds, retry RetryPolicy) *Validator {
	defaults := model.DefaultGateThresholds()
	if thresholds.SampleSize <= 0 {
		thresholds.SampleSize = defaults.SampleSize
	}
	if thresholds.MinChangedLines <= 0 {
		thresholds.MinChangedLines = defaults.MinChangedLines
	}
	if thresholds.MinChangedFiles <= 0 {
		thresholds.MinChangedFiles = defaults.MinChangedFiles
	}

	return &Validator{
		client:     client,
		thresholds: thresholds,
		retry:      retry,
		now:        time.Now,
	}
}

// Validate samples the most recently updated merged PRs of repo and returns
// those passing every gate, with RepoID set. A PR whose fetches fail is
// skipped. An error is returned only when the candidate search fails or ctx
// is canceled; the error keeps its provider classification.
func (v *Validator) Validate(ctx context.Context, repo model.Repository) ([]model.PullRequest, error) {
	numbers, err := retryCall(ctx, v.retry, "search merged pull requests", func(ctx context.Context) ([]int, error) {
		return v.client.SearchMergedPRs(ctx, repo.Owner, repo.Name, v.thresholds.SampleSize)
	})
	if err != nil {
		return nil, fmt.Errorf("search merged pull requests of %s: %w", repo.FullName(), err)
	}

	accepted := []model.PullRequest{}
	rejected := make(map[model.Gate]int)
	var skipped int

	for _, number := range numbers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		detail, gate, err := v.evaluate(ctx, repo, number)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("pull request skipped", "repo", repo.FullName(), "pr", number, "error", err)
			skipped++
			continue
		}
		if gate != model.GateNone {
			slog.Debug("pull request rejected", "repo", repo.FullName(), "pr", number, "gate", string(gate))
			rejected[gate]++
			continue
		}

		accepted = append(accepted, detail.ToPullRequest(repo.ID, v.now().UTC()))
	}

	slog.Debug("repository evaluated",
		"repo", repo.FullName(),
		"sampled", len(numbers),
		"accepted", len(accepted),
		"skipped", skipped,
		"rejected_size", rejected[model.GateSize],
		"rejected_breadth", rejected[model.GateBreadth],
		"rejected_tests", rejected[model.GateTests],
		"rejected_ci", rejected[model.GateCI],
	)

	return accepted, nil
}

// evaluate fetches one PR and runs the gates in order. It returns the first
// gate that rejected the PR, or model.GateNone when all passed.
func (v *Validator) evaluate(ctx context.Context, repo model.Repository, number int) (*model.PRDetail, model.Gate, error) {
	detail, err := retryCall(ctx, v.retry, "fetch pull request", func(ctx context.Context) (*model.PRDetail, error) {
		return v.client.FetchPRDetail(ctx, repo.Owner, repo.Name, number)
	})
	if err != nil {
		return nil, model.GateNone, fmt.Errorf("fetch pull request: %w", err)
	}
	if detail == nil {
		return nil, model.GateNone, errors.New("fetch pull request: empty response")
	}

	if !PassesMerged(*detail) {
		return detail, model.GateMerged, nil
	}
	if !PassesSize(*detail, v.thresholds.MinChangedLines) {
		return detail, model.GateSize, nil
	}
	if !PassesBreadth(*detail, v.thresholds.MinChangedFiles) {
		return detail, model.GateBreadth, nil
	}

	files, err := retryCall(ctx, v.retry, "list changed files", func(ctx context.Context) ([]string, error) {
		return v.client.FetchChangedFiles(ctx, repo.Owner, repo.Name, number)
	})
	if err != nil {
		return nil, model.GateNone, fmt.Errorf("list changed files: %w", err)
	}
	if !HasTestFiles(files) {
		return detail, model.GateTests, nil
	}

	state, err := retryCall(ctx, v.retry, "fetch commit status", func(ctx context.Context) (model.CommitState, error) {
		return v.client.FetchCombinedStatus(ctx, repo.Owner, repo.Name, detail.HeadSHA)
	})
	if err != nil {
		return nil, model.GateNone, fmt.Errorf("fetch commit status: %w", err)
	}
	if !IsGreen(state) {
		return detail, model.GateCI, nil
	}

	return detail, model.GateNone, nil
}

// PassesMerged reports whether the PR was merged.
func PassesMerged(d model.PRDetail) bool {
	return d.Merged
}

// PassesSize reports whether additions plus deletions reach minLines.
func PassesSize(d model.PRDetail, minLines int) bool {
	return d.Additions+d.Deletions >= minLines
}

// PassesBreadth reports whether the PR touched at least minFiles files.
func PassesBreadth(d model.PRDetail, minFiles int) bool {
	return d.ChangedFiles >= minFiles
}

// HasTestFiles reports whether any filename, lowercased, contains "test" or "spec".
func HasTestFiles(files []string) bool {
	for _, f := range files {
		lower := strings.ToLower(f)
		if strings.Contains(lower, "test") || strings.Contains(lower, "spec") {
			return true
		}
	}
	return false
}

// IsGreen reports whether the combined commit status is success.
func IsGreen(state model.CommitState) bool {
	return state == model.CommitStateSuccess
}
