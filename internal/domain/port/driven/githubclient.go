package driven

import (
	"context"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// GitHubClient defines the driven port for the read-only GitHub calls the
// pipeline makes. Implementations classify failures by wrapping ErrTransient
// or ErrPermanent so callers can decide whether to retry.
type GitHubClient interface {
	// SearchRepositories returns one page (1-based) of the repository search
	// for query, sorted by stars descending.
	SearchRepositories(ctx context.Context, query string, page, perPage int) ([]model.Repository, error)

	// SearchMergedPRs returns the numbers of up to limit merged pull requests,
	// most recently updated first.
	SearchMergedPRs(ctx context.Context, owner, name string, limit int) ([]int, error)

	// FetchPRDetail returns diff stats and head commit for a single PR.
	FetchPRDetail(ctx context.Context, owner, name string, number int) (*model.PRDetail, error)

	// FetchChangedFiles returns the filenames touched by a PR.
	FetchChangedFiles(ctx context.Context, owner, name string, number int) ([]string, error)

	// FetchCombinedStatus returns the combined commit status for ref.
	FetchCombinedStatus(ctx context.Context, owner, name, ref string) (model.CommitState, error)
}
