package driven

import (
	"context"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// PRStore defines the driven port for accepted pull request persistence.
// Upsert is keyed by the GitHub PR ID and returns ErrUnknownRepo when a row
// references a repository that does not exist.
type PRStore interface {
	Upsert(ctx context.Context, prs []model.PullRequest) error
	ListByRepo(ctx context.Context, repoID int64) ([]model.PullRequest, error)
	ListAll(ctx context.Context, limit int) ([]model.PullRequest, error)
}
