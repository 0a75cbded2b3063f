package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// Sentinel errors returned by RepoStore and PRStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrUnknownRepo indicates a pull request references a repository that is
	// not in the store.
	ErrUnknownRepo = errors.New("pull request references unknown repository")
)

// RepoStore defines the driven port for repository persistence.
//
// InsertNew skips rows whose ID already exists and returns how many rows were
// actually inserted, computed atomically by the store. Upsert refreshes the
// mutable columns of existing rows but never touches the processed flag.
// MarkProcessed is idempotent and returns ErrRepoNotFound for unknown IDs.
type RepoStore interface {
	InsertNew(ctx context.Context, repos []model.Repository) (int, error)
	Upsert(ctx context.Context, repos []model.Repository) (int, error)
	ListPending(ctx context.Context, limit int) ([]model.Repository, error)
	MarkProcessed(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.Repository, error)
	List(ctx context.Context, status model.RepoStatus, limit int) ([]model.Repository, error)
	Stats(ctx context.Context) (model.Stats, error)
}
