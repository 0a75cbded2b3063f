package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// foreignKeyViolation is the SQLSTATE Postgres reports for a missing parent row.
const foreignKeyViolation = "23503"

// Compile-time interface satisfaction check.
var _ driven.PRStore = (*PRRepo)(nil)

// PRRepo is the Postgres implementation of the PRStore port interface.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given pool.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

const prColumns = `id, repo_id, number, url, additions, deletions, changed_files, head_sha, merged_at, validated_at`

// Upsert inserts or refreshes accepted pull requests keyed by GitHub PR ID.
// The batch runs inside one transaction; a row referencing a missing
// repository fails the whole call with driven.ErrUnknownRepo.
func (r *PRRepo) Upsert(ctx context.Context, prs []model.PullRequest) error {
	const query = `
		INSERT INTO pull_requests (` + prColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			repo_id = EXCLUDED.repo_id,
			number = EXCLUDED.number,
			url = EXCLUDED.url,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			changed_files = EXCLUDED.changed_files,
			head_sha = EXCLUDED.head_sha,
			merged_at = EXCLUDED.merged_at,
			validated_at = EXCLUDED.validated_at
	`

	if len(prs) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("upsert pull requests: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, pr := range prs {
		var mergedAt *time.Time
		if !pr.MergedAt.IsZero() {
			t := pr.MergedAt.UTC()
			mergedAt = &t
		}
		validatedAt := pr.ValidatedAt
		if validatedAt.IsZero() {
			validatedAt = time.Now()
		}

		batch.Queue(query,
			pr.ID, pr.RepoID, pr.Number, pr.URL, pr.Additions, pr.Deletions, pr.ChangedFiles,
			pr.HeadSHA, mergedAt, validatedAt.UTC(),
		)
	}

	results := tx.SendBatch(ctx, batch)
	for _, pr := range prs {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
				return fmt.Errorf("upsert pull request %d (repo %d): %w", pr.ID, pr.RepoID, driven.ErrUnknownRepo)
			}
			return fmt.Errorf("upsert pull request %d (repo %d): %w", pr.ID, pr.RepoID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("upsert pull requests: close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("upsert pull requests: commit: %w", err)
	}

	return nil
}

// ListByRepo returns the accepted pull requests of a repository, ordered by number.
func (r *PRRepo) ListByRepo(ctx context.Context, repoID int64) ([]model.PullRequest, error) {
	const query = `SELECT ` + prColumns + ` FROM pull_requests WHERE repo_id = $1 ORDER BY number`

	return r.queryPRs(ctx, query, repoID)
}

// ListAll returns up to limit accepted pull requests, most recently validated first.
func (r *PRRepo) ListAll(ctx context.Context, limit int) ([]model.PullRequest, error) {
	const query = `SELECT ` + prColumns + ` FROM pull_requests ORDER BY validated_at DESC, id LIMIT $1`

	return r.queryPRs(ctx, query, limit)
}

func (r *PRRepo) queryPRs(ctx context.Context, query string, args ...any) ([]model.PullRequest, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}

	prs, err := pgx.CollectRows(rows, scanPR)
	if err != nil {
		return nil, fmt.Errorf("scan pull requests: %w", err)
	}
	if prs == nil {
		prs = []model.PullRequest{}
	}

	return prs, nil
}

func scanPR(row pgx.CollectableRow) (model.PullRequest, error) {
	var pr model.PullRequest
	var mergedAt *time.Time

	err := row.Scan(
		&pr.ID, &pr.RepoID, &pr.Number, &pr.URL, &pr.Additions, &pr.Deletions, &pr.ChangedFiles,
		&pr.HeadSHA, &mergedAt, &pr.ValidatedAt,
	)
	if err != nil {
		return model.PullRequest{}, err
	}
	if mergedAt != nil {
		pr.MergedAt = *mergedAt
	}

	return pr, nil
}
