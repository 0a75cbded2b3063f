package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PRStore = (*PRRepo)(nil)

// PRRepo is the SQLite implementation of the PRStore port interface.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

const prColumns = `id, repo_id, number, url, additions, deletions, changed_files, head_sha, merged_at, validated_at`

// Upsert inserts or refreshes accepted pull requests keyed by GitHub PR ID, in
// one transaction. A row referencing a missing repository fails the whole call
// with driven.ErrUnknownRepo.
func (r *PRRepo) Upsert(ctx context.Context, prs []model.PullRequest) error {
	const query = `
		INSERT INTO pull_requests (` + prColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_id = excluded.repo_id,
			number = excluded.number,
			url = excluded.url,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changed_files = excluded.changed_files,
			head_sha = excluded.head_sha,
			merged_at = excluded.merged_at,
			validated_at = excluded.validated_at
	`

	if len(prs) == 0 {
		return nil
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert pull requests: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("upsert pull requests: prepare: %w", err)
	}
	defer stmt.Close()

	for _, pr := range prs {
		var mergedAt sql.NullString
		if !pr.MergedAt.IsZero() {
			mergedAt = sql.NullString{String: formatTime(pr.MergedAt), Valid: true}
		}
		validatedAt := pr.ValidatedAt
		if validatedAt.IsZero() {
			validatedAt = time.Now()
		}

		_, err := stmt.ExecContext(ctx,
			pr.ID, pr.RepoID, pr.Number, pr.URL, pr.Additions, pr.Deletions, pr.ChangedFiles,
			pr.HeadSHA, mergedAt, formatTime(validatedAt),
		)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint") {
				return fmt.Errorf("upsert pull request %d (repo %d): %w", pr.ID, pr.RepoID, driven.ErrUnknownRepo)
			}
			return fmt.Errorf("upsert pull request %d (repo %d): %w", pr.ID, pr.RepoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert pull requests: commit: %w", err)
	}

	return nil
}

// ListByRepo returns the accepted pull requests of a repository, ordered by number.
func (r *PRRepo) ListByRepo(ctx context.Context, repoID int64) ([]model.PullRequest, error) {
	const query = `SELECT ` + prColumns + ` FROM pull_requests WHERE repo_id = ? ORDER BY number`

	return r.queryPRs(ctx, query, repoID)
}

// ListAll returns up to limit accepted pull requests, most recently validated first.
func (r *PRRepo) ListAll(ctx context.Context, limit int) ([]model.PullRequest, error) {
	const query = `SELECT ` + prColumns + ` FROM pull_requests ORDER BY validated_at DESC, id LIMIT ?`

	return r.queryPRs(ctx, query, limit)
}

func (r *PRRepo) queryPRs(ctx context.Context, query string, args ...any) ([]model.PullRequest, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	prs := []model.PullRequest{}
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPR(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var mergedAt sql.NullString
	var validatedAt string

	err := s.Scan(
		&pr.ID, &pr.RepoID, &pr.Number, &pr.URL, &pr.Additions, &pr.Deletions, &pr.ChangedFiles,
		&pr.HeadSHA, &mergedAt, &validatedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.MergedAt, err = parseNullTime(mergedAt)
	if err != nil {
		return nil, fmt.Errorf("parse merged_at: %w", err)
	}
	pr.ValidatedAt, err = parseTime(validatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse validated_at: %w", err)
	}

	return &pr, nil
}
