package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db  *DB
	now func() time.Time
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db, now: time.Now}
}

const repoColumns = `id, owner, name, url, stars, license_key, partition, discovered_at, processed, processed_at`

// InsertNew inserts repositories whose ID is not yet stored and returns the
// number of rows actually inserted. Existing rows are left untouched. All rows
// are written in a single transaction so the count is exact even when another
// run inserts concurrently.
func (r *RepoRepo) InsertNew(ctx context.Context, repos []model.Repository) (int, error) {
	const query = `
		INSERT INTO repos (id, owner, name, url, stars, license_key, partition, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	return r.writeAll(ctx, "insert repositories", query, repos)
}

// Upsert inserts repositories or refreshes owner, name, url, stars and license
// on existing rows. The processed flag and discovery time are never modified.
// It returns the number of rows inserted or updated.
func (r *RepoRepo) Upsert(ctx context.Context, repos []model.Repository) (int, error) {
	const query = `
		INSERT INTO repos (id, owner, name, url, stars, license_key, partition, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			name = excluded.name,
			url = excluded.url,
			stars = excluded.stars,
			license_key = excluded.license_key
	`

	return r.writeAll(ctx, "upsert repositories", query, repos)
}

func (r *RepoRepo) writeAll(ctx context.Context, op, query string, repos []model.Repository) (int, error) {
	if len(repos) == 0 {
		return 0, nil
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	discoveredAt := formatTime(r.now())

	var written int64
	for _, repo := range repos {
		res, err := stmt.ExecContext(ctx,
			repo.ID, repo.Owner, repo.Name, repo.URL, repo.Stars, repo.LicenseKey, repo.Partition, discoveredAt,
		)
		if err != nil {
			return 0, fmt.Errorf("%s: repository %d: %w", op, repo.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("%s: check rows affected: %w", op, err)
		}
		written += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return int(written), nil
}

// ListPending returns up to limit repositories whose processed flag is unset,
// in discovery order.
func (r *RepoRepo) ListPending(ctx context.Context, limit int) ([]model.Repository, error) {
	const query = `SELECT ` + repoColumns + ` FROM repos WHERE processed IS NULL ORDER BY discovered_at, id LIMIT ?`

	return r.queryRepos(ctx, query, limit)
}

// MarkProcessed sets the processed flag on a repository. Marking an already
// processed repository is a no-op. Returns ErrRepoNotFound for unknown IDs.
func (r *RepoRepo) MarkProcessed(ctx context.Context, id int64) error {
	const query = `UPDATE repos SET processed = 1, processed_at = ? WHERE id = ? AND processed IS NULL`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(r.now()), id)
	if err != nil {
		return fmt.Errorf("mark repository %d processed: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = r.db.Writer.QueryRowContext(ctx, `SELECT 1 FROM repos WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("mark repository %d processed: %w", id, driven.ErrRepoNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark repository %d processed: %w", id, err)
	}

	return nil
}

// GetByID retrieves a repository by its GitHub ID. Returns nil, nil if the
// repository does not exist.
func (r *RepoRepo) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	const query = `SELECT ` + repoColumns + ` FROM repos WHERE id = ?`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", id, err)
	}

	return repo, nil
}

// List returns up to limit repositories with the given status, most starred first.
func (r *RepoRepo) List(ctx context.Context, status model.RepoStatus, limit int) ([]model.Repository, error) {
	var where string
	switch status {
	case model.RepoStatusPending:
		where = `WHERE processed IS NULL`
	case model.RepoStatusProcessed:
		where = `WHERE processed = 1`
	}

	query := `SELECT ` + repoColumns + ` FROM repos ` + where + ` ORDER BY stars DESC, id LIMIT ?`

	return r.queryRepos(ctx, query, limit)
}

// Stats counts repositories by processed state and stored pull requests.
func (r *RepoRepo) Stats(ctx context.Context) (model.Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM repos),
			(SELECT COUNT(*) FROM repos WHERE processed = 1),
			(SELECT COUNT(*) FROM pull_requests)
	`

	var s model.Stats
	if err := r.db.Reader.QueryRowContext(ctx, query).Scan(&s.Repositories, &s.Processed, &s.PullRequests); err != nil {
		return model.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	s.Pending = s.Repositories - s.Processed

	return s, nil
}

func (r *RepoRepo) queryRepos(ctx context.Context, query string, args ...any) ([]model.Repository, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()

	repos := []model.Repository{}
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var discoveredAt string
	var processed sql.NullInt64
	var processedAt sql.NullString

	err := s.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.URL, &repo.Stars, &repo.LicenseKey, &repo.Partition,
		&discoveredAt, &processed, &processedAt,
	)
	if err != nil {
		return nil, err
	}

	repo.DiscoveredAt, err = parseTime(discoveredAt)
	if err != nil {
		return nil, fmt.Errorf("parse discovered_at: %w", err)
	}

	repo.Processed = processed.Valid && processed.Int64 == 1
	repo.ProcessedAt, err = parseNullTime(processedAt)
	if err != nil {
		return nil, fmt.Errorf("parse processed_at: %w", err)
	}

	return &repo, nil
}
