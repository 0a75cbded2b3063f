package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the Postgres implementation of the RepoStore port interface.
type RepoRepo struct {
	db  *DB
	now func() time.Time
}

// NewRepoRepo creates a new RepoRepo backed by the given pool.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db, now: time.Now}
}

const repoColumns = `id, owner, name, url, stars, license_key, partition, discovered_at, processed, processed_at`

// unnestRepos expands parallel arrays into rows so a whole batch is written by
// one statement.
const unnestRepos = `
	SELECT * FROM unnest(
		$1::bigint[], $2::text[], $3::text[], $4::text[], $5::int[], $6::text[], $7::text[]
	) AS t(id, owner, name, url, stars, license_key, partition)
`

// InsertNew inserts repositories whose ID is not yet stored and returns the
// number of rows actually inserted, from a single INSERT ... ON CONFLICT DO
// NOTHING statement.
func (r *RepoRepo) InsertNew(ctx context.Context, repos []model.Repository) (int, error) {
	const query = `
		INSERT INTO repos (id, owner, name, url, stars, license_key, partition, discovered_at)
		SELECT t.id, t.owner, t.name, t.url, t.stars, t.license_key, t.partition, $8::timestamptz
		FROM (` + unnestRepos + `) AS t
		ON CONFLICT (id) DO NOTHING
	`

	if len(repos) == 0 {
		return 0, nil
	}

	tag, err := r.db.Pool.Exec(ctx, query, append(repoArrays(repos), r.now().UTC())...)
	if err != nil {
		return 0, fmt.Errorf("insert repositories: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// Upsert inserts repositories or refreshes owner, name, url, stars and license
// on existing rows. The processed flag and discovery time are never modified.
func (r *RepoRepo) Upsert(ctx context.Context, repos []model.Repository) (int, error) {
	const query = `
		INSERT INTO repos (id, owner, name, url, stars, license_key, partition, discovered_at)
		SELECT t.id, t.owner, t.name, t.url, t.stars, t.license_key, t.partition, $8::timestamptz
		FROM (` + unnestRepos + `) AS t
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			stars = EXCLUDED.stars,
			license_key = EXCLUDED.license_key
	`

	// ON CONFLICT DO UPDATE rejects a batch that touches the same row twice.
	repos = dedupByID(repos)
	if len(repos) == 0 {
		return 0, nil
	}

	tag, err := r.db.Pool.Exec(ctx, query, append(repoArrays(repos), r.now().UTC())...)
	if err != nil {
		return 0, fmt.Errorf("upsert repositories: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListPending returns up to limit repositories whose processed flag is unset,
// in discovery order.
func (r *RepoRepo) ListPending(ctx context.Context, limit int) ([]model.Repository, error) {
	const query = `SELECT ` + repoColumns + ` FROM repos WHERE processed IS NULL ORDER BY discovered_at, id LIMIT $1`

	return r.queryRepos(ctx, query, limit)
}

// MarkProcessed sets the processed flag on a repository. Marking an already
// processed repository is a no-op. Returns ErrRepoNotFound for unknown IDs.
func (r *RepoRepo) MarkProcessed(ctx context.Context, id int64) error {
	const query = `
		WITH updated AS (
			UPDATE repos SET processed = TRUE, processed_at = $2
			WHERE id = $1 AND processed IS NULL
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM repos WHERE id = $1)
	`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, id, r.now().UTC()).Scan(&exists); err != nil {
		return fmt.Errorf("mark repository %d processed: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("mark repository %d processed: %w", id, driven.ErrRepoNotFound)
	}

	return nil
}

// GetByID retrieves a repository by its GitHub ID. Returns nil, nil if the
// repository does not exist.
func (r *RepoRepo) GetByID(ctx context.Context, id int64) (*model.Repository, error) {
	const query = `SELECT ` + repoColumns + ` FROM repos WHERE id = $1`

	rows, err := r.db.Pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", id, err)
	}

	repo, err := pgx.CollectExactlyOneRow(rows, scanRepository)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %d: %w", id, err)
	}

	return &repo, nil
}

// List returns up to limit repositories with the given status, most starred first.
func (r *RepoRepo) List(ctx context.Context, status model.RepoStatus, limit int) ([]model.Repository, error) {
	var where string
	switch status {
	case model.RepoStatusPending:
		where = `WHERE processed IS NULL`
	case model.RepoStatusProcessed:
		where = `WHERE processed`
	}

	query := `SELECT ` + repoColumns + ` FROM repos ` + where + ` ORDER BY stars DESC, id LIMIT $1`

	return r.queryRepos(ctx, query, limit)
}

// Stats counts repositories by processed state and stored pull requests.
func (r *RepoRepo) Stats(ctx context.Context) (model.Stats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM repos),
			(SELECT COUNT(*) FROM repos WHERE processed),
			(SELECT COUNT(*) FROM pull_requests)
	`

	var total, processed, prs int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&total, &processed, &prs); err != nil {
		return model.Stats{}, fmt.Errorf("query stats: %w", err)
	}

	return model.Stats{
		Repositories: int(total),
		Processed:    int(processed),
		Pending:      int(total - processed),
		PullRequests: int(prs),
	}, nil
}

func (r *RepoRepo) queryRepos(ctx context.Context, query string, args ...any) ([]model.Repository, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}

	repos, err := pgx.CollectRows(rows, scanRepository)
	if err != nil {
		return nil, fmt.Errorf("scan repositories: %w", err)
	}
	if repos == nil {
		repos = []model.Repository{}
	}

	return repos, nil
}

func scanRepository(row pgx.CollectableRow) (model.Repository, error) {
	var repo model.Repository
	var processed *bool
	var processedAt *time.Time

	err := row.Scan(
		&repo.ID, &repo.Owner, &repo.Name, &repo.URL, &repo.Stars, &repo.LicenseKey, &repo.Partition,
		&repo.DiscoveredAt, &processed, &processedAt,
	)
	if err != nil {
		return model.Repository{}, err
	}

	repo.Processed = processed != nil && *processed
	if processedAt != nil {
		repo.ProcessedAt = *processedAt
	}

	return repo, nil
}

// repoArrays splits repos into the column arrays consumed by unnestRepos.
func repoArrays(repos []model.Repository) []any {
	ids := make([]int64, len(repos))
	owners := make([]string, len(repos))
	names := make([]string, len(repos))
	urls := make([]string, len(repos))
	stars := make([]int32, len(repos))
	licenses := make([]string, len(repos))
	partitions := make([]string, len(repos))

	for i, repo := range repos {
		ids[i] = repo.ID
		owners[i] = repo.Owner
		names[i] = repo.Name
		urls[i] = repo.URL
		stars[i] = int32(repo.Stars)
		licenses[i] = repo.LicenseKey
		partitions[i] = repo.Partition
	}

	return []any{ids, owners, names, urls, stars, licenses, partitions}
}

// dedupByID keeps the last occurrence of each ID.
func dedupByID(repos []model.Repository) []model.Repository {
	index := make(map[int64]int, len(repos))
	out := make([]model.Repository, 0, len(repos))
	for _, repo := range repos {
		if i, ok := index[repo.ID]; ok {
			out[i] = repo
			continue
		}
		index[repo.ID] = len(out)
		out = append(out, repo)
	}
	return out
}
