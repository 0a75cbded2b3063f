package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

func makePR(id, repoID int64, number int) model.PullRequest {
	return model.PullRequest{
		ID:           id,
		RepoID:       repoID,
		Number:       number,
		URL:          "https://github.com/octocat/hello-world/pull/1",
		Additions:    400,
		Deletions:    150,
		ChangedFiles: 6,
		HeadSHA:      "abc123",
		MergedAt:     time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC),
		ValidatedAt:  time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
	}
}

func seedRepo(t *testing.T, db *DB, id int64) {
	t.Helper()
	_, err := newTestRepoRepo(db).InsertNew(context.Background(), []model.Repository{makeRepo(id, "octocat", "hello-world", "mit")})
	require.NoError(t, err)
}

func TestPRRepo_Upsert(t *testing.T) {
	db := setupTestDB(t)
	seedRepo(t, db, 1)
	repo := NewPRRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []model.PullRequest{makePR(100, 1, 7)}))

	got, err := repo.ListByRepo(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, int64(100), got[0].ID)
	assert.Equal(t, int64(1), got[0].RepoID)
	assert.Equal(t, 7, got[0].Number)
	assert.Equal(t, 400, got[0].Additions)
	assert.Equal(t, 150, got[0].Deletions)
	assert.Equal(t, 6, got[0].ChangedFiles)
	assert.Equal(t, "abc123", got[0].HeadSHA)
	assert.Equal(t, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC), got[0].MergedAt)
}

func TestPRRepo_Upsert_NoDuplicates(t *testing.T) {
	db := setupTestDB(t)
	seedRepo(t, db, 1)
	repo := NewPRRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, []model.PullRequest{makePR(100, 1, 7)}))

	revalidated := makePR(100, 1, 7)
	revalidated.Additions = 900
	require.NoError(t, repo.Upsert(ctx, []model.PullRequest{revalidated}))

	got, err := repo.ListByRepo(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 900, got[0].Additions)
}

func TestPRRepo_Upsert_UnknownRepo(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPRRepo(db)

	err := repo.Upsert(context.Background(), []model.PullRequest{makePR(100, 999, 7)})

	assert.ErrorIs(t, err, driven.ErrUnknownRepo)

	all, listErr := repo.ListAll(context.Background(), 10)
	require.NoError(t, listErr)
	assert.Empty(t, all)
}

func TestPRRepo_ListAll(t *testing.T) {
	db := setupTestDB(t)
	seedRepo(t, db, 1)
	seedRepo(t, db, 2)
	repo := NewPRRepo(db)
	ctx := context.Background()

	older := makePR(100, 1, 7)
	newer := makePR(200, 2, 3)
	newer.ValidatedAt = older.ValidatedAt.Add(time.Hour)
	require.NoError(t, repo.Upsert(ctx, []model.PullRequest{older, newer}))

	all, err := repo.ListAll(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(200), all[0].ID, "most recently validated first")

	limited, err := repo.ListAll(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
