//go:build integration_pg

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
	"github.com/ericfisherdev/prharvest/internal/domain/port/driven"
)

// startPostgres runs a throwaway Postgres container and returns its DSN.
func startPostgres(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "prharvest",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/prharvest?sslmode=disable", host, mapped.Port())
}

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var db *DB
	var err error
	dsn := startPostgres(t)
	// The ready log line is printed once by the init server before the real start.
	require.Eventually(t, func() bool {
		db, err = Open(ctx, Config{URL: dsn, MaxConns: 4})
		return err == nil
	}, 30*time.Second, 500*time.Millisecond, "open postgres")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db), "migrations are idempotent")

	return db
}

func makeRepo(id int64, name string) model.Repository {
	return model.Repository{
		ID:         id,
		Owner:      "octo",
		Name:       name,
		URL:        "https://github.com/octo/" + name,
		Stars:      1000 + int(id),
		LicenseKey: "mit",
		Partition:  "Go",
	}
}

func TestPostgresStores_Integration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	repos := NewRepoRepo(db)
	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	repos.now = func() time.Time {
		base = base.Add(time.Second)
		return base
	}
	prs := NewPRRepo(db)

	t.Run("insert new counts only new rows", func(t *testing.T) {
		n, err := repos.InsertNew(ctx, []model.Repository{makeRepo(1, "a"), makeRepo(2, "b"), makeRepo(2, "b")})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		renamed := makeRepo(1, "renamed")
		n, err = repos.InsertNew(ctx, []model.Repository{renamed, makeRepo(3, "c")})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := repos.GetByID(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "a", got.Name, "insert-new never overwrites")
	})

	t.Run("mark processed and pending order", func(t *testing.T) {
		require.NoError(t, repos.MarkProcessed(ctx, 2))
		require.NoError(t, repos.MarkProcessed(ctx, 2), "marking twice is a no-op")
		assert.ErrorIs(t, repos.MarkProcessed(ctx, 999), driven.ErrRepoNotFound)

		pending, err := repos.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, int64(1), pending[0].ID)
		assert.Equal(t, int64(3), pending[1].ID)
	})

	t.Run("upsert preserves processed flag", func(t *testing.T) {
		updated := makeRepo(2, "b-renamed")
		updated.Stars = 9
		n, err := repos.Upsert(ctx, []model.Repository{updated, updated})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := repos.GetByID(ctx, 2)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "b-renamed", got.Name)
		assert.Equal(t, 9, got.Stars)
		assert.True(t, got.Processed)
	})

	t.Run("pull request upsert", func(t *testing.T) {
		pr := model.PullRequest{
			ID: 500, RepoID: 1, Number: 7, URL: "https://github.com/octo/a/pull/7",
			Additions: 400, Deletions: 200, ChangedFiles: 6, HeadSHA: "abc",
			MergedAt: base, ValidatedAt: base,
		}
		require.NoError(t, prs.Upsert(ctx, []model.PullRequest{pr}))
		require.NoError(t, prs.Upsert(ctx, []model.PullRequest{pr}))

		got, err := prs.ListByRepo(ctx, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 600, got[0].ChangedLines())
		assert.True(t, got[0].MergedAt.Equal(base))

		orphan := pr
		orphan.ID = 501
		orphan.RepoID = 424242
		assert.ErrorIs(t, prs.Upsert(ctx, []model.PullRequest{orphan}), driven.ErrUnknownRepo)
	})

	t.Run("stats", func(t *testing.T) {
		s, err := repos.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.Stats{Repositories: 3, Processed: 1, Pending: 2, PullRequests: 1}, s)
	})
}
