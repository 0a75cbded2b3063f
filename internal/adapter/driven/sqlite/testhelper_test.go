package sqlite

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prharvest/internal/domain/model"
)

// setupTestDB opens a named shared in-memory database for one test. The name
// comes from t.Name() so parallel tests never share state.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	// In-memory databases have no WAL; journal_mode is left out.
	dsn := "file:" + url.PathEscape(t.Name()) + "?mode=memory&cache=shared" +
		"&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

	writer, err := openPool(ctx, dsn, writerConns)
	require.NoError(t, err, "open test writer")

	reader, err := openPool(ctx, dsn, readerConns)
	if err != nil {
		_ = writer.Close()
		require.NoError(t, err, "open test reader")
	}

	db := &DB{Writer: writer, Reader: reader}
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer), "run migrations")

	return db
}

// fixedClock returns a clock that advances one second per call, so rows
// inserted by successive calls get distinct, ordered timestamps.
func fixedClock() func() time.Time {
	now := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

// newTestRepoRepo returns a RepoRepo with a deterministic clock.
func newTestRepoRepo(db *DB) *RepoRepo {
	r := NewRepoRepo(db)
	r.now = fixedClock()
	return r
}

func makeRepo(id int64, owner, name, license string) model.Repository {
	return model.Repository{
		ID:         id,
		Owner:      owner,
		Name:       name,
		URL:        "https://github.com/" + owner + "/" + name,
		Stars:      1000 + int(id),
		LicenseKey: license,
		Partition:  "Go",
	}
}
