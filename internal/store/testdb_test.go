package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testBackend struct {
	name string
	open func(t *testing.T) *DB
}

// testBackends always includes SQLite. Postgres joins when
// TEST_DATABASE_URL points at a disposable database.
func testBackends(t *testing.T) []testBackend {
	backends := []testBackend{{name: "sqlite", open: openSQLiteTestDB}}
	if os.Getenv("TEST_DATABASE_URL") != "" {
		backends = append(backends, testBackend{name: "postgres", open: openPostgresTestDB})
	}
	return backends
}

func openSQLiteTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, zerolog.Nop()))
	return db
}

func openPostgresTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, os.Getenv("TEST_DATABASE_URL"))
	if err != nil {
		t.Skipf("Skipping test: cannot connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, zerolog.Nop()))
	_, err = db.ExecContext(ctx, `TRUNCATE pending_links, film_starships, character_films, characters, films, starships, import_runs RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}
