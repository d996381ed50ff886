package main

import (
	"io/fs"
	"os"
	"path/filepath"

	"swapiapi/db"
	"swapiapi/internal/config"
	"swapiapi/internal/store"
)

func loadEnvFiles() {
	// Do not override environment provided by the runtime (e.g. Docker).
	config.LoadEnvFiles()
}

func databaseURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}
	return "sqlite://swapi.db"
}

// migrationSource picks where goose reads migrations from. A nil fsys means
// the OS filesystem.
type migrationSource struct {
	fsys fs.FS
	dir  string
}

func sourceFor(d store.Dialect) migrationSource {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return migrationSource{dir: v}
	}
	return migrationSource{fsys: db.Migrations, dir: store.MigrationsDir(d)}
}

// createDir is where new migration files are written. Embedded sources map
// back to the checked-in db/ tree.
func createDir(src migrationSource) string {
	if src.fsys == nil {
		return src.dir
	}
	return filepath.Join("db", src.dir)
}
