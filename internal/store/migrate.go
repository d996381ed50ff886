package store

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"swapiapi/db"
)

// MigrationsDir returns the directory inside db.Migrations holding the
// migrations for the given dialect.
func MigrationsDir(d Dialect) string {
	if d == DialectSQLite {
		return "migrations/sqlite"
	}
	return "migrations/postgres"
}

// GooseDialect maps a Dialect to the name goose expects.
func GooseDialect(d Dialect) string {
	if d == DialectSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Migrate applies every pending embedded migration.
func Migrate(ctx context.Context, d *DB, logger zerolog.Logger) error {
	goose.SetBaseFS(db.Migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{logger: logger})

	if err := goose.SetDialect(GooseDialect(d.Dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.DB, MigrationsDir(d.Dialect)); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog at debug level.
type gooseLogger struct {
	logger zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Str("component", "goose").Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Fatal().Str("component", "goose").Msgf(format, v...)
}
