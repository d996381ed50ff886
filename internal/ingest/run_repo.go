package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"swapiapi/internal/entity"
	"swapiapi/internal/store"
)

type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) (int64, error)
	UpdateRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// RunRepo stores import runs in the import_runs table.
type RunRepo struct {
	db *store.DB
}

func NewRunRepo(db *store.DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, run *Run) (int64, error) {
	const q = `
		INSERT INTO import_runs (kind, status, started_at)
		VALUES (?, ?, ?)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, r.db.Rebind(q), string(run.Kind), run.Status, run.StartedAt).Scan(&id)
	return id, err
}

func (r *RunRepo) UpdateRun(ctx context.Context, run *Run) error {
	const q = `
		UPDATE import_runs SET
			finished_at = ?,
			status = ?,
			fetched = ?,
			upserted = ?,
			linked = ?,
			deferred = ?,
			failed = ?,
			error = ?,
			record_errors = ?
		WHERE id = ?`

	recordErrors := run.RecordErrors
	if recordErrors == nil {
		recordErrors = []RecordError{}
	}
	encoded, err := json.Marshal(recordErrors)
	if err != nil {
		return fmt.Errorf("encode record errors: %w", err)
	}

	var finished sql.NullTime
	if run.FinishedAt != nil {
		finished = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, r.db.Rebind(q),
		finished, run.Status, run.Fetched, run.Upserted, run.Linked, run.Deferred, run.Failed,
		run.Error, string(encoded), run.ID)
	return err
}

// ListRuns returns the most recent runs first.
func (r *RunRepo) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	const q = `
		SELECT id, kind, status, started_at, finished_at, fetched, upserted, linked, deferred, failed, error, record_errors
		FROM import_runs
		ORDER BY id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run          Run
			kind         string
			finished     sql.NullTime
			recordErrors string
		)
		if err := rows.Scan(&run.ID, &kind, &run.Status, &run.StartedAt, &finished,
			&run.Fetched, &run.Upserted, &run.Linked, &run.Deferred, &run.Failed,
			&run.Error, &recordErrors); err != nil {
			return nil, err
		}
		run.Kind = entity.Kind(kind)
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		if err := json.Unmarshal([]byte(recordErrors), &run.RecordErrors); err != nil {
			return nil, fmt.Errorf("decode record errors for run %d: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
