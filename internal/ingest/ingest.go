package ingest

import (
	"time"

	"swapiapi/internal/entity"
)

const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// RecordError describes one record that could not be mapped, stored or
// linked. Key is the natural key, or "#<index>" when none could be derived.
type RecordError struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

// Summary is the outcome of one ImportAll call.
type Summary struct {
	Kind     entity.Kind   `json:"kind"`
	Fetched  int           `json:"fetched"`
	Count    int           `json:"count"`
	Linked   int           `json:"linked"`
	Deferred int           `json:"deferred"`
	Resolved int           `json:"resolved"`
	Errors   []RecordError `json:"errors"`
}

// Run is the bookkeeping row written for every import.
type Run struct {
	ID           int64         `json:"id"`
	Kind         entity.Kind   `json:"kind"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at"`
	Fetched      int           `json:"fetched"`
	Upserted     int           `json:"upserted"`
	Linked       int           `json:"linked"`
	Deferred     int           `json:"deferred"`
	Failed       int           `json:"failed"`
	Error        string        `json:"error"`
	RecordErrors []RecordError `json:"record_errors"`
}
