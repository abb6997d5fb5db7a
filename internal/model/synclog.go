package model

import "time"

// SyncKind identifies what a sync log entry covers.
type SyncKind string

// Sync kinds recorded in the sync log.
const (
	SyncKindCatalog     SyncKind = "catalog"
	SyncKindMeasurement SyncKind = "measurement"
)

// SyncStatus is the state of one sync log entry.
type SyncStatus string

const (
	SyncStatusRunning  SyncStatus = "running"
	SyncStatusComplete SyncStatus = "complete"
	SyncStatusFailed   SyncStatus = "failed"
)

// SyncEntry is one row of the sync log. Measurement syncs write one entry
// per day; catalog syncs write one entry per run.
type SyncEntry struct {
	ID          int64      `json:"id"`
	RunID       string     `json:"run_id"`
	Kind        SyncKind   `json:"kind"`
	SyncDate    string     `json:"sync_date"`
	Status      SyncStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RowsWritten int        `json:"rows_written"`
	RowsSkipped int        `json:"rows_skipped"`
	Error       string     `json:"error,omitempty"`
}
