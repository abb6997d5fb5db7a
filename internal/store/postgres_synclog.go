package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/db"
	"github.com/sells-group/damsync/internal/model"
)

// StartSync records the beginning of a sync and returns its log ID.
func (s *PostgresStore) StartSync(ctx context.Context, runID string, kind model.SyncKind, syncDate string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sync_log (run_id, kind, sync_date, status, started_at)
		 VALUES ($1, $2, $3, 'running', now()) RETURNING id`,
		runID, string(kind), syncDate,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "synclog: start %s sync for %s", kind, syncDate)
	}
	return id, nil
}

// CompleteSync marks a sync as complete.
func (s *PostgresStore) CompleteSync(ctx context.Context, id int64, written, skipped int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_log
		 SET status = 'complete', completed_at = now(), rows_written = $1, rows_skipped = $2
		 WHERE id = $3`,
		written, skipped, id,
	)
	return eris.Wrapf(err, "synclog: complete sync %d", id)
}

// FailSync marks a sync as failed. Rows already written are recorded too.
func (s *PostgresStore) FailSync(ctx context.Context, id int64, written, skipped int, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_log
		 SET status = 'failed', completed_at = now(), rows_written = $1, rows_skipped = $2, error = $3
		 WHERE id = $4`,
		written, skipped, errMsg, id,
	)
	return eris.Wrapf(err, "synclog: fail sync %d", id)
}

// ListSyncs returns the most recent sync log entries first.
func (s *PostgresStore) ListSyncs(ctx context.Context, limit int) ([]model.SyncEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, kind, sync_date, status, started_at, completed_at,
		        rows_written, rows_skipped, error
		 FROM sync_log ORDER BY started_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "synclog: list")
	}
	defer rows.Close()

	var entries []model.SyncEntry
	for rows.Next() {
		var e model.SyncEntry
		var kind, status string
		var errStr *string
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.SyncDate, &status, &e.StartedAt,
			&e.CompletedAt, &e.RowsWritten, &e.RowsSkipped, &errStr); err != nil {
			return nil, eris.Wrap(err, "synclog: scan entry")
		}
		e.Kind = model.SyncKind(kind)
		e.Status = model.SyncStatus(status)
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "synclog: list iterate")
}

// LastSuccess returns when the most recent successful sync of kind started,
// or nil if there has never been one.
func (s *PostgresStore) LastSuccess(ctx context.Context, kind model.SyncKind) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT started_at FROM sync_log
		 WHERE kind = $1 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		string(kind),
	).Scan(&t)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "synclog: last success for %s", kind)
	}
	return &t, nil
}
