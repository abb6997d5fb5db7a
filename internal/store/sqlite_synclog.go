package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
)

func (s *SQLiteStore) StartSync(ctx context.Context, runID string, kind model.SyncKind, syncDate string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (run_id, kind, sync_date, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(kind), syncDate, string(model.SyncStatusRunning), time.Now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "synclog: start %s sync for %s", kind, syncDate)
	}
	id, err := res.LastInsertId()
	return id, eris.Wrap(err, "synclog: sync id")
}

func (s *SQLiteStore) CompleteSync(ctx context.Context, id int64, written, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = ?, completed_at = ?, rows_written = ?, rows_skipped = ? WHERE id = ?`,
		string(model.SyncStatusComplete), time.Now().UTC(), written, skipped, id,
	)
	if err != nil {
		return eris.Wrapf(err, "synclog: complete sync %d", id)
	}
	return checkRowsAffected(res, "sync", syncLabel(id))
}

func (s *SQLiteStore) FailSync(ctx context.Context, id int64, written, skipped int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = ?, completed_at = ?, rows_written = ?, rows_skipped = ?, error = ? WHERE id = ?`,
		string(model.SyncStatusFailed), time.Now().UTC(), written, skipped, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "synclog: fail sync %d", id)
	}
	return checkRowsAffected(res, "sync", syncLabel(id))
}

func (s *SQLiteStore) ListSyncs(ctx context.Context, limit int) ([]model.SyncEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, kind, sync_date, status, started_at, completed_at,
		        rows_written, rows_skipped, error
		 FROM sync_log ORDER BY started_at DESC, id DESC LIMIT ?`,
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
		var completedAt sql.NullTime
		var errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.SyncDate, &status, &e.StartedAt,
			&completedAt, &e.RowsWritten, &e.RowsSkipped, &errStr); err != nil {
			return nil, eris.Wrap(err, "synclog: scan entry")
		}
		e.Kind = model.SyncKind(kind)
		e.Status = model.SyncStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		e.Error = errStr.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "synclog: list iterate")
}

func (s *SQLiteStore) LastSuccess(ctx context.Context, kind model.SyncKind) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at FROM sync_log
		 WHERE kind = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		string(kind), string(model.SyncStatusComplete),
	).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "synclog: last success for %s", kind)
	}
	return &t, nil
}

func syncLabel(id int64) string {
	return "#" + strconv.FormatInt(id, 10)
}
