// Package monitoring watches sync health: it summarizes the sync log, raises
// alerts for failed or stale syncs and exposes Prometheus metrics.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/store"
)

// KindStats counts sync log entries of one kind within the lookback window.
type KindStats struct {
	Total       int        `json:"total"`
	Complete    int        `json:"complete"`
	Failed      int        `json:"failed"`
	Running     int        `json:"running"`
	RowsWritten int        `json:"rows_written"`
	RowsSkipped int        `json:"rows_skipped"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
}

// MetricsSnapshot holds a point-in-time view of sync health.
type MetricsSnapshot struct {
	Catalog     KindStats `json:"catalog"`
	Measurement KindStats `json:"measurement"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Kind returns the stats for the given sync kind.
func (s *MetricsSnapshot) Kind(k model.SyncKind) *KindStats {
	if k == model.SyncKindCatalog {
		return &s.Catalog
	}
	return &s.Measurement
}

// collectLimit caps how many sync log rows one snapshot reads.
const collectLimit = 10000

// Collector gathers metrics from the sync log.
type Collector struct {
	syncLog store.SyncLogStore
	now     func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(syncLog store.SyncLogStore) *Collector {
	return &Collector{
		syncLog: syncLog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Collect gathers a snapshot of sync activity over the given lookback window.
// Last-success times are read regardless of the window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	entries, err := c.syncLog.ListSyncs(ctx, collectLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list sync entries")
	}

	// Entries are newest first, so the first failure seen is the latest.
	for _, e := range entries {
		if e.StartedAt.Before(cutoff) {
			continue
		}
		ks := snap.Kind(e.Kind)
		ks.Total++
		ks.RowsWritten += e.RowsWritten
		ks.RowsSkipped += e.RowsSkipped
		switch e.Status {
		case model.SyncStatusComplete:
			ks.Complete++
		case model.SyncStatusFailed:
			ks.Failed++
			if ks.LastFailure == nil {
				started := e.StartedAt
				ks.LastFailure = &started
				ks.LastError = e.Error
			}
		case model.SyncStatusRunning:
			ks.Running++
		}
	}

	for _, kind := range []model.SyncKind{model.SyncKindCatalog, model.SyncKindMeasurement} {
		last, err := c.syncLog.LastSuccess(ctx, kind)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: last %s success", kind)
		}
		snap.Kind(kind).LastSuccess = last
	}

	return snap, nil
}
