package model

import "time"

// SyncOutcome reports one day of a measurement sync: the records written and
// the duplicates skipped, both in feed order. Err is set when the day did not
// complete.
type SyncOutcome struct {
	RunID   string        `json:"run_id"`
	Date    string        `json:"date"`
	Written []Measurement `json:"written"`
	Skipped []string      `json:"skipped"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
}

// NewSyncOutcome returns an empty outcome for the given run and date.
func NewSyncOutcome(runID string, date time.Time) SyncOutcome {
	return SyncOutcome{
		RunID:   runID,
		Date:    FormatDate(date),
		Written: []Measurement{},
		Skipped: []string{},
	}
}

// Fail records err as the reason the day stopped.
func (o *SyncOutcome) Fail(err error) {
	o.Err = err
	if err != nil {
		o.Error = err.Error()
	}
}

// Failed reports whether the day stopped early.
func (o SyncOutcome) Failed() bool {
	return o.Err != nil
}

// CatalogOutcome reports a catalog sync. Updated records are tracked
// separately from created ones.
type CatalogOutcome struct {
	RunID   string   `json:"run_id"`
	Date    string   `json:"date"`
	Created []Dam    `json:"created"`
	Updated []Dam    `json:"updated"`
	Skipped []string `json:"skipped"`
}

// NewCatalogOutcome returns an empty catalog outcome.
func NewCatalogOutcome() CatalogOutcome {
	return CatalogOutcome{
		Created: []Dam{},
		Updated: []Dam{},
		Skipped: []string{},
	}
}
