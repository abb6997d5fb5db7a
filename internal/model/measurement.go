package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the ISO-8601 calendar date format used by the feed, the
// stores and every command line flag.
const DateLayout = "2006-01-02"

// Measurement is one daily fill reading for a dam. (DamID, MeasuredOn) is
// unique.
type Measurement struct {
	ID         int64     `json:"id"`
	DamID      int64     `json:"dam_id"`
	SIHKey     string    `json:"sih_key,omitempty"`
	MeasuredOn time.Time `json:"measured_on"`
	Elevation  float64   `json:"elevation"`
	Capacity   float64   `json:"capacity"`
	FillPct    float64   `json:"fill_pct"`
	CreatedAt  time.Time `json:"created_at"`
}

// Date returns the measurement date formatted as YYYY-MM-DD.
func (m Measurement) Date() string {
	return FormatDate(m.MeasuredOn)
}

// Reading is the same-day measurement triple carried by a feed record.
// Nil fields were absent upstream.
type Reading struct {
	Elevation *float64 `json:"elevation"`
	Capacity  *float64 `json:"capacity"`
	FillPct   *float64 `json:"fill_pct"`
}

// Missing lists the names of absent required fields.
func (r Reading) Missing() []string {
	var missing []string
	if r.Elevation == nil {
		missing = append(missing, "elevation")
	}
	if r.Capacity == nil {
		missing = append(missing, "capacity")
	}
	if r.FillPct == nil {
		missing = append(missing, "fill_pct")
	}
	return missing
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "model: parse date %q", s)
	}
	return t, nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// DateOf truncates t to its calendar date in t's own location and returns
// that date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
