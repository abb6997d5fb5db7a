package damsync

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
)

var (
	// ErrInvalidDate is returned when a start date is blank or not YYYY-MM-DD.
	ErrInvalidDate = eris.New("damsync: invalid date")
	// ErrInvalidRange is returned when the start date is after the end date.
	ErrInvalidRange = eris.New("damsync: start date after end date")
)

// DateRange is an inclusive range of calendar dates at UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseRange parses a start and end date. A blank or unparsable end date
// means the range covers only the start date.
func ParseRange(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := model.ParseDate(end)
	if err != nil {
		e = s
	}
	if s.After(e) {
		return DateRange{}, eris.Wrapf(ErrInvalidRange, "damsync: %s > %s", model.FormatDate(s), model.FormatDate(e))
	}
	return DateRange{Start: s, End: e}, nil
}

// ParseDay parses a single YYYY-MM-DD date.
func ParseDay(date string) (time.Time, error) {
	if strings.TrimSpace(date) == "" {
		return time.Time{}, eris.Wrap(ErrInvalidDate, "damsync: date is blank")
	}
	d, err := model.ParseDate(date)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidDate, "damsync: %q is not YYYY-MM-DD", date)
	}
	return d, nil
}

// Days returns every date in the range in ascending order.
func (r DateRange) Days() []time.Time {
	var days []time.Time
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Len is the number of days in the range.
func (r DateRange) Len() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) String() string {
	return model.FormatDate(r.Start) + ".." + model.FormatDate(r.End)
}
