package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive pair of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: truncateDay(start), End: truncateDay(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, FormatDay(r.End), FormatDay(r.Start))
	}
	return r, nil
}

// ParseDateRange builds a range from two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDay(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start: %v", ErrInvalidRange, err)
	}
	e, err := ParseDay(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end: %v", ErrInvalidRange, err)
	}
	return NewDateRange(s, e)
}

func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

func (r DateRange) Contains(day time.Time) bool {
	day = truncateDay(day)
	return !day.Before(r.Start) && !day.After(r.End)
}

func (r DateRange) Equal(other DateRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

func (r DateRange) String() string {
	return FormatDay(r.Start) + ".." + FormatDay(r.End)
}

type dateRangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (r DateRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(dateRangeJSON{Start: FormatDay(r.Start), End: FormatDay(r.End)})
}

func (r *DateRange) UnmarshalJSON(data []byte) error {
	var raw dateRangeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDateRange(raw.Start, raw.End)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
