package models

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DayLayout = "2006-01-02"

type fieldIndex struct {
	unit, family, category int
}

// counters is indexed by unit, family, category ordinals.
type counters [4][3][4]float64

var (
	fieldKeys  [4][3][4]string
	keyToField = make(map[string]fieldIndex, 48)
)

func init() {
	for _, u := range Units {
		ui, _ := u.index()
		for _, f := range Families {
			fi, _ := f.index()
			for _, c := range Categories {
				ci, _ := c.index()
				key := buildFieldKey(u, f, c)
				fieldKeys[ui][fi][ci] = key
				keyToField[key] = fieldIndex{ui, fi, ci}
			}
		}
	}
}

// buildFieldKey spells the upstream field name, e.g. countTotal,
// pack43Approved, amount42.
func buildFieldKey(u Unit, f Family, c Category) string {
	key := u.keyPrefix() + f.Code()
	switch c {
	case CategoryTotal:
		if f == FamilyAggregate {
			key += "Total"
		}
	case CategoryApproved:
		key += "Approved"
	case CategoryRejected:
		key += "Rejected"
	case CategoryWaiting:
		key += "Waiting"
	}
	return key
}

// FieldKey returns the upstream field name for a counter.
func FieldKey(u Unit, f Family, c Category) (string, error) {
	ui, ok := u.index()
	if !ok {
		return "", fmt.Errorf("unknown unit %q", u)
	}
	fi, ok := f.index()
	if !ok {
		return "", fmt.Errorf("unknown family %q", f)
	}
	ci, ok := c.index()
	if !ok {
		return "", fmt.Errorf("unknown category %q", c)
	}
	return fieldKeys[ui][fi][ci], nil
}

// DailyReportRecord is one delivery day of CN counters. Counters absent
// from the upstream payload read as zero.
type DailyReportRecord struct {
	Date   string
	values counters
}

// NewRecord builds a record from upstream field names. Unknown keys are
// ignored.
func NewRecord(date string, fields map[string]float64) DailyReportRecord {
	rec := DailyReportRecord{Date: date}
	for key, v := range fields {
		if idx, ok := keyToField[key]; ok {
			rec.values[idx.unit][idx.family][idx.category] = v
		}
	}
	return rec
}

func (r DailyReportRecord) Value(u Unit, f Family, c Category) float64 {
	ui, ok1 := u.index()
	fi, ok2 := f.index()
	ci, ok3 := c.index()
	if !ok1 || !ok2 || !ok3 {
		return 0
	}
	return r.values[ui][fi][ci]
}

// Day parses the record date.
func (r DailyReportRecord) Day() (time.Time, error) {
	return ParseDay(r.Date)
}

func (r *DailyReportRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = DailyReportRecord{}
	if date, ok := raw["date"]; ok {
		if err := json.Unmarshal(date, &r.Date); err != nil {
			return fmt.Errorf("date: %w", err)
		}
	}

	for key, value := range raw {
		idx, ok := keyToField[key]
		if !ok || string(value) == "null" {
			continue
		}
		var d decimal.Decimal
		if err := d.UnmarshalJSON(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		f := d.InexactFloat64()
		if math.IsInf(f, 0) {
			return fmt.Errorf("%s: value %s out of range", key, value)
		}
		r.values[idx.unit][idx.family][idx.category] = f
	}
	return nil
}

func (r DailyReportRecord) MarshalJSON() ([]byte, error) {
	out := map[string]any{"date": r.Date}
	for ui := range r.values {
		for fi := range r.values[ui] {
			for ci, v := range r.values[ui][fi] {
				if v != 0 {
					out[fieldKeys[ui][fi][ci]] = v
				}
			}
		}
	}
	return json.Marshal(out)
}

// ParseDay accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar day at UTC midnight.
func ParseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DayLayout, value); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", value)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// SortByDate orders records by date ascending. Equal dates keep their
// input order; unparseable dates move to the end.
func SortByDate(records []DailyReportRecord) {
	slices.SortStableFunc(records, func(a, b DailyReportRecord) int {
		da, errA := a.Day()
		db, errB := b.Day()
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return da.Compare(db)
	})
}
