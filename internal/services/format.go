package services

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cn-dashboard/internal/models"
)

const placeholder = "-"

// Formatter renders values for display using locale digit grouping.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter(locale string) *Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Formatter{printer: message.NewPrinter(tag)}
}

// Value prints currency with two decimals and every other unit as a whole
// number.
func (f *Formatter) Value(unit models.Unit, v float64) string {
	if unit == models.UnitCurrency {
		return f.printer.Sprintf("%.2f", v)
	}
	return f.printer.Sprintf("%d", int64(math.Round(v)))
}

func (f *Formatter) Day(date string) string {
	if date == "" {
		return placeholder
	}
	return date
}

// Summary is the display form of summary statistics.
type Summary struct {
	Total   string `json:"total"`
	Average string `json:"average"`
	Max     string `json:"max"`
	MaxDate string `json:"max_date"`
	Min     string `json:"min"`
	MinDate string `json:"min_date"`
	Days    int    `json:"days"`
}

func (f *Formatter) Summary(unit models.Unit, total float64, stats models.SummaryStatistics) Summary {
	return Summary{
		Total:   f.Value(unit, total),
		Average: f.Value(unit, float64(stats.Average)),
		Max:     f.Value(unit, stats.Max.Value),
		MaxDate: f.Day(stats.Max.Date),
		Min:     f.Value(unit, stats.Min.Value),
		MinDate: f.Day(stats.Min.Date),
		Days:    stats.Days,
	}
}
