package models

// SeriesPoint is one day of a single-family detail series.
type SeriesPoint struct {
	Date         string  `json:"date"`
	Total        float64 `json:"total"`
	Approved     float64 `json:"approved"`
	Rejected     float64 `json:"rejected"`
	Waiting      float64 `json:"waiting"`
	RunningTotal float64 `json:"running_total"`
}

// OverviewPoint is one day of the defect-family overview series.
type OverviewPoint struct {
	Date         string  `json:"date"`
	TotalAll     float64 `json:"total_all"`
	Missing      float64 `json:"missing"`
	Degraded     float64 `json:"degraded"`
	RunningTotal float64 `json:"running_total"`
}

type CategoryTotals struct {
	Total    float64 `json:"total"`
	Approved float64 `json:"approved"`
	Rejected float64 `json:"rejected"`
	Waiting  float64 `json:"waiting"`
}

type OverviewTotals struct {
	Total    float64 `json:"total"`
	Missing  float64 `json:"missing"`
	Degraded float64 `json:"degraded"`
}

// DayValue is a value attributed to one day. Date is empty when there is
// no such day.
type DayValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type SummaryStatistics struct {
	Days    int      `json:"days"`
	Average int64    `json:"average"`
	Max     DayValue `json:"max"`
	Min     DayValue `json:"min"`
}

// Slice is one segment of a proportion chart.
type Slice struct {
	Label     string  `json:"label"`
	Value     float64 `json:"value"`
	ColorRole string  `json:"color_role"`
	Percent   string  `json:"percent"`
}
