package services

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"cn-dashboard/internal/models"
)

// Aggregator derives series, totals and summary statistics for one unit
// and family. It never reorders records: callers pass them sorted by date.
type Aggregator struct {
	unit   models.Unit
	family models.Family
}

func NewAggregator(unit models.Unit, family models.Family) (*Aggregator, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedUnit, unit)
	}
	if !family.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFamily, family)
	}
	return &Aggregator{unit: unit, family: family}, nil
}

func (a *Aggregator) Unit() models.Unit     { return a.unit }
func (a *Aggregator) Family() models.Family { return a.family }

type Aggregation struct {
	Series []models.SeriesPoint     `json:"series"`
	Totals models.CategoryTotals    `json:"totals"`
	Stats  models.SummaryStatistics `json:"stats"`
}

type OverviewAggregation struct {
	Series []models.OverviewPoint   `json:"series"`
	Totals models.OverviewTotals    `json:"totals"`
	Stats  models.SummaryStatistics `json:"stats"`
}

func (a *Aggregator) Aggregate(records []models.DailyReportRecord) (*Aggregation, error) {
	days, err := parseDays(records)
	if err != nil {
		return nil, err
	}

	if err := a.checkFinite(records, a.family); err != nil {
		return nil, err
	}

	series := make([]models.SeriesPoint, 0, len(records))
	var total, approved, rejected, waiting decimal.Decimal
	for i, rec := range records {
		p := models.SeriesPoint{
			Date:     days[i],
			Total:    rec.Value(a.unit, a.family, models.CategoryTotal),
			Approved: rec.Value(a.unit, a.family, models.CategoryApproved),
			Rejected: rec.Value(a.unit, a.family, models.CategoryRejected),
			Waiting:  rec.Value(a.unit, a.family, models.CategoryWaiting),
		}
		total = total.Add(decimal.NewFromFloat(p.Total))
		approved = approved.Add(decimal.NewFromFloat(p.Approved))
		rejected = rejected.Add(decimal.NewFromFloat(p.Rejected))
		waiting = waiting.Add(decimal.NewFromFloat(p.Waiting))
		p.RunningTotal = a.float(total)
		series = append(series, p)
	}

	totals := make([]float64, len(series))
	for i, p := range series {
		totals[i] = p.Total
	}

	return &Aggregation{
		Series: series,
		Totals: models.CategoryTotals{
			Total:    a.float(total),
			Approved: a.float(approved),
			Rejected: a.float(rejected),
			Waiting:  a.float(waiting),
		},
		Stats: summarize(days, totals, total),
	}, nil
}

// Overview compares every CN against the two defect families for the
// aggregator's unit. The aggregator's own family is not used.
func (a *Aggregator) Overview(records []models.DailyReportRecord) (*OverviewAggregation, error) {
	days, err := parseDays(records)
	if err != nil {
		return nil, err
	}

	if err := a.checkFinite(records, models.Families...); err != nil {
		return nil, err
	}

	series := make([]models.OverviewPoint, 0, len(records))
	values := make([]float64, 0, len(records))
	var total, missing, degraded decimal.Decimal
	for i, rec := range records {
		p := models.OverviewPoint{
			Date:     days[i],
			TotalAll: rec.Value(a.unit, models.FamilyAggregate, models.CategoryTotal),
			Missing:  rec.Value(a.unit, models.FamilyMissing, models.CategoryTotal),
			Degraded: rec.Value(a.unit, models.FamilyDegraded, models.CategoryTotal),
		}
		total = total.Add(decimal.NewFromFloat(p.TotalAll))
		missing = missing.Add(decimal.NewFromFloat(p.Missing))
		degraded = degraded.Add(decimal.NewFromFloat(p.Degraded))
		p.RunningTotal = a.float(total)
		series = append(series, p)
		values = append(values, p.TotalAll)
	}

	return &OverviewAggregation{
		Series: series,
		Totals: models.OverviewTotals{
			Total:    a.float(total),
			Missing:  a.float(missing),
			Degraded: a.float(degraded),
		},
		Stats: summarize(days, values, total),
	}, nil
}

// CheckAdditivity returns the indices of records whose total differs from
// approved + rejected + waiting. Records with non-finite counters are
// skipped.
func (a *Aggregator) CheckAdditivity(records []models.DailyReportRecord) []int {
	var bad []int
	for i, rec := range records {
		if !finiteRecord(rec, a.unit, a.family) {
			continue
		}
		parts := decimal.NewFromFloat(rec.Value(a.unit, a.family, models.CategoryApproved)).
			Add(decimal.NewFromFloat(rec.Value(a.unit, a.family, models.CategoryRejected))).
			Add(decimal.NewFromFloat(rec.Value(a.unit, a.family, models.CategoryWaiting)))
		if !parts.Equal(decimal.NewFromFloat(rec.Value(a.unit, a.family, models.CategoryTotal))) {
			bad = append(bad, i)
		}
	}
	return bad
}

func (a *Aggregator) float(d decimal.Decimal) float64 {
	if a.unit == models.UnitCurrency {
		d = d.Round(a.unit.Scale())
	}
	return d.InexactFloat64()
}

// checkFinite fails with every record index holding an infinite or NaN
// counter for the aggregator's unit in the given families. Such values
// cannot be summed as decimals.
func (a *Aggregator) checkFinite(records []models.DailyReportRecord, families ...models.Family) error {
	var bad []int
	for i, rec := range records {
		if !finiteRecord(rec, a.unit, families...) {
			bad = append(bad, i)
		}
	}
	if len(bad) > 0 {
		return &MalformedRecordError{Indices: bad, Reason: "non-finite counter"}
	}
	return nil
}

func finiteRecord(rec models.DailyReportRecord, unit models.Unit, families ...models.Family) bool {
	for _, f := range families {
		for _, c := range models.Categories {
			v := rec.Value(unit, f, c)
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}

// parseDays normalizes every record date, failing with the full list of
// offending indices.
func parseDays(records []models.DailyReportRecord) ([]string, error) {
	days := make([]string, len(records))
	var bad []int
	for i, rec := range records {
		day, err := rec.Day()
		if err != nil {
			bad = append(bad, i)
			continue
		}
		days[i] = models.FormatDay(day)
	}
	if len(bad) > 0 {
		return nil, &MalformedRecordError{Indices: bad}
	}
	return days, nil
}

// summarize computes day count, rounded average and the first maximal and
// minimal days of values.
func summarize(days []string, values []float64, sum decimal.Decimal) models.SummaryStatistics {
	stats := models.SummaryStatistics{Days: len(values)}
	if len(values) == 0 {
		return stats
	}

	// decimal.Round rounds half away from zero.
	stats.Average = sum.Div(decimal.NewFromInt(int64(len(values)))).Round(0).IntPart()

	stats.Max = models.DayValue{Date: days[0], Value: values[0]}
	stats.Min = stats.Max
	for i := 1; i < len(values); i++ {
		if values[i] > stats.Max.Value {
			stats.Max = models.DayValue{Date: days[i], Value: values[i]}
		}
		if values[i] < stats.Min.Value {
			stats.Min = models.DayValue{Date: days[i], Value: values[i]}
		}
	}
	return stats
}
