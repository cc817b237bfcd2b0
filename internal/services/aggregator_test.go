package services

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cn-dashboard/internal/models"
)

type fields = map[string]float64

func sampleRecords() []models.DailyReportRecord {
	return []models.DailyReportRecord{
		models.NewRecord("2025-09-01", fields{
			"countTotal": 10, "countApproved": 6, "countRejected": 3, "countWaiting": 1,
			"count43": 4, "count43Approved": 2, "count43Rejected": 1, "count43Waiting": 1,
			"count42": 6, "count42Approved": 4, "count42Rejected": 2,
			"amountTotal": 100.10, "amountApproved": 60.05, "amountRejected": 40.05,
			"packTotal": 3, "packApproved": 3,
		}),
		models.NewRecord("2025-09-02", fields{
			"countTotal": 25, "countApproved": 20, "countRejected": 5,
			"count43": 15, "count43Approved": 15,
			"count42": 10, "count42Approved": 5, "count42Rejected": 5,
			"amountTotal": 0.20, "amountApproved": 0.20,
		}),
		models.NewRecord("2025-09-03", fields{
			"countTotal": 4, "countWaiting": 4,
			"count43": 1, "count43Waiting": 1,
			"count42": 3, "count42Waiting": 3,
			"amountTotal": 0.10, "amountWaiting": 0.10,
		}),
	}
}

func mustAggregator(t *testing.T, unit models.Unit, family models.Family) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(unit, family)
	require.NoError(t, err)
	return agg
}

func TestNewAggregator_Unsupported(t *testing.T) {
	_, err := NewAggregator("kilogram", models.FamilyAggregate)
	assert.ErrorIs(t, err, ErrUnsupportedUnit)

	_, err = NewAggregator(models.UnitCount, "41")
	assert.ErrorIs(t, err, ErrUnsupportedFamily)
}

func TestAggregate_TotalsMatchSeries(t *testing.T) {
	records := sampleRecords()

	for _, unit := range models.Units {
		for _, family := range models.Families {
			t.Run(string(unit)+"/"+string(family), func(t *testing.T) {
				result, err := mustAggregator(t, unit, family).Aggregate(records)
				require.NoError(t, err)
				require.Len(t, result.Series, len(records))

				var total, approved, rejected, waiting decimal.Decimal
				for _, p := range result.Series {
					total = total.Add(decimal.NewFromFloat(p.Total))
					approved = approved.Add(decimal.NewFromFloat(p.Approved))
					rejected = rejected.Add(decimal.NewFromFloat(p.Rejected))
					waiting = waiting.Add(decimal.NewFromFloat(p.Waiting))
				}
				assert.Equal(t, total.InexactFloat64(), result.Totals.Total)
				assert.Equal(t, approved.InexactFloat64(), result.Totals.Approved)
				assert.Equal(t, rejected.InexactFloat64(), result.Totals.Rejected)
				assert.Equal(t, waiting.InexactFloat64(), result.Totals.Waiting)

				assert.Equal(t, result.Totals.Total, result.Series[len(result.Series)-1].RunningTotal)
			})
		}
	}
}

func TestAggregate_PreservesOrder(t *testing.T) {
	records := sampleRecords()
	records[0], records[2] = records[2], records[0]

	result, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Aggregate(records)
	require.NoError(t, err)

	assert.Equal(t, "2025-09-03", result.Series[0].Date)
	assert.Equal(t, "2025-09-02", result.Series[1].Date)
	assert.Equal(t, "2025-09-01", result.Series[2].Date)
	assert.Equal(t, []float64{4, 29, 39}, []float64{
		result.Series[0].RunningTotal, result.Series[1].RunningTotal, result.Series[2].RunningTotal,
	})
}

func TestAggregate_Stats(t *testing.T) {
	result, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Aggregate(sampleRecords())
	require.NoError(t, err)

	// 39 / 3 = 13
	assert.Equal(t, 3, result.Stats.Days)
	assert.EqualValues(t, 13, result.Stats.Average)
	assert.Equal(t, models.DayValue{Date: "2025-09-02", Value: 25}, result.Stats.Max)
	assert.Equal(t, models.DayValue{Date: "2025-09-03", Value: 4}, result.Stats.Min)

	for _, p := range result.Series {
		assert.GreaterOrEqual(t, result.Stats.Max.Value, p.Total)
		assert.LessOrEqual(t, result.Stats.Min.Value, p.Total)
	}
}

func TestAggregate_AverageRoundsHalfAwayFromZero(t *testing.T) {
	records := []models.DailyReportRecord{
		models.NewRecord("2025-09-01", fields{"countTotal": 1}),
		models.NewRecord("2025-09-02", fields{"countTotal": 2}),
	}

	result, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Aggregate(records)
	require.NoError(t, err)
	assert.EqualValues(t, 2, result.Stats.Average)

	records = append(records, models.NewRecord("2025-09-03", fields{"countTotal": 1}))
	result, err = mustAggregator(t, models.UnitCount, models.FamilyAggregate).Aggregate(records)
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Stats.Average)
}

func TestAggregate_CurrencyIsExact(t *testing.T) {
	result, err := mustAggregator(t, models.UnitCurrency, models.FamilyAggregate).Aggregate(sampleRecords())
	require.NoError(t, err)

	assert.Equal(t, 100.40, result.Totals.Total)
	assert.Equal(t, 0.10, result.Totals.Waiting)
	assert.Equal(t, 100.30, result.Series[1].RunningTotal)
}

func TestAggregate_SingleDayScenario(t *testing.T) {
	records := []models.DailyReportRecord{
		models.NewRecord("2025-09-01", fields{"countTotal": 100, "count43": 60, "count42": 40}),
	}

	overview, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Overview(records)
	require.NoError(t, err)

	assert.Equal(t, models.OverviewTotals{Total: 100, Missing: 60, Degraded: 40}, overview.Totals)
	assert.EqualValues(t, 100, overview.Stats.Average)
	assert.Equal(t, "2025-09-01", overview.Stats.Max.Date)
	assert.Equal(t, "2025-09-01", overview.Stats.Min.Date)
	assert.Equal(t, overview.Stats.Max, overview.Stats.Min)
}

func TestAggregate_Empty(t *testing.T) {
	for _, unit := range models.Units {
		for _, family := range models.Families {
			agg := mustAggregator(t, unit, family)

			result, err := agg.Aggregate(nil)
			require.NoError(t, err)
			assert.Empty(t, result.Series)
			assert.Equal(t, models.CategoryTotals{}, result.Totals)
			assert.Equal(t, models.SummaryStatistics{}, result.Stats)

			overview, err := agg.Overview([]models.DailyReportRecord{})
			require.NoError(t, err)
			assert.Empty(t, overview.Series)
			assert.Equal(t, models.SummaryStatistics{}, overview.Stats)
		}
	}
}

func TestAggregate_TiesResolveToFirstRecord(t *testing.T) {
	records := []models.DailyReportRecord{
		models.NewRecord("2025-09-01", fields{"countTotal": 50}),
		models.NewRecord("2025-09-02", fields{"countTotal": 50}),
	}

	result, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Aggregate(records)
	require.NoError(t, err)

	assert.Equal(t, "2025-09-01", result.Stats.Max.Date)
	assert.Equal(t, "2025-09-01", result.Stats.Min.Date)
}

func TestAggregate_MissingKeyIsZero(t *testing.T) {
	records := []models.DailyReportRecord{
		models.NewRecord("2025-09-01", fields{"countTotal": 10, "count43": 10}),
	}

	overview, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Overview(records)
	require.NoError(t, err)
	assert.Zero(t, overview.Totals.Degraded)
	assert.Zero(t, overview.Series[0].Degraded)

	detail, err := mustAggregator(t, models.UnitCount, models.FamilyDegraded).Aggregate(records)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTotals{}, detail.Totals)
}

func TestAggregate_UnitSwitchIsDeterministic(t *testing.T) {
	records := sampleRecords()

	first, err := mustAggregator(t, models.UnitCount, models.FamilyMissing).Aggregate(records)
	require.NoError(t, err)
	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)

	currency, err := mustAggregator(t, models.UnitCurrency, models.FamilyMissing).Aggregate(records)
	require.NoError(t, err)
	assert.NotEqual(t, first.Totals, currency.Totals)

	again, err := mustAggregator(t, models.UnitCount, models.FamilyMissing).Aggregate(records)
	require.NoError(t, err)
	againJSON, err := json.Marshal(again)
	require.NoError(t, err)

	assert.Equal(t, string(firstJSON), string(againJSON))
}

func TestAggregate_MalformedDate(t *testing.T) {
	records := sampleRecords()
	records[1].Date = "not a date"
	records = append(records, models.DailyReportRecord{Date: "31/12/2025"})

	_, err := mustAggregator(t, models.UnitCount, models.FamilyAggregate).Aggregate(records)

	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, []int{1, 3}, malformed.Indices)

	_, err = mustAggregator(t, models.UnitCount, models.FamilyAggregate).Overview(records)
	assert.ErrorAs(t, err, &malformed)
}

func TestAggregate_NonFiniteCounter(t *testing.T) {
	records := sampleRecords()
	records = append(records,
		models.NewRecord("2025-09-04", fields{"countTotal": math.Inf(1)}),
		models.NewRecord("2025-09-05", fields{"count42Rejected": math.NaN()}),
	)

	var malformed *MalformedRecordError
	agg := mustAggregator(t, models.UnitCount, models.FamilyAggregate)
	require.NotPanics(t, func() {
		_, err := agg.Aggregate(records)
		require.ErrorAs(t, err, &malformed)
	})
	assert.Equal(t, []int{3}, malformed.Indices)
	assert.ErrorContains(t, malformed, "non-finite counter")

	// The degraded family is only part of the overview.
	require.NotPanics(t, func() {
		_, err := agg.Overview(records)
		require.ErrorAs(t, err, &malformed)
	})
	assert.Equal(t, []int{3, 4}, malformed.Indices)

	// Other units are unaffected.
	_, err := mustAggregator(t, models.UnitCurrency, models.FamilyAggregate).Aggregate(records)
	assert.NoError(t, err)

	assert.Empty(t, agg.CheckAdditivity(records[3:]))
}

func TestAggregate_DoesNotModifyRecords(t *testing.T) {
	records := sampleRecords()
	before, err := json.Marshal(records)
	require.NoError(t, err)

	_, err = mustAggregator(t, models.UnitPack, models.FamilyAggregate).Aggregate(records)
	require.NoError(t, err)

	after, err := json.Marshal(records)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestCheckAdditivity(t *testing.T) {
	records := sampleRecords()
	records = append(records, models.NewRecord("2025-09-04", fields{"countTotal": 5, "countApproved": 1}))

	bad := mustAggregator(t, models.UnitCount, models.FamilyAggregate).CheckAdditivity(records)
	assert.Equal(t, []int{3}, bad)

	// 100.10 == 60.05 + 40.05 exactly in decimal arithmetic.
	assert.Empty(t, mustAggregator(t, models.UnitCurrency, models.FamilyAggregate).CheckAdditivity(records[:3]))
}

func BenchmarkAggregate(b *testing.B) {
	records := make([]models.DailyReportRecord, 0, 365)
	day := models.NewRecord("2025-01-01", fields{"countTotal": 10, "countApproved": 7, "countRejected": 3})
	for i := 0; i < 365; i++ {
		records = append(records, day)
	}
	agg, err := NewAggregator(models.UnitCount, models.FamilyAggregate)
	if err != nil {
		b.Fatal(err)
	}

	for b.Loop() {
		if _, err := agg.Aggregate(records); err != nil {
			b.Fatal(err)
		}
	}
}
