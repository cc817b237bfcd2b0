package services

import (
	"github.com/shopspring/decimal"

	"cn-dashboard/internal/models"
)

const (
	ColorSuccess = "success"
	ColorDanger  = "danger"
	ColorWarning = "warning"
	ColorPrimary = "primary"
	ColorInfo    = "info"
)

var hundred = decimal.NewFromInt(100)

// Breakdown splits single-family totals into approved, rejected and waiting
// slices. Zero categories are left out.
func Breakdown(totals models.CategoryTotals) []models.Slice {
	return buildSlices(
		models.Slice{Label: string(models.CategoryApproved), Value: totals.Approved, ColorRole: ColorSuccess},
		models.Slice{Label: string(models.CategoryRejected), Value: totals.Rejected, ColorRole: ColorDanger},
		models.Slice{Label: string(models.CategoryWaiting), Value: totals.Waiting, ColorRole: ColorWarning},
	)
}

// OverviewBreakdown splits overview totals into the two defect families.
func OverviewBreakdown(totals models.OverviewTotals) []models.Slice {
	return buildSlices(
		models.Slice{Label: string(models.FamilyMissing), Value: totals.Missing, ColorRole: ColorPrimary},
		models.Slice{Label: string(models.FamilyDegraded), Value: totals.Degraded, ColorRole: ColorInfo},
	)
}

// PercentOf formats value as a percentage of grandTotal with two decimals.
// A zero grand total yields "0".
func PercentOf(value, grandTotal float64) string {
	if grandTotal == 0 {
		return "0"
	}
	return decimal.NewFromFloat(value).
		Div(decimal.NewFromFloat(grandTotal)).
		Mul(hundred).
		StringFixed(2)
}

func buildSlices(candidates ...models.Slice) []models.Slice {
	var grand float64
	out := make([]models.Slice, 0, len(candidates))
	for _, s := range candidates {
		if s.Value > 0 {
			grand += s.Value
			out = append(out, s)
		}
	}
	for i := range out {
		out[i].Percent = PercentOf(out[i].Value, grand)
	}
	return out
}
