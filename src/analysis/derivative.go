package analysis

import (
	"math"

	"serialpha/src/models"
)

// Layouts used for the date and time columns of every row.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// -----------------------------------------------------------------------------

// RecomputeDerivative differentiates field over volume for each adjacent pair of rows.
// Pairs with a zero volume step, a missing value or a non-finite slope are skipped.
// The result depends only on rows, so calling it twice yields the same series.
func RecomputeDerivative(rows []models.MTitrationRow, field string) []models.MDerivativePoint {
	out := make([]models.MDerivativePoint, 0, len(rows))
	for i := 1; i < len(rows); i++ {
		v1, v2 := rows[i-1].Volume, rows[i].Volume
		y1, ok1 := fieldValue(rows[i-1], field)
		y2, ok2 := fieldValue(rows[i], field)
		if !ok1 || !ok2 {
			continue
		}
		dv := v2 - v1
		if dv == 0 {
			continue
		}
		slope := (y2 - y1) / dv * 1000
		if math.IsInf(slope, 0) || math.IsNaN(slope) {
			continue
		}
		out = append(out, models.MDerivativePoint{
			AverageVolume:   Round((v1+v2)/2, 1),
			DerivativeValue: Round(slope, 2),
		})
	}
	return out
}

func fieldValue(row models.MTitrationRow, field string) (float64, bool) {
	v, ok := row.Fields[field]
	if !ok || v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, false
	}
	return *v, true
}

// -----------------------------------------------------------------------------

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
