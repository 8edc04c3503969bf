package core

import (
	"math"

	"serialpha/src/models"

	"github.com/montanaflynn/stats"
)

// -----------------------------------------------------------------------------

// FieldValues collects the defined values of field from the real-time rows.
func FieldValues(rows []models.MRealTimeRow, field string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := r.Fields[field]; ok && v != nil && !math.IsNaN(*v) {
			out = append(out, *v)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Summarize computes min, max, mean, population std and median.
// An empty input yields a zero summary with Count 0.
func Summarize(field string, data []float64) models.MSeriesSummary {
	summary := models.MSeriesSummary{Field: field, Count: len(data)}
	if len(data) == 0 {
		return summary
	}

	input := stats.Float64Data(data)
	summary.Min, _ = stats.Min(input)
	summary.Max, _ = stats.Max(input)
	summary.Mean, _ = stats.Mean(input)
	summary.Median, _ = stats.Median(input)

	// For single element, std is 0
	if len(data) > 1 {
		summary.StdDev, _ = stats.StandardDeviationPopulation(input)
	}
	return summary
}
