package analysis

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"serialpha/src/models"
)

var leadingInt = regexp.MustCompile(`^[+-]?\d+`)

// -----------------------------------------------------------------------------

// TitrationEngine owns the titration series and its derivative.
// It is not safe for concurrent use; the session serializes access.
type TitrationEngine struct {
	rows       []models.MTitrationRow
	derivative []models.MDerivativePoint
	volumeSum  float64
	count      int
}

func NewTitrationEngine() *TitrationEngine {
	return &TitrationEngine{}
}

// -----------------------------------------------------------------------------

// ParseVolumeIncrement reads the integer prefix of text as microliters.
// Text without one, and negative values, give 0.
func ParseVolumeIncrement(text string) int {
	m := leadingInt.FindString(strings.TrimLeft(text, " \t\r\n"))
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// -----------------------------------------------------------------------------

// AddPoint appends a row built from latest. The first row always has volume 0
// and ignores increment; later rows add max(0, increment) to the running volume.
// A nil latest means no measurement yet, and nothing is appended.
func (e *TitrationEngine) AddPoint(latest models.MMeasurement, increment float64, fields []string, field string, at time.Time) (models.MTitrationRow, bool) {
	if latest == nil {
		return models.MTitrationRow{}, false
	}
	if increment < 0 {
		increment = 0
	}

	if len(e.rows) > 0 {
		e.volumeSum += increment
	}
	e.count++

	row := models.MTitrationRow{
		Date:   at.Format(DateLayout),
		Time:   at.Format(TimeLayout),
		Read:   e.count,
		Volume: e.volumeSum,
		Fields: mergeFields(latest, fields),
	}
	e.rows = append(e.rows, row)
	e.derivative = RecomputeDerivative(e.rows, field)
	return row, true
}

// mergeFields keeps every measured key and adds the display fields as undefined when missing.
func mergeFields(latest models.MMeasurement, fields []string) models.MMeasurement {
	out := latest.Clone()
	for _, f := range fields {
		if _, ok := out[f]; !ok {
			out[f] = nil
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Recompute rebuilds the derivative for field.
func (e *TitrationEngine) Recompute(field string) {
	e.derivative = RecomputeDerivative(e.rows, field)
}

// Rows returns a copy of the titration series.
func (e *TitrationEngine) Rows() []models.MTitrationRow {
	return append([]models.MTitrationRow(nil), e.rows...)
}

// Derivative returns a copy of the derivative series.
func (e *TitrationEngine) Derivative() []models.MDerivativePoint {
	return append([]models.MDerivativePoint(nil), e.derivative...)
}

// VolumeSum is the cumulative added volume.
func (e *TitrationEngine) VolumeSum() float64 { return e.volumeSum }

// Count is the titration read counter.
func (e *TitrationEngine) Count() int { return e.count }

// -----------------------------------------------------------------------------

// Restore loads persisted state. The derivative is taken as saved.
func (e *TitrationEngine) Restore(rows []models.MTitrationRow, derivative []models.MDerivativePoint, volumeSum float64, count int) {
	e.rows = append([]models.MTitrationRow(nil), rows...)
	e.derivative = append([]models.MDerivativePoint(nil), derivative...)
	e.volumeSum = volumeSum
	e.count = count
}

// Reset clears the series and counters.
func (e *TitrationEngine) Reset() {
	e.rows = nil
	e.derivative = nil
	e.volumeSum = 0
	e.count = 0
}
