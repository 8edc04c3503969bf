package analysis

import (
	"math"
	"reflect"
	"testing"
	"time"

	"serialpha/src/models"
)

func ph(v float64) models.MMeasurement {
	return models.MMeasurement{"pH": models.Float(v), "temperature": models.Float(25)}
}

func TestAddPointVolumes(t *testing.T) {
	e := NewTitrationEngine()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fields := []string{"pH", "temperature"}

	if _, ok := e.AddPoint(nil, 10, fields, "pH", at); ok {
		t.Fatal("AddPoint without a measurement appended a row")
	}

	steps := []float64{50, 10, -5, 0, 20}
	for i, s := range steps {
		if _, ok := e.AddPoint(ph(7-float64(i)*0.1), s, fields, "pH", at); !ok {
			t.Fatalf("AddPoint %d failed", i)
		}
	}

	rows := e.Rows()
	want := []float64{0, 10, 10, 10, 30}
	for i, r := range rows {
		if r.Volume != want[i] {
			t.Errorf("row %d volume = %v, want %v", i, r.Volume, want[i])
		}
		if r.Read != i+1 {
			t.Errorf("row %d read = %d", i, r.Read)
		}
		if i > 0 && r.Volume < rows[i-1].Volume {
			t.Errorf("volume decreased at row %d", i)
		}
	}
	if rows[0].Date != "2026-03-01" || rows[0].Time != "10:00:00" {
		t.Errorf("timestamp columns = %s %s", rows[0].Date, rows[0].Time)
	}
	if e.VolumeSum() != 30 || e.Count() != 5 {
		t.Errorf("VolumeSum = %v, Count = %d", e.VolumeSum(), e.Count())
	}
}

func TestRecomputeDerivative(t *testing.T) {
	rows := []models.MTitrationRow{
		{Volume: 0, Fields: ph(3.0)},
		{Volume: 100, Fields: ph(3.5)},
		{Volume: 100, Fields: ph(4.0)}, // zero step, skipped
		{Volume: 150, Fields: models.MMeasurement{"pH": nil}},
		{Volume: 200, Fields: ph(7.0)},
		{Volume: 205, Fields: ph(9.0)},
	}
	got := RecomputeDerivative(rows, "pH")
	want := []models.MDerivativePoint{
		{AverageVolume: 50, DerivativeValue: 5},
		{AverageVolume: 202.5, DerivativeValue: 400},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("derivative = %+v, want %+v", got, want)
	}

	again := RecomputeDerivative(rows, "pH")
	if !reflect.DeepEqual(got, again) {
		t.Error("recompute is not idempotent")
	}
}

func TestRecomputeDerivativeUsesSelectedField(t *testing.T) {
	rows := []models.MTitrationRow{
		{Volume: 0, Fields: models.MMeasurement{"potencial": models.Float(100)}},
		{Volume: 10, Fields: models.MMeasurement{"potencial": models.Float(90)}},
	}
	got := RecomputeDerivative(rows, "potencial")
	if len(got) != 1 || got[0].DerivativeValue != -1000 || got[0].AverageVolume != 5 {
		t.Fatalf("derivative = %+v", got)
	}
	if len(RecomputeDerivative(rows, "pH")) != 0 {
		t.Error("rows without the field should give no points")
	}
}

func TestRecomputeDerivativeSkipsNonFiniteSlopes(t *testing.T) {
	rows := []models.MTitrationRow{
		{Volume: 0, Fields: ph(-math.MaxFloat64)},
		{Volume: 1, Fields: ph(math.MaxFloat64)},
		{Volume: 2, Fields: ph(math.Inf(1))},
		{Volume: 3, Fields: ph(7)},
		{Volume: 4, Fields: ph(7.5)},
	}
	got := RecomputeDerivative(rows, "pH")
	want := []models.MDerivativePoint{{AverageVolume: 3.5, DerivativeValue: 500}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("derivative = %+v, want %+v", got, want)
	}
}

func TestParseVolumeIncrement(t *testing.T) {
	tests := map[string]int{
		"10":    10,
		" 25uL": 25,
		"abc":   0,
		"":      0,
		"-5":    0,
		"7.9":   7,
	}
	for in, want := range tests {
		if got := ParseVolumeIncrement(in); got != want {
			t.Errorf("ParseVolumeIncrement(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v    float64
		d    int
		want float64
	}{
		{2.345, 1, 2.3},
		{202.5, 1, 202.5},
		{-1.005, 2, -1},
		{1.234567, 2, 1.23},
	}
	for _, tt := range tests {
		if got := Round(tt.v, tt.d); got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.d, got, tt.want)
		}
	}
}

func TestRestoreAndReset(t *testing.T) {
	e := NewTitrationEngine()
	rows := []models.MTitrationRow{{Read: 1, Volume: 0, Fields: ph(7)}, {Read: 2, Volume: 10, Fields: ph(6)}}
	e.Restore(rows, RecomputeDerivative(rows, "pH"), 10, 2)

	row, _ := e.AddPoint(ph(5), 10, []string{"pH"}, "pH", time.Now())
	if row.Read != 3 || row.Volume != 20 {
		t.Errorf("row after restore = %+v", row)
	}
	if len(e.Derivative()) != 2 {
		t.Errorf("derivative len = %d, want 2", len(e.Derivative()))
	}

	e.Reset()
	if len(e.Rows()) != 0 || e.Count() != 0 || e.VolumeSum() != 0 {
		t.Error("Reset left state behind")
	}
}
