package parser

import (
	"testing"

	"serialpha/src/models"
)

func semicolonProfile() models.MProfile {
	return models.MProfile{
		Name: "test",
		Parser: models.MParserSettings{
			Delimiter:      ";",
			LineTerminator: "\r",
			Fields:         []string{"pH", "temperature"},
			Map:            map[string]*int{"pH": models.Int(0), "temperature": models.Int(1)},
			Validation:     map[string]models.MRange{"pH": {Min: models.Float(0), Max: models.Float(14)}},
		},
	}
}

func value(t *testing.T, m models.MMeasurement, key string) (float64, bool) {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Fatalf("field %q missing from %v", key, m)
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

func TestParseExtractsFields(t *testing.T) {
	p := semicolonProfile()
	m := Parse("7.00;25.3\r", &p)
	if m == nil {
		t.Fatal("record rejected")
	}
	if v, ok := value(t, m, "pH"); !ok || v != 7 {
		t.Errorf("pH = %v (%v), want 7", v, ok)
	}
	if v, ok := value(t, m, "temperature"); !ok || v != 25.3 {
		t.Errorf("temperature = %v (%v), want 25.3", v, ok)
	}
}

func TestParseNonNumericTokenIsUndefined(t *testing.T) {
	p := semicolonProfile()
	m := Parse("abc;25.3", &p)
	if m == nil {
		t.Fatal("record rejected")
	}
	if _, ok := value(t, m, "pH"); ok {
		t.Error("pH should be undefined")
	}
	if v, ok := value(t, m, "temperature"); !ok || v != 25.3 {
		t.Errorf("temperature = %v, want 25.3", v)
	}
}

func TestParseOverflowingTokenIsUndefined(t *testing.T) {
	p := semicolonProfile()
	m := Parse("7.0;1e999\r", &p)
	if m == nil {
		t.Fatal("record rejected")
	}
	if v, ok := value(t, m, "pH"); !ok || v != 7 {
		t.Errorf("pH = %v (%v), want 7", v, ok)
	}
	if v, ok := value(t, m, "temperature"); ok {
		t.Errorf("temperature = %v, want undefined", v)
	}
}

func TestParseRejectsOutOfRangePH(t *testing.T) {
	p := semicolonProfile()
	for _, rec := range []string{"15;25", "-0.1;25", "14.0001;20"} {
		if m := Parse(rec, &p); m != nil {
			t.Errorf("Parse(%q) = %v, want rejection", rec, m)
		}
	}
	if m := Parse("14;20", &p); m == nil {
		t.Error("boundary value 14 should be accepted")
	}
}

func TestParseWithoutPHIsNeverRejectedForPH(t *testing.T) {
	p := semicolonProfile()
	p.Parser.Fields = []string{"temperature"}
	p.Parser.Map = map[string]*int{"temperature": models.Int(0)}
	m := Parse("99", &p)
	if m == nil {
		t.Fatal("record without pH was rejected")
	}
	if _, ok := m["pH"]; ok {
		t.Error("pH should be absent")
	}
}

func TestParseOtherRangesBlankTheValue(t *testing.T) {
	p := semicolonProfile()
	p.Parser.Validation["temperature"] = models.MRange{Max: models.Float(100)}
	m := Parse("7;150", &p)
	if m == nil {
		t.Fatal("record rejected")
	}
	if _, ok := value(t, m, "temperature"); ok {
		t.Error("temperature over range should be undefined")
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		m      map[string]*int
		record string
		want   map[string]float64
		absent []string
	}{
		{
			name:   "position in fields when map is empty",
			fields: []string{"temperature", "pH"},
			record: "21;6.5",
			want:   map[string]float64{"temperature": 21, "pH": 6.5},
		},
		{
			name:   "nil map entry falls back to position",
			fields: []string{"x", "pH"},
			m:      map[string]*int{"pH": nil},
			record: "1;6.5",
			want:   map[string]float64{"pH": 6.5},
			absent: []string{"x"},
		},
		{
			name:   "fuzzy match when key is not a field",
			fields: []string{"temp_C", "PH value"},
			m:      map[string]*int{"ph": nil},
			record: "21;6.5",
			want:   map[string]float64{"ph": 6.5},
		},
		{
			name:   "index beyond tokens is omitted",
			fields: []string{"pH", "temperature"},
			m:      map[string]*int{"pH": models.Int(0), "temperature": models.Int(5)},
			record: "7;25",
			want:   map[string]float64{"pH": 7},
			absent: []string{"temperature"},
		},
		{
			name:   "unresolvable key is omitted",
			fields: []string{"pH"},
			m:      map[string]*int{"pH": models.Int(0), "conductivity": nil},
			record: "7;3",
			want:   map[string]float64{"pH": 7},
			absent: []string{"conductivity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.MProfile{Parser: models.MParserSettings{Delimiter: ";", Fields: tt.fields, Map: tt.m}}
			m := Parse(tt.record, &p)
			if m == nil {
				t.Fatal("record rejected")
			}
			for k, want := range tt.want {
				if v, ok := value(t, m, k); !ok || v != want {
					t.Errorf("%s = %v, want %v", k, v, want)
				}
			}
			for _, k := range tt.absent {
				if _, ok := m[k]; ok {
					t.Errorf("%s should be absent, got %v", k, m[k])
				}
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"\x00\x007.00;25.3\x7f": "7.00;25.3",
		"\uFEFF6.5 ;  21":        "6.5 ; 21",
		"  a\tb  ":               "ab",
		"a \u00a0  b":            "a b",
	}
	for in, want := range tests {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"7.00", 7, true},
		{"pH=+6.85", 6.85, true},
		{"-12mV", -12, true},
		{"1.5e3", 1500, true},
		{"2E-2", 0.02, true},
		{"abc", 0, false},
		{"1e999", 0, false},
		{"-1e999", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := ExtractNumber(tt.in)
		if (got != nil) != tt.ok {
			t.Errorf("ExtractNumber(%q) defined = %v, want %v", tt.in, got != nil, tt.ok)
			continue
		}
		if got != nil && *got != tt.want {
			t.Errorf("ExtractNumber(%q) = %v, want %v", tt.in, *got, tt.want)
		}
	}
}
