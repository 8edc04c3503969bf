package profile

import (
	"encoding/json"
	"testing"

	"serialpha/src/helpers"
	"serialpha/src/models"
)

func TestResolve(t *testing.T) {
	p := &models.MProfile{Parser: models.MParserSettings{
		Fields: []string{"Temp (C)", "pH value", "pH raw", "ch1"},
		Map:    map[string]*int{"ch1": models.Int(7), "skip": nil},
	}}

	tests := []struct {
		key       string
		index     int
		strategy  Strategy
		ambiguous bool
	}{
		{"ch1", 7, ByMap, false},
		{"Temp (C)", 0, ByPosition, false},
		{"temp", 0, ByFuzzyMatch, false},
		{"ph", 1, ByFuzzyMatch, true},
		{"skip", -1, Unresolved, false},
		{"nir", -1, Unresolved, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			b := Resolve(p, tt.key)
			if b.Index != tt.index || b.Strategy != tt.strategy || b.Ambiguous != tt.ambiguous {
				t.Errorf("Resolve(%q) = %+v", tt.key, b)
			}
			if b.Usable() != (tt.strategy != Unresolved) {
				t.Errorf("Usable() = %v", b.Usable())
			}
		})
	}
}

func TestCanonicalKeys(t *testing.T) {
	withMap := &models.MProfile{Parser: models.MParserSettings{
		Fields: []string{"a", "b"},
		Map:    map[string]*int{"z": models.Int(1), "m": models.Int(0)},
	}}
	if got := CanonicalKeys(withMap); len(got) != 2 || got[0] != "m" || got[1] != "z" {
		t.Errorf("map keys = %v", got)
	}

	fieldsOnly := &models.MProfile{Parser: models.MParserSettings{Fields: []string{"a", "b"}}}
	if got := CanonicalKeys(fieldsOnly); len(got) != 2 || got[0] != "a" {
		t.Errorf("fields = %v", got)
	}
	if got := Bindings(fieldsOnly); got[1].Strategy != ByPosition || got[1].Index != 1 {
		t.Errorf("bindings = %+v", got)
	}
}

func TestDefaultField(t *testing.T) {
	tests := []struct {
		fields  []string
		current string
		want    string
	}{
		{[]string{"pH", "temperature"}, "temperature", "temperature"},
		{[]string{"pH", "temperature"}, "nir", "pH"},
		{[]string{"potencial", "temperature"}, "pH", "potencial"},
		{nil, "pH", ""},
	}
	for _, tt := range tests {
		if got := DefaultField(tt.fields, tt.current); got != tt.want {
			t.Errorf("DefaultField(%v, %q) = %q, want %q", tt.fields, tt.current, got, tt.want)
		}
	}
	if got := DisplayFields(nil); len(got) != 2 || got[0] != "pH" {
		t.Errorf("DisplayFields(nil) = %v", got)
	}
}

// -----------------------------------------------------------------------------

func decodeJSON(t *testing.T, doc string) interface{} {
	t.Helper()
	raw, err := DecodeDocument([]byte(doc), "profiles.json")
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	return raw
}

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		accepted int
		rejected int
	}{
		{"single object", `{"name":"a","serial":{"baudRate":9600}}`, 1, 0},
		{"bare list", `[{"name":"a","serial":{"baudRate":9600}},{"name":"b","serial":{"baudRate":19200}}]`, 2, 0},
		{"envelope", `{"version":1,"instruments":[{"name":"a","serial":{"baudRate":9600}}]}`, 1, 0},
		{"missing name", `[{"serial":{"baudRate":9600}},{"name":"b","serial":{"baudRate":19200}}]`, 1, 1},
		{"name not a string", `{"name":7,"serial":{"baudRate":9600}}`, 0, 1},
		{"baud not a number", `{"name":"a","serial":{"baudRate":"fast"}}`, 0, 1},
		{"no serial", `{"name":"a"}`, 0, 1},
		{"scalar", `42`, 0, 1},
		{"null", `null`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, rejected := Normalize(decodeJSON(t, tt.doc))
			if len(accepted) != tt.accepted || rejected != tt.rejected {
				t.Errorf("accepted %d rejected %d", len(accepted), rejected)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	accepted, _ := Normalize(decodeJSON(t, `{"name":"bare","serial":{"baudRate":9600},"parser":{"lineTerminator":""}}`))
	if len(accepted) != 1 {
		t.Fatal("profile rejected")
	}
	p := accepted[0]

	if p.Serial.DataBits != 8 || p.Serial.StopBits != 1 || p.Serial.Parity != "none" {
		t.Errorf("serial = %+v", p.Serial)
	}
	if p.Parser.Delimiter != "," || p.Parser.LineTerminator != "\n" {
		t.Errorf("parser = %q %q", p.Parser.Delimiter, p.Parser.LineTerminator)
	}
	if len(p.Parser.Fields) != 2 || *p.Parser.Map["temperature"] != 1 {
		t.Errorf("fields %v map %v", p.Parser.Fields, p.Parser.Map)
	}
	r := p.Parser.Validation["pH"]
	if r.Min == nil || *r.Min != 0 || r.Max == nil || *r.Max != 14 {
		t.Errorf("validation = %+v", p.Parser.Validation)
	}
	if MinInterval(&p) != DefaultMinIntervalMs {
		t.Errorf("min interval = %d", MinInterval(&p))
	}
}

func TestNormalizeKeepsDeclaredValues(t *testing.T) {
	doc := `{
		"name": "meter",
		"serial": {"baudRate": 19200, "dataBits": 7, "stopBits": 2, "parity": "even", "encoding": "latin1"},
		"parser": {
			"delimiter": ";",
			"lineTerminator": "\r\n",
			"fields": ["mV", "temperature"],
			"map": {"mV": 1, "temperature": "first", "frac": 1.5},
			"validation": {}
		},
		"units": {"mV": "mV"},
		"timing": {"minInterval": 750}
	}`
	accepted, _ := Normalize(decodeJSON(t, doc))
	if len(accepted) != 1 {
		t.Fatal("profile rejected")
	}
	p := accepted[0]

	if p.Serial.DataBits != 7 || p.Serial.StopBits != 2 || p.Serial.Parity != "even" || p.Serial.Encoding != "latin1" {
		t.Errorf("serial = %+v", p.Serial)
	}
	if p.Parser.Delimiter != ";" || p.Parser.LineTerminator != "\r\n" {
		t.Errorf("parser = %+v", p.Parser)
	}
	if idx := p.Parser.Map["mV"]; idx == nil || *idx != 1 {
		t.Errorf("map[mV] = %v", idx)
	}
	if idx := p.Parser.Map["temperature"]; idx != nil {
		t.Errorf("non-numeric index kept: %d", *idx)
	}
	if idx := p.Parser.Map["frac"]; idx == nil || *idx != -1 {
		t.Errorf("fractional index = %v", idx)
	}
	if len(p.Parser.Validation) != 0 {
		t.Errorf("explicit empty validation replaced: %v", p.Parser.Validation)
	}
	if p.Timing.MinIntervalMs != 750 {
		t.Errorf("legacy minInterval = %d", p.Timing.MinIntervalMs)
	}
}

func TestDecodeDocumentYAML(t *testing.T) {
	doc := "instruments:\n  - name: yaml meter\n    serial:\n      baudRate: 4800\n"
	raw, err := DecodeDocument([]byte(doc), "meters.YML")
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}
	accepted, rejected := Normalize(raw)
	if len(accepted) != 1 || rejected != 0 || accepted[0].Serial.BaudRate != 4800 {
		t.Errorf("accepted %+v rejected %d", accepted, rejected)
	}

	if _, err := DecodeDocument([]byte("{"), "x.json"); !helpers.IsConfigurationError(err) {
		t.Errorf("bad JSON err = %v", err)
	}
}

// -----------------------------------------------------------------------------

func TestRegistryImportSelect(t *testing.T) {
	r := NewRegistry()
	builtin := len(Builtin())
	if r.Len() != builtin {
		t.Fatalf("Len = %d", r.Len())
	}
	if p, i := r.Selected(); i != 0 || p.Name != Builtin()[0].Name {
		t.Errorf("initial selection %d %q", i, p.Name)
	}

	accepted, rejected, err := r.Import(decodeJSON(t, `[{"name":"x","serial":{"baudRate":9600}},{"name":1}]`))
	if err != nil || accepted != 1 || rejected != 1 {
		t.Fatalf("Import = %d, %d, %v", accepted, rejected, err)
	}
	if r.Len() != builtin+1 {
		t.Errorf("Len = %d", r.Len())
	}

	if _, _, err := r.Import(decodeJSON(t, `[{"name":1}]`)); !helpers.IsConfigurationError(err) {
		t.Errorf("empty import err = %v", err)
	}

	if err := r.Select(builtin); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if p, _ := r.Selected(); p.Name != "x" {
		t.Errorf("selected %q", p.Name)
	}
	for _, bad := range []int{-1, builtin + 1} {
		if err := r.Select(bad); !helpers.IsConfigurationError(err) {
			t.Errorf("Select(%d) err = %v", bad, err)
		}
	}
	if _, err := r.Get(builtin + 5); err == nil {
		t.Error("Get out of range succeeded")
	}
}

func TestRegistryExportRestore(t *testing.T) {
	r := NewRegistry()
	if _, _, err := r.Import(decodeJSON(t, `{"name":"x","serial":{"baudRate":9600}}`)); err != nil {
		t.Fatal(err)
	}
	if err := r.Select(r.Len() - 1); err != nil {
		t.Fatal(err)
	}

	// through JSON, the way the gateway stores it
	data, err := json.Marshal(r.Export())
	if err != nil {
		t.Fatal(err)
	}
	var doc models.MProfileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}

	restored := NewRegistry()
	restored.Restore(&doc)
	if restored.Len() != r.Len() {
		t.Errorf("Len = %d, want %d", restored.Len(), r.Len())
	}
	if p, i := restored.Selected(); p.Name != "x" || i != r.Len()-1 {
		t.Errorf("selected %d %q", i, p.Name)
	}

	// empty documents and bad selections are ignored
	restored.Restore(&models.MProfileDocument{})
	if restored.Len() != r.Len() {
		t.Error("empty document cleared the registry")
	}
	restored.Restore(&models.MProfileDocument{Instruments: Builtin()[:1], Selected: 9})
	if _, i := restored.Selected(); i != 0 {
		t.Errorf("out of range selection restored as %d", i)
	}
}

func TestEncodeDocument(t *testing.T) {
	data, err := EncodeDocument(Builtin()[:2])
	if err != nil {
		t.Fatal(err)
	}
	accepted, rejected := Normalize(decodeJSON(t, string(data)))
	if len(accepted) != 2 || rejected != 0 {
		t.Fatalf("re-import accepted %d rejected %d", len(accepted), rejected)
	}
	if accepted[0].Timing.MinIntervalMs != 2000 || accepted[1].Parser.Fields[0] != "potencial" {
		t.Errorf("re-imported = %+v", accepted[:2])
	}
}
