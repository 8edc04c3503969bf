package profile

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"serialpha/src/helpers"
	"serialpha/src/models"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DocumentVersion is written into every exported profile document.
const DocumentVersion = 1

// -----------------------------------------------------------------------------

// DecodeDocument parses a profile document. YAML is used for .yaml/.yml names, JSON otherwise.
func DecodeDocument(data []byte, filename string) (interface{}, error) {
	var raw interface{}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, helpers.NewConfigurationError("failed to parse profile YAML: %v", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, helpers.NewConfigurationError("failed to parse profile JSON: %v", err)
		}
	}
	return raw, nil
}

// -----------------------------------------------------------------------------

// EncodeDocument renders the interchange document as indented JSON.
func EncodeDocument(profiles []models.MProfile) ([]byte, error) {
	doc := models.MProfileDocument{Version: DocumentVersion, Instruments: profiles}
	return json.MarshalIndent(doc, "", "  ")
}

// -----------------------------------------------------------------------------

// Normalize accepts a single profile object, a bare list, or {instruments:[...]}.
// Candidates without a string name or a numeric serial.baudRate are skipped;
// accepted ones get defaults for everything they leave out.
func Normalize(raw interface{}) (accepted []models.MProfile, rejected int) {
	for _, candidate := range candidates(raw) {
		p, err := normalizeOne(candidate)
		if err != nil {
			rejected++
			continue
		}
		accepted = append(accepted, p)
	}
	return accepted, rejected
}

func candidates(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		if list, ok := v["instruments"].([]interface{}); ok {
			return list
		}
		return []interface{}{v}
	case []interface{}:
		return v
	case nil:
		return nil
	default:
		return []interface{}{v}
	}
}

// -----------------------------------------------------------------------------

func normalizeOne(candidate interface{}) (models.MProfile, error) {
	var p models.MProfile

	obj, ok := candidate.(map[string]interface{})
	if !ok {
		return p, fmt.Errorf("profile is not an object")
	}
	if _, ok := obj["name"].(string); !ok {
		return p, fmt.Errorf("profile name must be a string")
	}
	serial, ok := obj["serial"].(map[string]interface{})
	if !ok {
		return p, fmt.Errorf("profile serial settings missing")
	}
	if !isNumber(serial["baudRate"]) {
		return p, fmt.Errorf("serial.baudRate must be a number")
	}

	input := prepare(obj)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &p,
		TagName: "mapstructure",
	})
	if err != nil {
		return p, err
	}
	if err := decoder.Decode(input); err != nil {
		return p, fmt.Errorf("profile %q: %w", obj["name"], err)
	}

	applyDefaults(&p, obj)
	return p, nil
}

// prepare copies the fields the decoder cannot take as-is: non-numeric map
// indexes become "no explicit index", and timing.minInterval is an alias.
func prepare(obj map[string]interface{}) map[string]interface{} {
	input := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		input[k] = v
	}

	if parser, ok := obj["parser"].(map[string]interface{}); ok {
		pcopy := make(map[string]interface{}, len(parser))
		for k, v := range parser {
			pcopy[k] = v
		}
		if m, ok := parser["map"].(map[string]interface{}); ok {
			mcopy := make(map[string]interface{}, len(m))
			for k, v := range m {
				mcopy[k] = mapIndex(v)
			}
			pcopy["map"] = mcopy
		}
		input["parser"] = pcopy
	}

	if timing, ok := obj["timing"].(map[string]interface{}); ok {
		tcopy := make(map[string]interface{}, len(timing))
		for k, v := range timing {
			tcopy[k] = v
		}
		if _, has := tcopy["minIntervalMs"]; !has {
			if legacy, ok := tcopy["minInterval"]; ok {
				tcopy["minIntervalMs"] = legacy
			}
		}
		delete(tcopy, "minInterval")
		input["timing"] = tcopy
	}
	return input
}

// mapIndex turns a raw map value into a decodable index. Fractional
// indexes can never address a token, so they become -1.
func mapIndex(v interface{}) interface{} {
	if !isNumber(v) {
		return nil
	}
	f := toFloat(v)
	if f != math.Trunc(f) {
		return -1
	}
	return int(f)
}

// -----------------------------------------------------------------------------

func applyDefaults(p *models.MProfile, obj map[string]interface{}) {
	serial, _ := obj["serial"].(map[string]interface{})
	parser, _ := obj["parser"].(map[string]interface{})

	if serial["dataBits"] == nil {
		p.Serial.DataBits = 8
	}
	if serial["stopBits"] == nil {
		p.Serial.StopBits = 1
	}
	if serial["parity"] == nil {
		p.Serial.Parity = "none"
	}

	if parser["delimiter"] == nil {
		p.Parser.Delimiter = ","
	}
	// An empty terminator would never advance the framer
	if p.Parser.LineTerminator == "" {
		p.Parser.LineTerminator = "\n"
	}
	if parser["fields"] == nil {
		p.Parser.Fields = []string{"pH", "temperature"}
	}
	if parser["map"] == nil {
		p.Parser.Map = indexMap("pH", "temperature")
	}
	if parser["validation"] == nil {
		p.Parser.Validation = map[string]models.MRange{"pH": {Min: models.Float(0), Max: models.Float(14)}}
	}
	if p.Units == nil {
		p.Units = map[string]string{}
	}
	if p.Timing.MinIntervalMs <= 0 {
		p.Timing.MinIntervalMs = DefaultMinIntervalMs
	}
}

// -----------------------------------------------------------------------------

func isNumber(v interface{}) bool {
	switch n := v.(type) {
	case float64:
		return !math.IsNaN(n)
	case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	default:
		return false
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return math.NaN()
	}
}
