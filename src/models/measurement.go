package models

import (
	"encoding/json"
	"math"
)

// MMeasurement maps canonical field names to values.
// A nil value means the token was present but held no number.
// A missing key means the field could not be located in the record.
type MMeasurement map[string]*float64

// Clone returns an independent copy of the measurement.
func (m MMeasurement) Clone() MMeasurement {
	if m == nil {
		return nil
	}
	out := make(MMeasurement, len(m))
	for k, v := range m {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// Project copies the given fields, leaving nil where the measurement has nothing.
func (m MMeasurement) Project(fields []string) MMeasurement {
	out := make(MMeasurement, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok && v != nil {
			val := *v
			out[f] = &val
		} else {
			out[f] = nil
		}
	}
	return out
}

// MarshalJSON writes non-finite values as null, like an undefined field.
func (m MMeasurement) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		if v == nil || math.IsInf(*v, 0) || math.IsNaN(*v) {
			out[k] = nil
			continue
		}
		out[k] = v
	}
	return json.Marshal(out)
}

// MChunk is one resumption of a transport read.
type MChunk struct {
	Data        string
	EndOfStream bool
}
