package models

// MProfile describes one instrument: how to open its port and how to read its records.
// Profiles are treated as immutable once registered.
type MProfile struct {
	Name   string            `json:"name" yaml:"name" mapstructure:"name"`
	Serial MSerialSettings   `json:"serial" yaml:"serial" mapstructure:"serial"`
	Parser MParserSettings   `json:"parser" yaml:"parser" mapstructure:"parser"`
	Units  map[string]string `json:"units" yaml:"units" mapstructure:"units"`
	Timing MTimingSettings   `json:"timing" yaml:"timing" mapstructure:"timing"`
}

type MSerialSettings struct {
	BaudRate int    `json:"baudRate" yaml:"baudRate" mapstructure:"baudRate"`
	DataBits int    `json:"dataBits" yaml:"dataBits" mapstructure:"dataBits"`
	StopBits int    `json:"stopBits" yaml:"stopBits" mapstructure:"stopBits"`
	// none, even, odd, mark, space
	Parity   string `json:"parity" yaml:"parity" mapstructure:"parity"`
	// "", utf-8, iso-8859-1, windows-1252
	Encoding string `json:"encoding,omitempty" yaml:"encoding,omitempty" mapstructure:"encoding"`
}

type MParserSettings struct {
	Delimiter      string            `json:"delimiter" yaml:"delimiter" mapstructure:"delimiter"`
	LineTerminator string            `json:"lineTerminator" yaml:"lineTerminator" mapstructure:"lineTerminator"`
	Fields         []string          `json:"fields" yaml:"fields" mapstructure:"fields"`
	Map            map[string]*int   `json:"map,omitempty" yaml:"map,omitempty" mapstructure:"map"`
	Validation     map[string]MRange `json:"validation,omitempty" yaml:"validation,omitempty" mapstructure:"validation"`
}

// MRange is an inclusive [Min, Max] bound. A nil bound is open.
type MRange struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
}

type MTimingSettings struct {
	MinIntervalMs int `json:"minIntervalMs" yaml:"minIntervalMs" mapstructure:"minIntervalMs"`
}

// MProfileDocument is the profile interchange envelope.
type MProfileDocument struct {
	Version     int        `json:"version" yaml:"version"`
	Instruments []MProfile `json:"instruments" yaml:"instruments"`
	Selected    int        `json:"selected,omitempty" yaml:"selected,omitempty"`
}

// Int and Float return pointers, for building maps and ranges inline.
func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }
