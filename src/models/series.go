package models

// MRealTimeRow is one sampled reading.
type MRealTimeRow struct {
	Date   string       `json:"date"`
	Time   string       `json:"time"`
	Read   int          `json:"read"`
	Fields MMeasurement `json:"fields"`
}

// MTitrationRow is one operator-added titration point. Volume is cumulative, in µL.
type MTitrationRow struct {
	Date   string       `json:"date"`
	Time   string       `json:"time"`
	Read   int          `json:"read"`
	Volume float64      `json:"volume"`
	Fields MMeasurement `json:"fields"`
}

// MDerivativePoint is a first-difference point of the titration curve.
type MDerivativePoint struct {
	AverageVolume   float64 `json:"averageVolume" csv:"averageVolume"`
	DerivativeValue float64 `json:"derivativeValue" csv:"derivativeValue"`
}

// MSessionMeta carries the counters needed to resume a session.
type MSessionMeta struct {
	VolumeSum      float64  `json:"volumeSum"`
	ReadCount      int      `json:"readCount"`
	TitrationCount int      `json:"titCount"`
	SelectedField  string   `json:"rtField"`
	Fields         []string `json:"rtFields"`
	ProfileName    string   `json:"profileName,omitempty"`
}

// MSessionSnapshot is the persisted form of a session.
type MSessionSnapshot struct {
	SavedAt    int64              `json:"ts"`
	Reason     string             `json:"reason"`
	RealTime   []MRealTimeRow     `json:"rt"`
	Titration  []MTitrationRow    `json:"tit"`
	Derivative []MDerivativePoint `json:"der"`
	Meta       MSessionMeta       `json:"meta"`
}

// MExportData is what an export sink receives.
type MExportData struct {
	Fields     []string           `json:"fields"`
	RealTime   []MRealTimeRow     `json:"real_time"`
	Titration  []MTitrationRow    `json:"titration"`
	Derivative []MDerivativePoint `json:"derivative"`
}
