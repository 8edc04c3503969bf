package models

// -----------------------------------------------------------------------------
// Server State Structure
// -----------------------------------------------------------------------------

type MLatestData struct {
	Type              string             `json:"type"` // "INITIAL", "UPDATE", "ALERT"
	Profile           string             `json:"profile"`
	Connected         bool               `json:"connected"`
	Port              string             `json:"port,omitempty"`
	IntervalMs        int64              `json:"interval_ms,omitempty"`
	SelectedField     string             `json:"selected_field"`
	Fields            []string           `json:"fields"`
	Latest            MMeasurement       `json:"latest,omitempty"`
	RealTime          []MRealTimeRow     `json:"real_time"`
	Titration         []MTitrationRow    `json:"titration"`
	Derivative        []MDerivativePoint `json:"derivative"`
	Message           string             `json:"message,omitempty"`
	Timestamp         int64              `json:"timestamp"`
	ProcessingMetrics MProcessingMetrics `json:"processing_metrics"`
}

// -----------------------------------------------------------------------------
// Command sent by websocket clients
// -----------------------------------------------------------------------------

type MClientCommand struct {
	Command string `json:"command"` // "add_point", "select_field", "clear", "export"
	Volume  string `json:"volume,omitempty"`
	Field   string `json:"field,omitempty"`
}
