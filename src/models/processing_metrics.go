package models

// MProcessingMetrics counts what the acquisition pipeline did with incoming data.
type MProcessingMetrics struct {
	BytesRead        int64 `json:"bytes_read"`
	RecordsFramed    int64 `json:"records_framed"`
	RecordsParsed    int64 `json:"records_parsed"`
	RecordsRejected  int64 `json:"records_rejected"`
	BufferOverflows  int64 `json:"buffer_overflows"`
	SoftReadErrors   int64 `json:"soft_read_errors"`
	SamplesCollected int64 `json:"samples_collected"`
	SnapshotsSaved   int64 `json:"snapshots_saved"`

	RealTimeRows     int `json:"real_time_rows"`
	TitrationRows    int `json:"titration_rows"`
	DerivativePoints int `json:"derivative_points"`
}

// MSeriesSummary describes the selected field over the real-time series.
type MSeriesSummary struct {
	Field  string  `json:"field"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
}
