package interfaces

import (
	"io"

	"serialpha/src/models"
)

// Series names accepted by IExportSink.WriteSeries
const (
	SeriesRealTime   = "real_time"
	SeriesTitration  = "titration"
	SeriesDerivative = "derivative"
)

// -----------------------------------------------------------------------------
// IExportSink writes session data as tabular artifacts.
// -----------------------------------------------------------------------------

type IExportSink interface {

	// Export writes one artifact per non-empty series into folder and returns their paths.
	Export(folder, prefix string, data models.MExportData) ([]string, error)

	// -----------------------------------------------------------------------------

	// WriteSeries streams a single series to w.
	WriteSeries(w io.Writer, series string, data models.MExportData) error
}
