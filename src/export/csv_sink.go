package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"

	"github.com/gocarina/gocsv"
	"golang.org/x/sync/errgroup"
)

var _ interfaces.IExportSink = (*CSVSink)(nil)

// StampLayout formats the timestamp embedded in artifact names.
const StampLayout = "2006-01-02_15-04-05"

// Export prefixes
const (
	PrefixManual     = "manual"
	PrefixAutosave   = "autosave"
	PrefixDisconnect = "disconnect"
)

// -----------------------------------------------------------------------------

// CSVSink writes each series to its own comma-separated file.
type CSVSink struct {
	FallbackDir string
	now         func() time.Time
	logger      *logger.Logger
}

func NewCSVSink(fallbackDir string) *CSVSink {
	return &CSVSink{
		FallbackDir: fallbackDir,
		now:         time.Now,
		logger:      logger.NewLogger(nil, "Export"),
	}
}

// -----------------------------------------------------------------------------

// FileName builds "<prefix>_<series>_<stamp>.csv".
func FileName(prefix, series string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.csv", prefix, series, at.Format(StampLayout))
}

// -----------------------------------------------------------------------------

// Export writes one file per non-empty series into folder. All files of one
// export share a timestamp.
func (s *CSVSink) Export(folder, prefix string, data models.MExportData) ([]string, error) {
	if folder == "" {
		return nil, helpers.NewExportError("no export folder", nil)
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, helpers.NewExportError(fmt.Sprintf("export folder %s unavailable", folder), err)
	}

	at := s.now()
	var series []string
	if len(data.RealTime) > 0 {
		series = append(series, interfaces.SeriesRealTime)
	}
	if len(data.Titration) > 0 {
		series = append(series, interfaces.SeriesTitration)
	}
	if len(data.Derivative) > 0 {
		series = append(series, interfaces.SeriesDerivative)
	}

	paths := make([]string, len(series))
	var g errgroup.Group
	for i, name := range series {
		name := name
		path := filepath.Join(folder, FileName(prefix, name, at))
		paths[i] = path
		g.Go(func() error {
			return s.writeFile(path, name, data)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("Exported %d file(s) to %s (%s)", len(paths), folder, prefix)
	return paths, nil
}

// -----------------------------------------------------------------------------

// ExportWithFallback tries folder first and falls back to FallbackDir.
func (s *CSVSink) ExportWithFallback(folder, prefix string, data models.MExportData) ([]string, error) {
	if folder != "" {
		paths, err := s.Export(folder, prefix, data)
		if err == nil {
			return paths, nil
		}
		s.logger.Warning("Export to %s failed, using fallback: %v", folder, err)
	}
	if s.FallbackDir == "" {
		return nil, helpers.NewExportError("no export folder and no fallback directory", nil)
	}
	return s.Export(s.FallbackDir, prefix, data)
}

// -----------------------------------------------------------------------------

func (s *CSVSink) writeFile(path, series string, data models.MExportData) error {
	f, err := os.Create(path)
	if err != nil {
		return helpers.NewExportError("failed to create "+path, err)
	}
	if err := s.WriteSeries(f, series, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return helpers.NewExportError("failed to close "+path, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// WriteSeries writes a header line and one row per entry. Values that are
// undefined are written as empty cells.
func (s *CSVSink) WriteSeries(w io.Writer, series string, data models.MExportData) error {
	switch series {
	case interfaces.SeriesRealTime:
		return writeRealTime(w, data)
	case interfaces.SeriesTitration:
		return writeTitration(w, data)
	case interfaces.SeriesDerivative:
		if len(data.Derivative) == 0 {
			return nil
		}
		if err := gocsv.Marshal(data.Derivative, w); err != nil {
			return helpers.NewExportError("failed to write derivative series", err)
		}
		return nil
	default:
		return helpers.NewExportError(fmt.Sprintf("unknown series %q", series), nil)
	}
}

func writeRealTime(w io.Writer, data models.MExportData) error {
	if len(data.RealTime) == 0 {
		return nil
	}
	cw := gocsv.DefaultCSVWriter(w)
	cw.Write(append([]string{"time", "read"}, data.Fields...))
	for _, r := range data.RealTime {
		row := []string{r.Time, strconv.Itoa(r.Read)}
		cw.Write(append(row, cells(r.Fields, data.Fields)...))
	}
	return flush(cw, interfaces.SeriesRealTime)
}

func writeTitration(w io.Writer, data models.MExportData) error {
	if len(data.Titration) == 0 {
		return nil
	}
	cw := gocsv.DefaultCSVWriter(w)
	cw.Write(append([]string{"time", "read", "volume"}, data.Fields...))
	for _, r := range data.Titration {
		row := []string{r.Time, strconv.Itoa(r.Read), formatFloat(r.Volume)}
		cw.Write(append(row, cells(r.Fields, data.Fields)...))
	}
	return flush(cw, interfaces.SeriesTitration)
}

func flush(cw *gocsv.SafeCSVWriter, series string) error {
	cw.Flush()
	if err := cw.Error(); err != nil {
		return helpers.NewExportError("failed to write "+series+" series", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func cells(m models.MMeasurement, fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if v := m[f]; v != nil {
			out[i] = formatFloat(*v)
		}
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
