package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"serialpha/src/acquisition"
	"serialpha/src/export"
	"serialpha/src/interfaces"
	"serialpha/src/models"
	"serialpha/src/profile"
	"serialpha/src/sampling"
	"serialpha/src/transport"

	"github.com/gin-gonic/gin"
)

// listPorts is replaced in tests
var listPorts = transport.ListPorts

const maxImportBytes = 4 << 20

// -----------------------------------------------------------------------------
// Status
// -----------------------------------------------------------------------------

func (s *ControlServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connected":     s.ctrl.Connected(),
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"interval_value":   s.Config.Sampling.IntervalValue,
		"interval_unit":    s.Config.Sampling.IntervalUnit,
		"max_points":       s.Config.Sampling.MaxPoints,
		"auto_export_cron": s.Config.Export.AutoExportCron,
		"replay":           s.Config.Transport.ReplayFile != "",
	})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Metrics())
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

func (s *ControlServer) getProfiles(c *gin.Context) {
	profiles, selected := s.ctrl.Profiles()
	c.JSON(http.StatusOK, gin.H{
		"profiles": profiles,
		"selected": selected,
	})
}

// -----------------------------------------------------------------------------

// importProfiles accepts a JSON or YAML document as the raw body. The
// filename query parameter, or the content type, selects the decoder.
func (s *ControlServer) importProfiles(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filename := c.Query("filename")
	if filename == "" && strings.Contains(c.ContentType(), "yaml") {
		filename = "profiles.yaml"
	}

	accepted, rejected, err := s.ctrl.ImportProfiles(data, filename)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accepted": accepted,
		"rejected": rejected,
	})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) exportProfiles(c *gin.Context) {
	data, err := s.ctrl.ExportProfiles()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="instrument-profiles.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

// -----------------------------------------------------------------------------

func (s *ControlServer) selectProfile(c *gin.Context) {
	var req struct {
		Index *int `json:"index"`
	}
	if !s.bind(c, &req) {
		return
	}
	if req.Index == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index is required"})
		return
	}
	if err := s.ctrl.SelectProfile(*req.Index); err != nil {
		s.fail(c, err)
		return
	}
	s.getProfiles(c)
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

func (s *ControlServer) getPorts(c *gin.Context) {
	ports, err := listPorts()
	if err != nil {
		s.fail(c, err)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) validateInterval(c *gin.Context) {
	var req struct {
		Value string `json:"value"`
		Unit  string `json:"unit"`
	}
	if !s.bind(c, &req) {
		return
	}

	p := s.selectedProfile()
	minInterval := sampling.FormatInterval(float64(profile.MinInterval(&p)))

	d, err := s.ctrl.ValidateInterval(req.Value, req.Unit)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"valid":        false,
			"message":      err.Error(),
			"min_interval": minInterval,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":        true,
		"interval_ms":  d.Milliseconds(),
		"min_interval": minInterval,
	})
}

func (s *ControlServer) selectedProfile() models.MProfile {
	profiles, selected := s.ctrl.Profiles()
	if selected >= 0 && selected < len(profiles) {
		return profiles[selected]
	}
	return models.MProfile{}
}

// -----------------------------------------------------------------------------

func (s *ControlServer) connect(c *gin.Context) {
	var req acquisition.ConnectRequest
	if !s.bind(c, &req) {
		return
	}
	if req.IntervalValue == "" {
		req.IntervalValue = s.Config.Sampling.IntervalValue
		req.IntervalUnit = s.Config.Sampling.IntervalUnit
	}

	if err := s.ctrl.Connect(c.Request.Context(), req); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.State(acquisition.TypeUpdate, ""))
}

// -----------------------------------------------------------------------------

func (s *ControlServer) disconnect(c *gin.Context) {
	if err := s.ctrl.Disconnect(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.ctrl.State(acquisition.TypeUpdate, ""))
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getRecentRecords(c *gin.Context) {
	records := s.ctrl.RecentRecords()
	if records == nil {
		records = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

func (s *ControlServer) addTitrationPoint(c *gin.Context) {
	var req struct {
		Volume string `json:"volume"`
	}
	if !s.bind(c, &req) {
		return
	}
	row, err := s.ctrl.AddTitrationPoint(req.Volume)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// -----------------------------------------------------------------------------

func (s *ControlServer) selectField(c *gin.Context) {
	var req struct {
		Field string `json:"field"`
	}
	if !s.bind(c, &req) {
		return
	}
	if err := s.ctrl.SelectField(req.Field); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected_field": req.Field})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) clearData(c *gin.Context) {
	s.ctrl.Clear()
	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getSeries(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Series())
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getSummary(c *gin.Context) {
	summary, err := s.ctrl.Summary(c.Query("field"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getSeriesCSV(c *gin.Context) {
	kind := c.Param("kind")
	switch kind {
	case interfaces.SeriesRealTime, interfaces.SeriesTitration, interfaces.SeriesDerivative:
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown series %q", kind)})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, kind))
	c.Status(http.StatusOK)
	if err := s.ctrl.WriteSeries(c.Writer, kind); err != nil {
		s.Logger.Error("Failed to stream %s series: %v", kind, err)
	}
}

// -----------------------------------------------------------------------------
// Export
// -----------------------------------------------------------------------------

func (s *ControlServer) exportNow(c *gin.Context) {
	paths, err := s.ctrl.ExportNow(export.PrefixManual)
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(paths) == 0 {
		c.JSON(http.StatusOK, gin.H{"files": []string{}, "message": "no data to export"})
		return
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	c.JSON(http.StatusOK, gin.H{
		"files":  paths,
		"names":  names,
		"folder": filepath.Dir(paths[0]),
	})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) getExportFolder(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"folder": s.ctrl.ExportFolder()})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) setExportFolder(c *gin.Context) {
	var req struct {
		Folder string `json:"folder"`
	}
	if !s.bind(c, &req) {
		return
	}
	if err := s.ctrl.SetExportFolder(req.Folder); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"folder": s.ctrl.ExportFolder()})
}

// -----------------------------------------------------------------------------

func (s *ControlServer) clearExportFolder(c *gin.Context) {
	s.ctrl.ClearExportFolder()
	c.Status(http.StatusNoContent)
}
