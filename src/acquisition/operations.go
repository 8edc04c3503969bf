package acquisition

import (
	"fmt"
	"io"
	"os"
	"slices"

	"serialpha/src/analysis"
	"serialpha/src/analysis/core"
	"serialpha/src/helpers"
	"serialpha/src/models"
	"serialpha/src/profile"
)

// -----------------------------------------------------------------------------
// Startup
// -----------------------------------------------------------------------------

// Restore loads the profile registry, the last session and the export folder
// from the gateway. Every failure is logged and skipped.
func (c *Controller) Restore() {
	if c.gateway != nil {
		doc, err := c.gateway.LoadProfiles()
		if err != nil {
			c.errors.Handle(err, "persist:loadProfiles")
		}
		if doc != nil {
			c.registry.Restore(doc)
		} else if c.cfg.ProfilesFile != "" {
			c.importProfilesFile(c.cfg.ProfilesFile)
		}
	} else if c.cfg.ProfilesFile != "" {
		c.importProfilesFile(c.cfg.ProfilesFile)
	}

	p, _ := c.registry.Selected()
	c.session.SetProfile(p)
	c.logger.Info("Profile registry holds %d instrument(s), %q selected", c.registry.Len(), p.Name)

	if c.gateway != nil {
		snap, err := c.gateway.LoadSnapshot()
		if err != nil {
			c.errors.Handle(err, "persist:loadSnapshot")
		}
		c.session.Restore(snap)

		folder, err := c.gateway.LoadExportFolder()
		if err != nil {
			c.errors.Handle(err, "persist:loadExportFolder")
		}
		if folder != "" {
			c.mu.Lock()
			c.exportFolder = folder
			c.mu.Unlock()
		}
	}

	if c.exchange != nil {
		c.exchange.UpdateAllDatas(c.State(TypeInitial, ""))
	}
}

func (c *Controller) importProfilesFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.errors.Handle(helpers.NewConfigurationError("profiles file %s: %v", path, err), "profiles")
		return
	}
	if _, _, err := c.ImportProfiles(data, path); err != nil {
		c.errors.Handle(err, "profiles")
	}
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// Profiles returns the registry content and the selected index.
func (c *Controller) Profiles() ([]models.MProfile, int) {
	_, selected := c.registry.Selected()
	return c.registry.List(), selected
}

// SelectProfile changes the active profile. It is refused while connected.
func (c *Controller) SelectProfile(index int) error {
	if c.Connected() {
		return helpers.NewConfigurationError("cannot change the instrument while connected")
	}
	if err := c.registry.Select(index); err != nil {
		return err
	}
	p, _ := c.registry.Selected()
	c.session.SetProfile(p)

	c.saveProfiles()
	c.persister.Request("profileChange")
	c.publish(TypeUpdate, "")
	return nil
}

// -----------------------------------------------------------------------------

// ImportProfiles decodes an interchange document and appends its valid
// profiles. It returns how many were accepted and rejected.
func (c *Controller) ImportProfiles(data []byte, filename string) (int, int, error) {
	raw, err := profile.DecodeDocument(data, filename)
	if err != nil {
		return 0, 0, err
	}
	accepted, rejected, err := c.registry.Import(raw)
	if err != nil {
		return 0, rejected, err
	}

	c.saveProfiles()
	c.publish(TypeUpdate, "")
	return accepted, rejected, nil
}

// ExportProfiles encodes every registered profile.
func (c *Controller) ExportProfiles() ([]byte, error) {
	return profile.EncodeDocument(c.registry.List())
}

func (c *Controller) saveProfiles() {
	if c.gateway == nil {
		return
	}
	doc := c.registry.Export()
	if err := c.gateway.SaveProfiles(&doc); err != nil {
		c.errors.Handle(err, "persist:profiles")
	}
}

// -----------------------------------------------------------------------------
// Session operations
// -----------------------------------------------------------------------------

// AddTitrationPoint appends a titration row. The increment is parsed the way
// the operator typed it; non-numeric text counts as zero.
func (c *Controller) AddTitrationPoint(volume string) (models.MTitrationRow, error) {
	increment := analysis.ParseVolumeIncrement(volume)
	row, ok := c.session.AddPoint(float64(increment), c.now())
	if !ok {
		return models.MTitrationRow{}, helpers.NewConfigurationError("no measurement received yet")
	}
	c.persister.Request("titAdd")
	c.publish(TypeUpdate, "")
	return row, nil
}

// SelectField changes the charted field and rebuilds the derivative for it.
func (c *Controller) SelectField(field string) error {
	if err := c.session.SelectField(field); err != nil {
		return err
	}
	c.persister.Request("rtFieldChange")
	c.publish(TypeUpdate, "")
	return nil
}

// Clear drops all series, counters and the raw record log. The connection stays open.
func (c *Controller) Clear() {
	c.session.Clear()
	c.mu.Lock()
	c.recent.Clear()
	c.mu.Unlock()
	c.persister.Request("clear")
	c.publish(TypeUpdate, "")
}

// -----------------------------------------------------------------------------

// Series returns the full session data.
func (c *Controller) Series() models.MExportData {
	return c.session.ExportData()
}

// Summary describes the selected field, or field when given, over the real-time series.
func (c *Controller) Summary(field string) (models.MSeriesSummary, error) {
	if field == "" {
		field = c.session.SelectedField()
	}
	data := c.session.ExportData()
	if !slices.Contains(data.Fields, field) {
		return models.MSeriesSummary{}, helpers.NewConfigurationError("unknown field %q", field)
	}
	return core.Summarize(field, core.FieldValues(data.RealTime, field)), nil
}

// WriteSeries streams one series as CSV.
func (c *Controller) WriteSeries(w io.Writer, series string) error {
	return c.sink.WriteSeries(w, series, c.session.ExportData())
}

// -----------------------------------------------------------------------------
// Export
// -----------------------------------------------------------------------------

// ExportFolder returns the remembered export folder, "" when disabled.
func (c *Controller) ExportFolder() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exportFolder
}

// SetExportFolder enables exports to folder after checking it can be used.
func (c *Controller) SetExportFolder(folder string) error {
	if folder == "" {
		return helpers.NewConfigurationError("export folder is required")
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return helpers.NewExportError(fmt.Sprintf("export folder %s unavailable", folder), err)
	}
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return helpers.NewExportError(fmt.Sprintf("%s is not a directory", folder), err)
	}

	c.mu.Lock()
	c.exportFolder = folder
	c.mu.Unlock()

	if c.gateway != nil {
		if err := c.gateway.SaveExportFolder(folder); err != nil {
			c.errors.Handle(err, "persist:exportFolder")
		}
	}
	c.logger.Info("Export folder set to %s", folder)
	return nil
}

// ClearExportFolder disables folder exports; exports then go to the fallback directory.
func (c *Controller) ClearExportFolder() {
	c.mu.Lock()
	c.exportFolder = ""
	c.mu.Unlock()

	if c.gateway != nil {
		if err := c.gateway.SaveExportFolder(""); err != nil {
			c.errors.Handle(err, "persist:exportFolder")
		}
	}
	c.logger.Info("Export folder cleared")
}

// ExportNow writes the session to the export folder, or to the fallback
// directory when the folder is unset or unusable.
func (c *Controller) ExportNow(prefix string) ([]string, error) {
	data := c.session.ExportData()
	if len(data.RealTime) == 0 && len(data.Titration) == 0 && len(data.Derivative) == 0 {
		return nil, nil
	}
	return c.sink.ExportWithFallback(c.ExportFolder(), prefix, data)
}
