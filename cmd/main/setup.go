package main

import (
	"runtime/debug"

	"serialpha/src/acquisition"
	"serialpha/src/export"
	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/profile"
	"serialpha/src/storage"
	"serialpha/src/transport"
)

// -----------------------------------------------------------------------------

// setupStorage opens the persistence backend named by storage.db_type
func setupStorage(config *models.MConfig, appLogger *logger.Logger) *storage.Gateway {
	storageLogger := logger.NewLogger(config, "Storage")
	gateway, err := storage.NewGateway(config, storageLogger)
	if err != nil {
		appLogger.Critical("Failed to init storage: %v", err)
	}
	if err := gateway.Initialize(); err != nil {
		appLogger.Critical("Failed to open storage: %v", err)
	}
	appLogger.Info("Storage ready (%s)", config.Storage.DBType)
	return gateway
}

// -----------------------------------------------------------------------------

// setupMemoryLimit sets the runtime soft memory limit and returns it in MB
func setupMemoryLimit(appLogger *logger.Logger) int {
	limitMB, ok := helpers.RecommendedMemoryLimit()
	if !ok {
		appLogger.Warning("Could not determine system memory. Defaulting to %d MB.", limitMB)
	}
	debug.SetMemoryLimit(int64(limitMB) << 20)
	appLogger.Info("Memory Limit set to: %d MB", limitMB)
	return limitMB
}

// -----------------------------------------------------------------------------

// setupController wires the acquisition controller to its collaborators
func setupController(config *models.MConfig, gateway *storage.Gateway, exchange interfaces.IDataExchanger) *acquisition.Controller {
	opener := transport.NewOpener(config.Transport)
	if config.Transport.ReplayFile != "" {
		logger.NewLogger(config, "Transport").Info("Replaying %s instead of a serial port", config.Transport.ReplayFile)
	}

	return acquisition.NewController(acquisition.Options{
		Config:   config,
		Registry: profile.NewRegistry(),
		Gateway:  gateway,
		Opener:   opener,
		Sink:     export.NewCSVSink(config.Export.FallbackDir),
		Exchange: exchange,
		Errors:   helpers.NewErrorHandler(),
	})
}

// -----------------------------------------------------------------------------

// setupAutoExport schedules periodic exports. Nothing is scheduled without a
// cron spec, and a run is skipped while no export folder is chosen.
func setupAutoExport(config *models.MConfig, ctrl *acquisition.Controller, appLogger *logger.Logger) *export.AutoExporter {
	if config.Export.AutoExportCron == "" {
		return nil
	}

	exporter, err := export.NewAutoExporter(config.Export.AutoExportCron, func() {
		if ctrl.ExportFolder() == "" {
			return
		}
		paths, err := ctrl.ExportNow(export.PrefixAutosave)
		if err != nil {
			appLogger.Error("Scheduled export failed: %v", err)
			return
		}
		if len(paths) > 0 {
			appLogger.Info("Scheduled export wrote %d files", len(paths))
		}
	})
	if err != nil {
		appLogger.Error("Auto export disabled: %v", err)
		return nil
	}
	return exporter
}
