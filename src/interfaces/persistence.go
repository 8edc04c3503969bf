package interfaces

import "serialpha/src/models"

// -----------------------------------------------------------------------------
// IPersistenceGateway keeps session state across restarts.
// Callers log and swallow its errors; acquisition never stops on them.
// -----------------------------------------------------------------------------

type IPersistenceGateway interface {

	// Initialize sets up the backing schema.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveSnapshot stores the session, capping each series to the retention limit.
	SaveSnapshot(snapshot *models.MSessionSnapshot) error

	// -----------------------------------------------------------------------------

	// LoadSnapshot returns the stored session, or nil when there is none.
	LoadSnapshot() (*models.MSessionSnapshot, error)

	// -----------------------------------------------------------------------------

	// SaveExportFolder remembers the export folder token; empty disables it.
	SaveExportFolder(folder string) error

	// -----------------------------------------------------------------------------

	// LoadExportFolder returns the remembered folder, or "".
	LoadExportFolder() (string, error)

	// -----------------------------------------------------------------------------

	// SaveProfiles stores the profile registry.
	SaveProfiles(doc *models.MProfileDocument) error

	// -----------------------------------------------------------------------------

	// LoadProfiles returns the stored registry, or nil when there is none.
	LoadProfiles() (*models.MProfileDocument, error)

	// -----------------------------------------------------------------------------

	// Close the connection
	Close() error
}
