package utils

// -----------------------------------------------------------------------------

// Constants for data retention and the live chart window.
const (
	// DefaultRetentionRows caps each persisted series, newest rows kept.
	DefaultRetentionRows = 5000

	// DefaultMaxPoints is the size of the live real-time window pushed to clients.
	DefaultMaxPoints = 500

	// DefaultMaxMemoryMB is used when the system memory cannot be determined.
	DefaultMaxMemoryMB = 512
)
