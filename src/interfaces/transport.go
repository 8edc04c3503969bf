package interfaces

import (
	"context"

	"serialpha/src/models"
)

// -----------------------------------------------------------------------------
// ITransport is an open byte stream from an instrument.
// -----------------------------------------------------------------------------

type ITransport interface {

	// Read blocks until text is available, the stream ends, or ctx is done.
	// A chunk with EndOfStream set carries no more data after it.
	// Errors satisfying helpers.IsHardTransportError end the session.
	Read(ctx context.Context) (models.MChunk, error)

	// -----------------------------------------------------------------------------

	// Describe returns a human-readable port description
	Describe() string

	// -----------------------------------------------------------------------------

	// Close releases the port. It unblocks a pending Read.
	Close() error
}

// -----------------------------------------------------------------------------
// ITransportOpener opens a transport for a profile.
// -----------------------------------------------------------------------------

type ITransportOpener interface {
	Open(ctx context.Context, profile models.MProfile, port string) (ITransport, error)
}
