package transport

import (
	"time"

	"serialpha/src/interfaces"
	"serialpha/src/models"
)

var (
	_ interfaces.ITransportOpener = (*SerialOpener)(nil)
	_ interfaces.ITransportOpener = (*ReplayOpener)(nil)
	_ interfaces.ITransport       = (*ReaderTransport)(nil)
)

// NewOpener returns the replay opener when a replay file is configured,
// the serial opener otherwise.
func NewOpener(cfg models.MTransportConfig) interfaces.ITransportOpener {
	if cfg.ReplayFile != "" {
		return NewReplayOpener(cfg.ReplayFile, cfg.ReplayChunk, time.Duration(cfg.ReplayDelayMs)*time.Millisecond)
	}
	return NewSerialOpener(time.Duration(cfg.ReadTimeoutMs) * time.Millisecond)
}
