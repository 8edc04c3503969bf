package sampling

import (
	"sync"

	"serialpha/src/models"
)

// Mailbox holds the latest parsed measurement. Put overwrites, so a
// sampler that reads slower than the instrument writes sees only the newest value.
type Mailbox struct {
	mu     sync.RWMutex
	latest models.MMeasurement
}

func NewMailbox() *Mailbox {
	return &Mailbox{}
}

// Put replaces the held measurement.
func (b *Mailbox) Put(m models.MMeasurement) {
	if m == nil {
		return
	}
	b.mu.Lock()
	b.latest = m.Clone()
	b.mu.Unlock()
}

// Latest returns a copy of the held measurement, false when nothing was ever put.
func (b *Mailbox) Latest() (models.MMeasurement, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return nil, false
	}
	return b.latest.Clone(), true
}
