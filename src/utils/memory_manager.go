package utils

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"serialpha/src/logger"
)

// -----------------------------------------------------------------------------
// MemoryMonitor watches the heap of a long-running acquisition session.
// -----------------------------------------------------------------------------

type MemoryMonitor struct {
	MaxMemoryMB int
	Logger      *logger.Logger
}

// -----------------------------------------------------------------------------

func NewMemoryMonitor(maxMemoryMB int) *MemoryMonitor {
	if maxMemoryMB <= 0 {
		maxMemoryMB = DefaultMaxMemoryMB
	}
	return &MemoryMonitor{
		MaxMemoryMB: maxMemoryMB,
		Logger:      logger.NewLogger(nil, "MemoryMonitor"),
	}
}

// -----------------------------------------------------------------------------

// ProcessMemoryMB gets current heap usage in MB
func (mm *MemoryMonitor) ProcessMemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.HeapAlloc) / 1024 / 1024
}

// -----------------------------------------------------------------------------

// Check returns the current heap usage and reports whether it exceeds the
// limit. Over the limit it logs a warning and hands freed memory back to the OS.
func (mm *MemoryMonitor) Check() (float64, bool) {
	current := mm.ProcessMemoryMB()
	if current <= float64(mm.MaxMemoryMB) {
		return current, false
	}

	mm.Logger.Warning("Memory usage %.1fMB exceeds limit %dMB. Export and clear the session to release it.",
		current, mm.MaxMemoryMB)
	runtime.GC()
	debug.FreeOSMemory()
	return current, true
}

// -----------------------------------------------------------------------------

// Run calls Check every interval until ctx is done.
func (mm *MemoryMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mm.Check()
		}
	}
}
