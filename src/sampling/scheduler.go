package sampling

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"serialpha/src/logger"
)

// TickFunc runs once per sampling period.
type TickFunc func(now time.Time)

// -----------------------------------------------------------------------------

// Scheduler fires TickFunc at a fixed cadence from a single goroutine.
// A tick never overlaps another; ticks missed while one runs are dropped.
type Scheduler struct {
	period time.Duration
	tick   TickFunc
	logger *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inFlight atomic.Bool
	dropped  atomic.Int64
	fired    atomic.Int64
}

// -----------------------------------------------------------------------------

func NewScheduler(period time.Duration, tick TickFunc) (*Scheduler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sampling period must be positive, got %v", period)
	}
	if tick == nil {
		return nil, fmt.Errorf("tick function is required")
	}
	return &Scheduler{
		period: period,
		tick:   tick,
		logger: logger.NewLogger(nil, "SamplingScheduler"),
		now:    time.Now,
	}, nil
}

// -----------------------------------------------------------------------------

// Period returns the sampling period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// -----------------------------------------------------------------------------

// Start fires one tick immediately and then one per period until ctx is
// cancelled or Stop is called. Starting a running scheduler restarts it.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(runCtx)
	s.logger.Info("Sampling every %v", s.period)
}

// -----------------------------------------------------------------------------

// Stop halts the ticker and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.wg.Wait()
	s.logger.Info("Sampling stopped after %d ticks (%d dropped)", s.fired.Load(), s.dropped.Load())
}

// -----------------------------------------------------------------------------

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.Tick()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// -----------------------------------------------------------------------------

// Tick runs the tick function now unless one is already running.
// It reports whether the tick ran.
func (s *Scheduler) Tick() bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.dropped.Add(1)
		return false
	}
	defer s.inFlight.Store(false)

	s.tick(s.now())
	s.fired.Add(1)
	return true
}

// Fired counts completed ticks.
func (s *Scheduler) Fired() int64 {
	return s.fired.Load()
}

// Dropped counts ticks skipped because another was still running.
func (s *Scheduler) Dropped() int64 {
	return s.dropped.Load()
}
