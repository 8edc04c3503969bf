package session

import (
	"context"
	"sync"
	"time"

	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
)

// -----------------------------------------------------------------------------

// Persister writes session snapshots from one background goroutine.
// Requests made while a write is pending are merged into it, so callers on
// the read and sampling paths never wait for storage.
type Persister struct {
	session *Session
	gateway interfaces.IPersistenceGateway
	errors  *helpers.ErrorHandler
	logger  *logger.Logger

	mu      sync.Mutex
	pending string
	writing sync.Mutex
	signal  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	saves   int
}

// -----------------------------------------------------------------------------

func NewPersister(s *Session, gateway interfaces.IPersistenceGateway, errs *helpers.ErrorHandler) *Persister {
	if errs == nil {
		errs = helpers.NewErrorHandler()
	}
	return &Persister{
		session: s,
		gateway: gateway,
		errors:  errs,
		logger:  logger.NewLogger(nil, "Persister"),
		signal:  make(chan struct{}, 1),
	}
}

// -----------------------------------------------------------------------------

// Start runs the writer until ctx is done or Stop is called.
func (p *Persister) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(runCtx)
}

// -----------------------------------------------------------------------------

// Stop halts the writer and saves whatever request is still pending.
func (p *Persister) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()

	if reason, ok := p.take(); ok {
		p.save(reason)
	}
}

// -----------------------------------------------------------------------------

// Request schedules a save tagged with reason. It never blocks.
func (p *Persister) Request(reason string) {
	p.mu.Lock()
	p.pending = reason
	p.mu.Unlock()

	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// Flush saves synchronously, dropping any pending request it supersedes.
// It waits for a write already in progress, so its snapshot is stored last.
func (p *Persister) Flush(reason string) {
	p.take()
	p.save(reason)
}

// Saves counts completed write attempts.
func (p *Persister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// -----------------------------------------------------------------------------

func (p *Persister) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.signal:
			if reason, ok := p.take(); ok {
				p.save(reason)
			}
		}
	}
}

func (p *Persister) take() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending == "" {
		return "", false
	}
	reason := p.pending
	p.pending = ""
	return reason, true
}

func (p *Persister) save(reason string) {
	if p.gateway == nil {
		return
	}
	p.writing.Lock()
	defer p.writing.Unlock()

	snap := p.session.Snapshot(reason, time.Now())
	err := p.gateway.SaveSnapshot(snap)

	p.mu.Lock()
	p.saves++
	p.mu.Unlock()

	if err != nil {
		p.errors.Handle(err, "persist:"+reason)
		return
	}
	p.logger.Debug("Session persisted (%s)", reason)
}
