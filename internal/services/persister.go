package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// Persister writes the aggregate document on a debounced and a periodic
// schedule. A failed write is logged and left for the next scheduled save.
// Not safe for concurrent use.
type Persister struct {
	store    ports.StatsStore
	sched    ports.Scheduler
	snapshot func() *domain.TrackerData
	logger   logging.Logger

	debounce time.Duration
	interval time.Duration

	debounceTimer ports.Timer
	intervalTimer ports.Timer
	dirty         bool
	running       bool
}

// NewPersister creates a persister that saves snapshot() to store.
func NewPersister(store ports.StatsStore, sched ports.Scheduler, snapshot func() *domain.TrackerData, debounce, interval time.Duration, logger logging.Logger) *Persister {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Persister{
		store:    store,
		sched:    sched,
		snapshot: snapshot,
		logger:   logger,
		debounce: debounce,
		interval: interval,
	}
}

// Start arms the periodic save.
func (p *Persister) Start() {
	if p.running {
		return
	}
	p.running = true
	p.armInterval()
}

// MarkDirty records an in-memory change and (re)arms the debounced save.
func (p *Persister) MarkDirty() {
	p.dirty = true
	if !p.running || p.sched == nil {
		return
	}
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
	}
	p.debounceTimer = p.sched.AfterFunc(p.debounce, func() {
		p.debounceTimer = nil
		p.save(context.Background())
	})
}

// Dirty reports whether there are unsaved changes.
func (p *Persister) Dirty() bool { return p.dirty }

// Flush saves pending changes now.
func (p *Persister) Flush(ctx context.Context) error {
	if !p.dirty {
		return nil
	}
	if err := p.store.Save(ctx, p.snapshot()); err != nil {
		return fmt.Errorf("failed to save tracker data: %w", err)
	}
	p.dirty = false
	return nil
}

// Stop cancels the timers and flushes pending changes.
func (p *Persister) Stop(ctx context.Context) error {
	p.running = false
	if p.debounceTimer != nil {
		p.debounceTimer.Stop()
		p.debounceTimer = nil
	}
	if p.intervalTimer != nil {
		p.intervalTimer.Stop()
		p.intervalTimer = nil
	}
	return p.Flush(ctx)
}

func (p *Persister) armInterval() {
	if p.sched == nil || p.interval <= 0 {
		return
	}
	p.intervalTimer = p.sched.AfterFunc(p.interval, func() {
		p.intervalTimer = nil
		p.save(context.Background())
		if p.running {
			p.armInterval()
		}
	})
}

func (p *Persister) save(ctx context.Context) {
	if err := p.Flush(ctx); err != nil {
		p.logger.Error("save failed, will retry on next save", "error", err)
	}
}
