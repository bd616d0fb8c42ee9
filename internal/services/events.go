package services

import (
	"sync"

	"github.com/xvierd/notetime/internal/domain"
)

// EventBus fans tracker events out to subscribers. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type EventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
}

type subscription struct {
	id int
	fn func(domain.TrackerEvent)
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn and returns a function that removes it.
func (b *EventBus) Subscribe(fn func(domain.TrackerEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber.
func (b *EventBus) Publish(ev domain.TrackerEvent) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, s := range subs {
		s.fn(ev)
	}
}

// Recorder collects published events. Used by tests and by the host link to
// replay recent state.
type Recorder struct {
	mu     sync.Mutex
	events []domain.TrackerEvent
}

// Record appends ev. Its signature matches EventBus.Subscribe.
func (r *Recorder) Record(ev domain.TrackerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []domain.TrackerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.TrackerEvent(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []domain.TrackerEventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]domain.TrackerEventKind, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}
