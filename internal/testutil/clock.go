// Package testutil provides deterministic collaborators for tests.
package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xvierd/notetime/internal/ports"
)

// StubClock returns a settable time. Safe for concurrent use.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock creates a StubClock set to the given time.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock returns a StubClock set to 2024-01-15 10:30:00 local time.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *StubClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// FakeScheduler is a virtual-time scheduler. Callbacks fire synchronously
// inside Advance, in due order, with the clock set to their due time.
type FakeScheduler struct {
	clock  *StubClock
	seq    int
	timers []*fakeTimer
	armed  int
}

// NewFakeScheduler returns a scheduler driving clock.
func NewFakeScheduler(clock *StubClock) *FakeScheduler {
	return &FakeScheduler{clock: clock}
}

// Ensure FakeScheduler implements ports.Scheduler.
var _ ports.Scheduler = (*FakeScheduler)(nil)

type fakeTimer struct {
	s      *FakeScheduler
	due    time.Time
	seq    int
	f      func()
	active bool
}

func (t *fakeTimer) Stop() bool {
	if !t.active {
		return false
	}
	t.active = false
	t.s.armed--
	return true
}

// AfterFunc schedules f at now+d.
func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) ports.Timer {
	s.seq++
	t := &fakeTimer{s: s, due: s.clock.Now().Add(d), seq: s.seq, f: f, active: true}
	s.timers = append(s.timers, t)
	s.armed++
	return t
}

// Pending returns the number of armed timers.
func (s *FakeScheduler) Pending() int { return s.armed }

// Advance moves virtual time forward by d, firing due callbacks.
func (s *FakeScheduler) Advance(d time.Duration) {
	s.AdvanceTo(s.clock.Now().Add(d))
}

// AdvanceTo moves virtual time to target, firing due callbacks. Callbacks
// may schedule further timers; those fire too if due before target.
func (s *FakeScheduler) AdvanceTo(target time.Time) {
	for {
		next := s.nextDue(target)
		if next == nil {
			break
		}
		next.active = false
		s.armed--
		s.clock.Set(next.due)
		next.f()
	}
	if target.After(s.clock.Now()) {
		s.clock.Set(target)
	}
	s.compact()
}

func (s *FakeScheduler) nextDue(target time.Time) *fakeTimer {
	var due []*fakeTimer
	for _, t := range s.timers {
		if t.active && !t.due.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

func (s *FakeScheduler) compact() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.active {
			live = append(live, t)
		}
	}
	s.timers = live
}

// StubIDGenerator returns sequential IDs: "id-1", "id-2", etc.
type StubIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New(time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%d", g.counter)
}
