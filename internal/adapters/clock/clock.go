// Package clock provides the wall clock and a scheduler that delivers timer
// callbacks through a serializing post function.
package clock

import (
	"time"

	"github.com/xvierd/notetime/internal/ports"
)

// Real returns the actual current time.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Scheduler implements ports.Scheduler on top of time.AfterFunc. Fired
// callbacks are handed to post instead of running on the timer goroutine.
type Scheduler struct {
	post func(func())
}

// NewScheduler returns a scheduler that delivers callbacks through post.
// A nil post runs callbacks directly on the timer goroutine.
func NewScheduler(post func(func())) *Scheduler {
	return &Scheduler{post: post}
}

// Ensure Scheduler implements ports.Scheduler.
var _ ports.Scheduler = (*Scheduler)(nil)

// AfterFunc schedules f to run after d.
func (s *Scheduler) AfterFunc(d time.Duration, f func()) ports.Timer {
	t := &timer{}
	t.t = time.AfterFunc(d, func() {
		if s.post == nil {
			t.fire(f)
			return
		}
		s.post(func() { t.fire(f) })
	})
	return t
}

// timer suppresses a callback whose Stop raced with delivery through post.
type timer struct {
	t       *time.Timer
	stopped bool
}

func (t *timer) fire(f func()) {
	if t.stopped {
		return
	}
	f()
}

// Stop must be called from the same serialized context the callbacks run on.
func (t *timer) Stop() bool {
	t.stopped = true
	return t.t.Stop()
}
