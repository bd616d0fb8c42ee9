package ports

import "time"

// Clock abstracts time retrieval so the state machine is deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Scheduler runs single-shot callbacks after a delay. Implementations must
// deliver callbacks on the same serialized context as every other entry into
// the core.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}
