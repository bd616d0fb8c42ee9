// Package domain contains the core entities of notetime: activity events,
// tracking sessions, time entries and the aggregated statistics derived from
// them. These types are independent of storage, transport and rendering.
package domain

import "errors"

// Common domain errors.
var (
	ErrInvalidEntry      = errors.New("invalid time entry")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrCorruptData       = errors.New("corrupt tracker data")
	ErrDataNotFound      = errors.New("tracker data not found")
	ErrNotTracking       = errors.New("tracking is not active")
	ErrUnknownExportKind = errors.New("unknown export kind")
	ErrUnknownEventType  = errors.New("unknown activity event type")
	ErrDuplicateEntry    = errors.New("time entry already recorded")
)
