package booking

import "errors"

var (
	// ErrServiceNotFound means the named service does not exist.
	ErrServiceNotFound = errors.New("service not found")
	// ErrSlotUnavailable means no consultant for the service can take the
	// requested slot.
	ErrSlotUnavailable = errors.New("no consultant available for slot")
	// ErrConflict means a concurrent writer claimed the slot first.
	ErrConflict = errors.New("slot already booked")
	// ErrNotFound means no active appointment matched the given ID and email;
	// the cause (wrong ID, wrong email, already cancelled) is deliberately not
	// distinguished.
	ErrNotFound = errors.New("appointment not found")
	// ErrNoChange means the appointment already has the requested service.
	ErrNoChange = errors.New("appointment already has requested service")
)
