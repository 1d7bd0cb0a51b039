package store

import "errors"

var (
	// ErrDuplicateSlot indicates a booked appointment already exists for the
	// same (consultant, time) pair; the storage uniqueness constraint is the
	// sole arbiter under concurrent writes.
	ErrDuplicateSlot = errors.New("slot already booked for consultant")
	// ErrNotFound indicates no row matched a conditional update.
	ErrNotFound = errors.New("record not found")
)
