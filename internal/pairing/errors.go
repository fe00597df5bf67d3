package pairing

import "errors"

var (
	// ErrInvalidOrdering is returned when a message log is not strictly ordered by id.
	ErrInvalidOrdering = errors.New("messages are not in delivery order")

	// ErrOutOfOrder is returned by Apply for a message at or before the state cursor.
	// The caller must store the message and re-pair the full log.
	ErrOutOfOrder = errors.New("message at or before pairing cursor")

	// ErrExitBeforeEntry marks an exit whose time precedes the pending entry.
	ErrExitBeforeEntry = errors.New("exit time precedes pending entry time")
)
