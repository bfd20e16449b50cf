package holds

import "errors"

var (
	// ErrSlotAlreadyHeld means a live hold already occupies the slot id.
	ErrSlotAlreadyHeld = errors.New("slot already held")
	// ErrHoldNotFound means no entry exists for the slot id.
	ErrHoldNotFound = errors.New("hold not found")
	// ErrHoldNotOwned means the entry belongs to a different client.
	ErrHoldNotOwned = errors.New("hold not owned by client")
	// ErrHoldExpired means the entry's TTL has elapsed.
	ErrHoldExpired = errors.New("hold expired")
)
