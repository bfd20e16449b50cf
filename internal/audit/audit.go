package audit

import (
	"sync"
	"time"
)

// Entry is one recorded engine action.
type Entry struct {
	Action    string    `json:"action"`
	SlotID    string    `json:"slot_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

// Trail keeps the most recent engine actions in a fixed-size ring. Old
// entries are overwritten once the ring fills; durable history lives in
// the booking ledger.
type Trail struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	clock   func() time.Time
}

// NewTrail builds a ring holding up to capacity entries.
func NewTrail(capacity int, clock func() time.Time) *Trail {
	if capacity <= 0 {
		capacity = 256
	}
	if clock == nil {
		clock = time.Now
	}
	return &Trail{
		entries: make([]Entry, capacity),
		clock:   clock,
	}
}

// Record appends one entry.
func (t *Trail) Record(action, slotID, clientID, outcome string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[t.next] = Entry{
		Action:    action,
		SlotID:    slotID,
		ClientID:  clientID,
		Outcome:   outcome,
		Timestamp: t.clock(),
	}
	t.next++
	if t.next == len(t.entries) {
		t.next = 0
		t.full = true
	}
}

// Entries returns the recorded entries, oldest first.
func (t *Trail) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		return append([]Entry(nil), t.entries[:t.next]...)
	}
	out := make([]Entry, 0, len(t.entries))
	out = append(out, t.entries[t.next:]...)
	out = append(out, t.entries[:t.next]...)
	return out
}

// Len reports how many entries are recorded.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.full {
		return len(t.entries)
	}
	return t.next
}
