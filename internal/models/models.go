package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ResourceKind distinguishes rooms from shared equipment.
type ResourceKind string

const (
	ResourceRoom      ResourceKind = "room"
	ResourceEquipment ResourceKind = "equipment"
)

// Resource is a physical room or piece of equipment a service needs.
type Resource struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Kind ResourceKind `json:"kind"`
	// RoomID is set for equipment that lives in a specific room.
	RoomID string `json:"room_id,omitempty"`
}

// WorkingHours is an open interval for one weekday, "HH:MM" local time.
type WorkingHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Professional is a staff member who can perform services.
type Professional struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Skills     []string `json:"skills"`
	HomeRoomID string   `json:"home_room_id"`
	// Hours maps weekday to working hours; a missing weekday means closed.
	Hours         map[time.Weekday]WorkingHours `json:"hours"`
	MaxConcurrent int                           `json:"max_concurrent"`
}

// CanPerform reports whether the professional has the given service skill.
func (p *Professional) CanPerform(serviceID string) bool {
	for _, s := range p.Skills {
		if s == serviceID {
			return true
		}
	}
	return false
}

// Service describes a bookable service. DurationMinutes already includes
// pre/post buffers.
type Service struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	ResourceIDs     []string `json:"resource_ids"`
}

// Duration returns the total service duration.
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// CandidateSlot is a rankable appointment window produced by a search.
// Candidates are never persisted; they live for one search call.
type CandidateSlot struct {
	SlotID         string    `json:"slot_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	ProfessionalID string    `json:"professional_id"`
	ServiceID      string    `json:"service_id"`
	ResourceIDs    []string  `json:"resource_ids"`
	Score          int       `json:"score"`
}

// HoldStatus is the lifecycle state of a temporary reservation.
type HoldStatus string

const (
	HoldReserved  HoldStatus = "reserved"
	HoldConfirmed HoldStatus = "confirmed"
)

// Hold is a time-boxed soft lock on a slot. It carries a snapshot of the
// slot data so confirmation does not depend on the search that produced it.
type Hold struct {
	SlotID         string     `json:"slot_id"`
	ClientID       string     `json:"client_id"`
	ProfessionalID string     `json:"professional_id"`
	ServiceID      string     `json:"service_id"`
	ResourceIDs    []string   `json:"resource_ids"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	Status         HoldStatus `json:"status"`
}

// Live reports whether the hold still blocks the slot at the given instant.
func (h *Hold) Live(now time.Time) bool {
	return h.Status == HoldReserved && now.Before(h.ExpiresAt)
}

// BookingDetails is the client-supplied part of a confirmation request.
type BookingDetails struct {
	ClientName  string `json:"client_name"`
	ClientPhone string `json:"client_phone"`
	Comment     string `json:"comment,omitempty"`
}

// BookingRecord is a confirmed booking as persisted by the ledger.
type BookingRecord struct {
	ID             string    `json:"id"`
	ClientID       string    `json:"client_id"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	ProfessionalID string    `json:"professional_id"`
	ServiceID      string    `json:"service_id"`
	ResourceIDs    []string  `json:"resource_ids"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Comment        string    `json:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HoldStats is a point-in-time summary of the reservation store.
type HoldStats struct {
	LiveHolds            int            `json:"live_holds"`
	ExpiredPendingSweep  int            `json:"expired_pending_sweep"`
	ConfirmedThisSession uint64         `json:"confirmed_this_session"`
	PerClientCounts      map[string]int `json:"per_client_counts"`
	NextExpirations      []time.Time    `json:"next_expirations"`
}

// Overlaps reports whether two half-open intervals [s1,e1) and [s2,e2)
// intersect.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

const slotIDSeparator = "|"

// MakeSlotID builds the deterministic id for a candidate window. The same
// professional, service and start time always map to the same id, so two
// searches that surface the same window compete for one hold key.
func MakeSlotID(professionalID, serviceID string, start time.Time) string {
	return strings.Join([]string{professionalID, serviceID, strconv.FormatInt(start.Unix(), 10)}, slotIDSeparator)
}

// ParseSlotID recovers the parts of a slot id produced by MakeSlotID.
func ParseSlotID(slotID string) (professionalID, serviceID string, start time.Time, err error) {
	parts := strings.Split(slotID, slotIDSeparator)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", time.Time{}, fmt.Errorf("malformed slot id %q", slotID)
	}
	unix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("malformed slot id %q: %w", slotID, err)
	}
	return parts[0], parts[1], time.Unix(unix, 0).UTC(), nil
}
