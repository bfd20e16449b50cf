package slots

import (
	"reservio/internal/catalog"
	"reservio/internal/models"
)

// ConflictChecker removes candidates that collide with confirmed bookings
// or live holds. Conflicts never surface as errors; they only shrink the
// candidate list.
type ConflictChecker struct {
	catalog *catalog.Catalog
}

// NewConflictChecker creates a checker backed by the resource catalog.
func NewConflictChecker(c *catalog.Catalog) *ConflictChecker {
	return &ConflictChecker{catalog: c}
}

// Filter returns the candidates that survive conflict checking against the
// given confirmed bookings and live holds.
func (c *ConflictChecker) Filter(candidates []models.CandidateSlot, bookings []models.BookingRecord, holds []models.Hold) []models.CandidateSlot {
	if len(candidates) == 0 {
		return nil
	}
	surviving := make([]models.CandidateSlot, 0, len(candidates))
	for _, cand := range candidates {
		if !c.Conflicts(cand, bookings, holds) {
			surviving = append(surviving, cand)
		}
	}
	return surviving
}

// Conflicts reports whether the candidate collides with any booking or
// live hold. A professional is exclusive across their own bookings and
// holds. Equipment is exclusive globally: two professionals sharing one
// machine can never overlap on it. Rooms are only exclusive through their
// professional, so they need no separate check here.
func (c *ConflictChecker) Conflicts(cand models.CandidateSlot, bookings []models.BookingRecord, holds []models.Hold) bool {
	equipment := c.catalog.EquipmentIDs(cand.ResourceIDs)

	for i := range bookings {
		b := &bookings[i]
		if !models.Overlaps(cand.Start, cand.End, b.Start, b.End) {
			continue
		}
		if b.ProfessionalID == cand.ProfessionalID {
			return true
		}
		if sharesResource(equipment, b.ResourceIDs) {
			return true
		}
	}

	for i := range holds {
		h := &holds[i]
		if !models.Overlaps(cand.Start, cand.End, h.Start, h.End) {
			continue
		}
		if h.ProfessionalID == cand.ProfessionalID {
			return true
		}
		if sharesResource(equipment, h.ResourceIDs) {
			return true
		}
	}

	return false
}

func sharesResource(equipment, other []string) bool {
	for _, e := range equipment {
		for _, o := range other {
			if e == o {
				return true
			}
		}
	}
	return false
}
