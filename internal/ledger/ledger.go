package ledger

import (
	"context"
	"time"

	"reservio/internal/models"
)

// Ledger is the system of record for confirmed bookings. Persist returns
// the generated booking id; ListBetween feeds the conflict checker with
// bookings overlapping [from, to).
type Ledger interface {
	Persist(ctx context.Context, rec models.BookingRecord) (string, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]models.BookingRecord, error)
}
