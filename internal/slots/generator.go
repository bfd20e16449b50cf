package slots

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"reservio/internal/catalog"
	"reservio/internal/models"
)

// ErrNoCapableProfessional is returned when nobody in the catalog can
// perform the requested service (or the preferred professional cannot).
var ErrNoCapableProfessional = errors.New("no capable professional")

// DefaultStep is the fixed increment between candidate start times.
const DefaultStep = 30 * time.Minute

// Time-of-day preference buckets. Morning runs from opening until 12:00,
// afternoon from 12:00 until 17:00, evening from 17:00 until closing.
const (
	BucketMorning   = "morning"
	BucketAfternoon = "afternoon"
	BucketEvening   = "evening"
)

// SearchRequest describes one slot search.
type SearchRequest struct {
	ServiceID               string
	From                    time.Time
	To                      time.Time
	PreferredProfessionalID string
	TimeBuckets             []string
}

// Generator enumerates raw candidate windows. It does no conflict
// filtering; every window inside working hours is emitted.
type Generator struct {
	catalog *catalog.Catalog
	step    time.Duration
}

// NewGenerator creates a generator stepping at the default 30-minute grid.
func NewGenerator(c *catalog.Catalog) *Generator {
	return &Generator{catalog: c, step: DefaultStep}
}

// Candidates enumerates every possible window for the request. Candidates
// for each professional walk the professional's open hours day by day; the
// last start is included when its end does not exceed closing time.
func (g *Generator) Candidates(req SearchRequest) ([]models.CandidateSlot, error) {
	svc := g.catalog.ServiceByID(req.ServiceID)
	if svc == nil {
		return nil, fmt.Errorf("unknown service %q", req.ServiceID)
	}

	var pros []*models.Professional
	if req.PreferredProfessionalID != "" {
		p := g.catalog.ProfessionalByID(req.PreferredProfessionalID)
		if p == nil || !p.CanPerform(req.ServiceID) {
			return nil, fmt.Errorf("%w: %q cannot perform %q",
				ErrNoCapableProfessional, req.PreferredProfessionalID, req.ServiceID)
		}
		pros = []*models.Professional{p}
	} else {
		pros = g.catalog.ProfessionalsBySkill(req.ServiceID)
		if len(pros) == 0 {
			return nil, fmt.Errorf("%w: service %q", ErrNoCapableProfessional, req.ServiceID)
		}
	}

	duration := svc.Duration()
	var candidates []models.CandidateSlot

	lastDay := dateOnly(req.To)
	for _, p := range pros {
		for day := dateOnly(req.From); !day.After(lastDay); day = day.AddDate(0, 0, 1) {
			hours, open := p.Hours[day.Weekday()]
			if !open {
				continue
			}

			opening, err := timeOnDate(day, hours.Start)
			if err != nil {
				return nil, fmt.Errorf("professional %s hours: %w", p.ID, err)
			}
			closing, err := timeOnDate(day, hours.End)
			if err != nil {
				return nil, fmt.Errorf("professional %s hours: %w", p.ID, err)
			}

			for start := opening; !start.Add(duration).After(closing); start = start.Add(g.step) {
				// The window bounds are dates; only a time-of-day on From
				// (e.g. "now") trims same-day starts.
				if start.Before(req.From) {
					continue
				}
				if !matchesBuckets(start, req.TimeBuckets) {
					continue
				}
				candidates = append(candidates, models.CandidateSlot{
					SlotID:         models.MakeSlotID(p.ID, svc.ID, start),
					Start:          start,
					End:            start.Add(duration),
					ProfessionalID: p.ID,
					ServiceID:      svc.ID,
					ResourceIDs:    append([]string(nil), svc.ResourceIDs...),
				})
			}
		}
	}

	return candidates, nil
}

// matchesBuckets reports whether the start time falls in any requested
// bucket. An empty bucket list matches everything.
func matchesBuckets(start time.Time, buckets []string) bool {
	if len(buckets) == 0 {
		return true
	}
	hour := start.Hour()
	for _, b := range buckets {
		switch b {
		case BucketMorning:
			if hour < 12 {
				return true
			}
		case BucketAfternoon:
			if hour >= 12 && hour < 17 {
				return true
			}
		case BucketEvening:
			if hour >= 17 {
				return true
			}
		}
	}
	return false
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// timeOnDate combines a calendar date with an "HH:MM" string.
func timeOnDate(date time.Time, hhmm string) (time.Time, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute: %w", err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}
