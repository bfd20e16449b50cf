package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"reservio/internal/audit"
	"reservio/internal/catalog"
	"reservio/internal/events"
	"reservio/internal/holds"
	"reservio/internal/ledger"
	"reservio/internal/metrics"
	"reservio/internal/models"
	"reservio/internal/slots"
)

var (
	// ErrValidation covers malformed requests: bad windows, unknown ids,
	// nonsense TTLs.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps ledger failures during confirmation. The hold
	// stays live so the client can retry.
	ErrPersistence = errors.New("persistence failure")
)

// Options tunes the engine.
type Options struct {
	// MaxWindowDays caps the search window length.
	MaxWindowDays int
	// TopN is how many ranked candidates a search returns.
	TopN int
	// Weights configures the ranking heuristic.
	Weights slots.ScoreWeights
	// Clock is the time source; nil means time.Now.
	Clock holds.Clock
}

// DefaultOptions returns the standard engine tuning.
func DefaultOptions() Options {
	return Options{
		MaxWindowDays: 90,
		TopN:          slots.DefaultTopN,
		Weights:       slots.DefaultScoreWeights(),
	}
}

// Engine ties catalog, slot generation, the hold store and the booking
// ledger into the reserve-then-confirm flow the API exposes.
type Engine struct {
	catalog *catalog.Catalog
	gen     *slots.Generator
	checker *slots.ConflictChecker
	ranker  *slots.Ranker
	store   *holds.Store
	ledger  ledger.Ledger
	bus     *events.Bus
	trail   *audit.Trail

	opts   Options
	clock  holds.Clock
	logger *zerolog.Logger
}

// NewEngine wires the engine together.
func NewEngine(cat *catalog.Catalog, store *holds.Store, l ledger.Ledger, bus *events.Bus, trail *audit.Trail, opts Options, logger *zerolog.Logger) *Engine {
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = DefaultOptions().MaxWindowDays
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		catalog: cat,
		gen:     slots.NewGenerator(cat),
		checker: slots.NewConflictChecker(cat),
		ranker:  slots.NewRanker(opts.Weights, opts.TopN),
		store:   store,
		ledger:  l,
		bus:     bus,
		trail:   trail,
		opts:    opts,
		clock:   opts.Clock,
		logger:  logger,
	}
}

// SearchSlots enumerates, filters and ranks candidate windows for the
// request. Conflicting candidates are dropped silently; only structural
// problems surface as errors.
func (e *Engine) SearchSlots(ctx context.Context, req slots.SearchRequest) ([]models.CandidateSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := e.clock()
	if req.From.IsZero() {
		req.From = now
	}
	if req.To.IsZero() {
		req.To = req.From.AddDate(0, 0, 7)
	}
	if req.To.Before(req.From) {
		return nil, fmt.Errorf("%w: window end before start", ErrValidation)
	}
	if req.To.Sub(req.From) > time.Duration(e.opts.MaxWindowDays)*24*time.Hour {
		return nil, fmt.Errorf("%w: window longer than %d days", ErrValidation, e.opts.MaxWindowDays)
	}
	if e.catalog.ServiceByID(req.ServiceID) == nil {
		return nil, fmt.Errorf("%w: unknown service %q", ErrValidation, req.ServiceID)
	}

	candidates, err := e.gen.Candidates(req)
	if err != nil {
		return nil, err
	}

	bookings, err := e.ledger.ListBetween(ctx, req.From, req.To.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("%w: list bookings: %v", ErrPersistence, err)
	}

	surviving := e.checker.Filter(candidates, bookings, e.store.Snapshot())
	ranked := e.ranker.Rank(surviving, now)

	metrics.IncSlotSearch()
	e.publish(events.Event{Type: events.TypeSearchPerformed, Count: len(ranked)})
	e.logger.Debug().
		Str("service_id", req.ServiceID).
		Int("candidates", len(candidates)).
		Int("surviving", len(surviving)).
		Int("returned", len(ranked)).
		Msg("slot search")

	return ranked, nil
}

// HoldSlot places a TTL hold on the slot for the client. The slot id is
// self-describing, so the window is reconstructed from the catalog and
// checked against bookings and other live holds before the store commits.
func (e *Engine) HoldSlot(ctx context.Context, slotID, clientID string, ttl time.Duration) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if clientID == "" {
		return time.Time{}, fmt.Errorf("%w: client id required", ErrValidation)
	}
	if ttl < 0 {
		return time.Time{}, fmt.Errorf("%w: negative ttl", ErrValidation)
	}

	cand, err := e.resolveSlot(slotID)
	if err != nil {
		return time.Time{}, err
	}

	bookings, err := e.ledger.ListBetween(ctx, cand.Start, cand.End)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: list bookings: %v", ErrPersistence, err)
	}
	if e.checker.Conflicts(cand, bookings, e.otherHolds(slotID)) {
		metrics.IncHoldPlaced("conflict")
		e.record("hold", slotID, clientID, "conflict")
		return time.Time{}, holds.ErrSlotAlreadyHeld
	}

	expires, err := e.store.Hold(ctx, cand, clientID, ttl)
	if err != nil {
		metrics.IncHoldPlaced("conflict")
		e.record("hold", slotID, clientID, "conflict")
		return time.Time{}, err
	}

	metrics.IncHoldPlaced("ok")
	e.record("hold", slotID, clientID, "ok")
	e.publish(events.Event{Type: events.TypeHoldCreated, SlotID: slotID, ClientID: clientID})
	e.logger.Info().
		Str("slot_id", slotID).
		Str("client_id", clientID).
		Time("expires_at", expires).
		Msg("hold placed")

	return expires, nil
}

// ExtendHold pushes a live hold's expiry further out.
func (e *Engine) ExtendHold(ctx context.Context, slotID, clientID string, extra time.Duration) (time.Time, error) {
	if extra <= 0 {
		return time.Time{}, fmt.Errorf("%w: extension must be positive", ErrValidation)
	}

	expires, err := e.store.Extend(ctx, slotID, clientID, extra)
	if err != nil {
		e.record("extend", slotID, clientID, "error")
		return time.Time{}, err
	}

	e.record("extend", slotID, clientID, "ok")
	e.publish(events.Event{Type: events.TypeHoldExtended, SlotID: slotID, ClientID: clientID})
	return expires, nil
}

// ReleaseHold gives the slot back. Releasing an absent hold is a no-op.
func (e *Engine) ReleaseHold(ctx context.Context, slotID, clientID string) error {
	if err := e.store.Release(ctx, slotID, clientID); err != nil {
		e.record("release", slotID, clientID, "error")
		return err
	}

	metrics.IncHoldReleased()
	e.record("release", slotID, clientID, "ok")
	e.publish(events.Event{Type: events.TypeHoldReleased, SlotID: slotID, ClientID: clientID})
	return nil
}

// ReleaseAllForClient drops every live hold owned by the client.
func (e *Engine) ReleaseAllForClient(ctx context.Context, clientID string) (int, error) {
	if clientID == "" {
		return 0, fmt.Errorf("%w: client id required", ErrValidation)
	}

	removed, err := e.store.ReleaseAllForClient(ctx, clientID)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.record("release_all", "", clientID, fmt.Sprintf("removed %d", removed))
		e.publish(events.Event{Type: events.TypeHoldReleased, ClientID: clientID, Count: removed})
	}
	return removed, nil
}

// IsAvailable reports whether the slot id currently has no live hold.
func (e *Engine) IsAvailable(slotID string) (bool, error) {
	if _, _, _, err := models.ParseSlotID(slotID); err != nil {
		return false, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return e.store.IsAvailable(slotID), nil
}

// Confirm converts a live hold into a persisted booking. The hold is only
// consumed after the ledger write succeeds; a persistence failure leaves
// it live for an idempotent retry. On success every other hold of the
// client is released.
func (e *Engine) Confirm(ctx context.Context, slotID, clientID string, details models.BookingDetails) (models.BookingRecord, error) {
	if details.ClientName == "" {
		return models.BookingRecord{}, fmt.Errorf("%w: client name required", ErrValidation)
	}

	h, err := e.store.CheckConfirmable(ctx, slotID, clientID)
	if err != nil {
		metrics.IncBookingConfirmed("rejected")
		e.record("confirm", slotID, clientID, "rejected")
		return models.BookingRecord{}, err
	}

	rec := models.BookingRecord{
		ClientID:       clientID,
		ClientName:     details.ClientName,
		ClientPhone:    details.ClientPhone,
		ProfessionalID: h.ProfessionalID,
		ServiceID:      h.ServiceID,
		ResourceIDs:    h.ResourceIDs,
		Start:          h.Start,
		End:            h.End,
		Comment:        details.Comment,
		CreatedAt:      e.clock(),
	}

	id, err := e.ledger.Persist(ctx, rec)
	if err != nil {
		metrics.IncBookingConfirmed("persistence_error")
		e.record("confirm", slotID, clientID, "persistence_error")
		e.logger.Error().Err(err).Str("slot_id", slotID).Msg("booking persist failed, hold kept")
		return models.BookingRecord{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	rec.ID = id

	if err := e.store.Confirm(ctx, slotID, clientID); err != nil {
		// The booking is already durable; a raced hold state is logged,
		// not surfaced.
		e.logger.Warn().Err(err).Str("slot_id", slotID).Msg("hold vanished after persist")
	}

	released, _ := e.store.ReleaseAllForClient(ctx, clientID)

	metrics.IncBookingConfirmed("ok")
	e.record("confirm", slotID, clientID, "ok")
	e.publish(events.Event{Type: events.TypeBookingConfirmed, SlotID: slotID, ClientID: clientID, BookingID: id})
	e.logger.Info().
		Str("booking_id", id).
		Str("slot_id", slotID).
		Str("client_id", clientID).
		Int("other_holds_released", released).
		Msg("booking confirmed")

	return rec, nil
}

// Stats summarizes the hold store and refreshes the hold gauges.
func (e *Engine) Stats() models.HoldStats {
	stats := e.store.Stats()
	metrics.SetLiveHolds(stats.LiveHolds)
	metrics.SetExpiredPendingSweep(stats.ExpiredPendingSweep)
	return stats
}

// Trail exposes the audit trail for the export endpoint.
func (e *Engine) Trail() *audit.Trail {
	return e.trail
}

// Ledger exposes the booking ledger for the export endpoint.
func (e *Engine) Ledger() ledger.Ledger {
	return e.ledger
}

// DefaultTTL exposes the store's default hold TTL.
func (e *Engine) DefaultTTL() time.Duration {
	return e.store.DefaultTTL()
}

// resolveSlot validates the slot id against the catalog and rebuilds the
// candidate it denotes.
func (e *Engine) resolveSlot(slotID string) (models.CandidateSlot, error) {
	proID, svcID, start, err := models.ParseSlotID(slotID)
	if err != nil {
		return models.CandidateSlot{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	pro := e.catalog.ProfessionalByID(proID)
	if pro == nil {
		return models.CandidateSlot{}, fmt.Errorf("%w: unknown professional %q", ErrValidation, proID)
	}
	svc := e.catalog.ServiceByID(svcID)
	if svc == nil {
		return models.CandidateSlot{}, fmt.Errorf("%w: unknown service %q", ErrValidation, svcID)
	}
	if !pro.CanPerform(svcID) {
		return models.CandidateSlot{}, fmt.Errorf("%w: %q cannot perform %q", slots.ErrNoCapableProfessional, proID, svcID)
	}

	return models.CandidateSlot{
		SlotID:         slotID,
		Start:          start,
		End:            start.Add(svc.Duration()),
		ProfessionalID: proID,
		ServiceID:      svcID,
		ResourceIDs:    append([]string(nil), svc.ResourceIDs...),
	}, nil
}

// otherHolds returns the live holds snapshot minus the given slot id, so
// re-holding an expired entry is not blocked by its own key.
func (e *Engine) otherHolds(slotID string) []models.Hold {
	snap := e.store.Snapshot()
	out := snap[:0]
	for _, h := range snap {
		if h.SlotID != slotID {
			out = append(out, h)
		}
	}
	return out
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) record(action, slotID, clientID, outcome string) {
	if e.trail != nil {
		e.trail.Record(action, slotID, clientID, outcome)
	}
}
