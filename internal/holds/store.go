package holds

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"reservio/internal/models"
)

// Clock is the injected time source. Production wiring passes time.Now;
// tests pass a controllable clock.
type Clock func() time.Time

// Config holds store tuning knobs.
type Config struct {
	// DefaultTTL applies when a hold request does not specify one.
	DefaultTTL time.Duration
	// SweepInterval is how often the background sweep runs. The sweep is
	// memory hygiene only; expiry correctness comes from lazy evaluation
	// on every read.
	SweepInterval time.Duration
	// SweepBatch caps how many entries one locked pass may delete before
	// yielding the lock.
	SweepBatch int
	// OnExpired, when set, is called outside the lock for every entry
	// the sweep removes.
	OnExpired func(models.Hold)
}

// DefaultConfig returns the standard store configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:    5 * time.Minute,
		SweepInterval: 30 * time.Second,
		SweepBatch:    64,
	}
}

// Store keeps temporary holds in memory, keyed by slot id. All mutations
// are atomic check-then-write under one mutex, so two concurrent callers
// can never both hold the same slot. Holds are deliberately ephemeral:
// a restart drops them all.
type Store struct {
	mu    sync.Mutex
	holds map[string]*models.Hold

	cfg    Config
	clock  Clock
	logger *zerolog.Logger

	confirmed uint64

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewStore constructs an empty store.
func NewStore(cfg Config, clock Clock, logger *zerolog.Logger) *Store {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = DefaultConfig().SweepBatch
	}
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		holds:  make(map[string]*models.Hold),
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// DefaultTTL exposes the configured default hold TTL.
func (s *Store) DefaultTTL() time.Duration {
	return s.cfg.DefaultTTL
}

// Hold places a hold on the slot for the client. It fails with
// ErrSlotAlreadyHeld when a live hold occupies the slot id; an expired
// leftover entry is overwritten. Returns the expiry time.
func (s *Store) Hold(ctx context.Context, slot models.CandidateSlot, clientID string, ttl time.Duration) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if existing, ok := s.holds[slot.SlotID]; ok && existing.Live(now) {
		return time.Time{}, ErrSlotAlreadyHeld
	}

	h := &models.Hold{
		SlotID:         slot.SlotID,
		ClientID:       clientID,
		ProfessionalID: slot.ProfessionalID,
		ServiceID:      slot.ServiceID,
		ResourceIDs:    append([]string(nil), slot.ResourceIDs...),
		Start:          slot.Start,
		End:            slot.End,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		Status:         models.HoldReserved,
	}
	s.holds[slot.SlotID] = h
	return h.ExpiresAt, nil
}

// Extend pushes a live hold's expiry further out.
func (s *Store) Extend(ctx context.Context, slotID, clientID string, extra time.Duration) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[slotID]
	if !ok || h.Status != models.HoldReserved {
		return time.Time{}, ErrHoldNotFound
	}
	if h.ClientID != clientID {
		return time.Time{}, ErrHoldNotOwned
	}
	if !s.clock().Before(h.ExpiresAt) {
		return time.Time{}, ErrHoldExpired
	}

	h.ExpiresAt = h.ExpiresAt.Add(extra)
	return h.ExpiresAt, nil
}

// Release removes the entry for the slot id if present. An empty clientID
// releases regardless of owner; otherwise the owner must match.
func (s *Store) Release(ctx context.Context, slotID, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[slotID]
	if !ok {
		return nil
	}
	if clientID != "" && h.ClientID != clientID {
		return ErrHoldNotOwned
	}
	delete(s.holds, slotID)
	return nil
}

// ReleaseAllForClient removes every live hold owned by the client and
// returns how many were removed. Expired leftovers are not counted; the
// sweep owns those.
func (s *Store) ReleaseAllForClient(ctx context.Context, clientID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	removed := 0
	for id, h := range s.holds {
		if h.ClientID == clientID && h.Live(now) {
			delete(s.holds, id)
			removed++
		}
	}
	return removed, nil
}

// IsAvailable reports whether no live hold exists for the slot id. Expiry
// is evaluated lazily here, so the answer is correct even if the sweep
// never ran.
func (s *Store) IsAvailable(slotID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[slotID]
	return !ok || !h.Live(s.clock())
}

// Snapshot returns a copy of all live holds for conflict checking.
func (s *Store) Snapshot() []models.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	out := make([]models.Hold, 0, len(s.holds))
	for _, h := range s.holds {
		if h.Live(now) {
			out = append(out, *h)
		}
	}
	return out
}

// Get returns a copy of the entry for the slot id, expired or not.
func (s *Store) Get(slotID string) (models.Hold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[slotID]
	if !ok {
		return models.Hold{}, false
	}
	return *h, true
}

// CheckConfirmable validates that the hold exists, belongs to the client
// and has not expired, returning a copy for the confirmation flow. The
// hold itself is untouched, so a failed downstream persist leaves it live
// for an idempotent retry.
func (s *Store) CheckConfirmable(ctx context.Context, slotID, clientID string) (models.Hold, error) {
	if err := ctx.Err(); err != nil {
		return models.Hold{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[slotID]
	if !ok || h.Status != models.HoldReserved {
		return models.Hold{}, ErrHoldNotFound
	}
	if h.ClientID != clientID {
		return models.Hold{}, ErrHoldNotOwned
	}
	if !s.clock().Before(h.ExpiresAt) {
		return models.Hold{}, ErrHoldExpired
	}
	return *h, nil
}

// Confirm marks the hold consumed and removes its entry. Called after the
// booking persisted. The slot id becomes reusable immediately.
func (s *Store) Confirm(ctx context.Context, slotID, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holds[slotID]
	if !ok {
		return ErrHoldNotFound
	}
	if h.ClientID != clientID {
		return ErrHoldNotOwned
	}
	h.Status = models.HoldConfirmed
	delete(s.holds, slotID)
	s.confirmed++
	return nil
}

// Stats summarizes the store at this instant.
func (s *Store) Stats() models.HoldStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	stats := models.HoldStats{
		ConfirmedThisSession: s.confirmed,
		PerClientCounts:      make(map[string]int),
	}

	var expirations []time.Time
	for _, h := range s.holds {
		if h.Live(now) {
			stats.LiveHolds++
			stats.PerClientCounts[h.ClientID]++
			expirations = append(expirations, h.ExpiresAt)
		} else {
			stats.ExpiredPendingSweep++
		}
	}

	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })
	if len(expirations) > 5 {
		expirations = expirations[:5]
	}
	stats.NextExpirations = expirations
	return stats
}

// Start runs the periodic sweep until the context is cancelled or Stop is
// called. Same loop shape as the rest of our background schedulers.
func (s *Store) Start(ctx context.Context) {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	s.running = true
	s.runMu.Unlock()

	if s.logger != nil {
		s.logger.Info().Dur("interval", s.cfg.SweepInterval).Msg("hold sweep started")
	}

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Stop stops the sweep loop.
func (s *Store) Stop() {
	s.runMu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.runMu.Unlock()
}

// Sweep removes expired entries in batches, releasing the lock between
// batches so request handling never stalls behind a full map scan.
// Returns the number of entries removed.
func (s *Store) Sweep() int {
	var removed []models.Hold
	for {
		batch := s.sweepBatch()
		removed = append(removed, batch...)
		if len(batch) < s.cfg.SweepBatch {
			break
		}
	}
	if s.cfg.OnExpired != nil {
		for _, h := range removed {
			s.cfg.OnExpired(h)
		}
	}
	if len(removed) > 0 && s.logger != nil {
		s.logger.Debug().Int("removed", len(removed)).Msg("swept expired holds")
	}
	return len(removed)
}

func (s *Store) sweepBatch() []models.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var removed []models.Hold
	for id, h := range s.holds {
		if !h.Live(now) {
			delete(s.holds, id)
			removed = append(removed, *h)
			if len(removed) >= s.cfg.SweepBatch {
				break
			}
		}
	}
	return removed
}
