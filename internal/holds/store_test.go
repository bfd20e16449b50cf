package holds

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservio/internal/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testSlot(id string) models.CandidateSlot {
	start := time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC)
	return models.CandidateSlot{
		SlotID:         id,
		Start:          start,
		End:            start.Add(30 * time.Minute),
		ProfessionalID: "p-anna",
		ServiceID:      "svc-massage",
	}
}

func newTestStore(clock *fakeClock) *Store {
	logger := zerolog.New(io.Discard)
	return NewStore(DefaultConfig(), clock.Now, &logger)
}

func TestHoldAndAvailability(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	expires, err := s.Hold(ctx, testSlot("s1"), "client-1", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(5*time.Minute), expires)
	assert.False(t, s.IsAvailable("s1"))
	assert.True(t, s.IsAvailable("s2"))
}

func TestHoldConflict(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Minute)
	require.NoError(t, err)

	_, err = s.Hold(ctx, testSlot("s1"), "client-2", time.Minute)
	assert.ErrorIs(t, err, ErrSlotAlreadyHeld)
}

func TestConcurrentHoldExactlyOneWins(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	const goroutines = 32
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = s.Hold(ctx, testSlot("contested"), "client", time.Minute)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrSlotAlreadyHeld)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestLazyExpiryWithoutSweep(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock) // sweep never started
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Second)
	require.NoError(t, err)
	assert.False(t, s.IsAvailable("s1"))

	clock.Advance(2 * time.Second)
	assert.True(t, s.IsAvailable("s1"), "expiry must not depend on the sweep")

	// The freed slot id can be held again by someone else.
	_, err = s.Hold(ctx, testSlot("s1"), "client-2", time.Minute)
	assert.NoError(t, err)
}

func TestExtend(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	expires, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Minute)
	require.NoError(t, err)

	extended, err := s.Extend(ctx, "s1", "client-1", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, expires.Add(30*time.Second), extended)

	_, err = s.Extend(ctx, "s1", "client-2", time.Second)
	assert.ErrorIs(t, err, ErrHoldNotOwned)

	_, err = s.Extend(ctx, "missing", "client-1", time.Second)
	assert.ErrorIs(t, err, ErrHoldNotFound)

	clock.Advance(5 * time.Minute)
	_, err = s.Extend(ctx, "s1", "client-1", time.Second)
	assert.ErrorIs(t, err, ErrHoldExpired)
}

func TestRelease(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Minute)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Release(ctx, "s1", "client-2"), ErrHoldNotOwned)
	assert.NoError(t, s.Release(ctx, "s1", "client-1"))
	assert.True(t, s.IsAvailable("s1"))

	// Absent entry is a no-op, not an error.
	assert.NoError(t, s.Release(ctx, "s1", "client-1"))

	// Owner check skipped without a client id.
	_, err = s.Hold(ctx, testSlot("s2"), "client-1", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, s.Release(ctx, "s2", ""))
}

func TestReleaseAllForClient(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Hold(ctx, testSlot(id), "client-1", time.Minute)
		require.NoError(t, err)
	}
	_, err := s.Hold(ctx, testSlot("d"), "client-2", time.Minute)
	require.NoError(t, err)

	removed, err := s.ReleaseAllForClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.True(t, s.IsAvailable("a"))
	assert.False(t, s.IsAvailable("d"))
}

func TestCheckConfirmableAndConfirm(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Minute)
	require.NoError(t, err)

	h, err := s.CheckConfirmable(ctx, "s1", "client-1")
	require.NoError(t, err)
	assert.Equal(t, "p-anna", h.ProfessionalID)

	_, err = s.CheckConfirmable(ctx, "s1", "client-2")
	assert.ErrorIs(t, err, ErrHoldNotOwned)

	_, err = s.CheckConfirmable(ctx, "missing", "client-1")
	assert.ErrorIs(t, err, ErrHoldNotFound)

	require.NoError(t, s.Confirm(ctx, "s1", "client-1"))
	assert.True(t, s.IsAvailable("s1"))
	assert.Equal(t, uint64(1), s.Stats().ConfirmedThisSession)

	// Terminal: nothing left to confirm.
	assert.ErrorIs(t, s.Confirm(ctx, "s1", "client-1"), ErrHoldNotFound)
}

func TestCheckConfirmableExpired(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	_, err = s.CheckConfirmable(ctx, "s1", "client-1")
	assert.ErrorIs(t, err, ErrHoldExpired)
}

func TestCancelledContextLeavesNoState(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Hold(ctx, testSlot("s1"), "client-1", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, s.IsAvailable("s1"), "no half-inserted hold may remain")
}

func TestSnapshotSkipsExpired(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("live"), "client-1", time.Minute)
	require.NoError(t, err)
	_, err = s.Hold(ctx, testSlot("dead"), "client-1", time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "live", snap[0].SlotID)
}

func TestStats(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := s.Hold(ctx, testSlot(id), "client-1", time.Duration(i+1)*time.Minute)
		require.NoError(t, err)
	}
	_, err := s.Hold(ctx, testSlot("x"), "client-2", time.Second)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	stats := s.Stats()

	assert.Equal(t, 7, stats.LiveHolds)
	assert.Equal(t, 1, stats.ExpiredPendingSweep)
	assert.Equal(t, 7, stats.PerClientCounts["client-1"])
	assert.Zero(t, stats.PerClientCounts["client-2"])
	require.Len(t, stats.NextExpirations, 5)
	for i := 1; i < len(stats.NextExpirations); i++ {
		assert.True(t, !stats.NextExpirations[i].Before(stats.NextExpirations[i-1]))
	}
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	clock := newFakeClock()
	s := newTestStore(clock)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("live"), "client-1", time.Hour)
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		_, err := s.Hold(ctx, testSlot(id), "client-1", time.Second)
		require.NoError(t, err)
	}

	clock.Advance(2 * time.Second)
	assert.Equal(t, 3, s.Sweep())
	assert.Equal(t, 0, s.Stats().ExpiredPendingSweep)
	assert.False(t, s.IsAvailable("live"))
}

func TestSweepBatches(t *testing.T) {
	clock := newFakeClock()
	logger := zerolog.New(io.Discard)
	cfg := DefaultConfig()
	cfg.SweepBatch = 2
	s := NewStore(cfg, clock.Now, &logger)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		_, err := s.Hold(ctx, testSlot(id), "client-1", time.Second)
		require.NoError(t, err)
	}

	clock.Advance(2 * time.Second)
	assert.Equal(t, 5, s.Sweep())
}

func TestSweepExpiryCallback(t *testing.T) {
	clock := newFakeClock()
	logger := zerolog.New(io.Discard)
	cfg := DefaultConfig()

	var expired []string
	cfg.OnExpired = func(h models.Hold) { expired = append(expired, h.SlotID) }
	s := NewStore(cfg, clock.Now, &logger)
	ctx := context.Background()

	_, err := s.Hold(ctx, testSlot("gone"), "client-1", time.Second)
	require.NoError(t, err)
	_, err = s.Hold(ctx, testSlot("kept"), "client-1", time.Hour)
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	s.Sweep()
	assert.Equal(t, []string{"gone"}, expired)
}

func TestSweepLoopStops(t *testing.T) {
	clock := newFakeClock()
	logger := zerolog.New(io.Discard)
	cfg := DefaultConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	s := NewStore(cfg, clock.Now, &logger)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep loop did not stop")
	}
}
