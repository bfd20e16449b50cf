package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservio/internal/models"
)

func candidateAt(start time.Time) models.CandidateSlot {
	return models.CandidateSlot{
		SlotID: models.MakeSlotID("p-anna", "svc-massage", start),
		Start:  start,
		End:    start.Add(30 * time.Minute),
	}
}

func TestScore(t *testing.T) {
	r := NewRanker(DefaultScoreWeights(), 0)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		start    time.Time
		expected int
	}{
		// Monday 14:00: base 100 + weekday 5.
		{"weekday midday", time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC), 105},
		// Monday 17:00: base + weekday + evening bonus.
		{"weekday evening", time.Date(2026, 9, 7, 17, 0, 0, 0, time.UTC), 115},
		// Monday 09:00: base + weekday - off-hours.
		{"weekday early", time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC), 90},
		// Monday 19:00: base + weekday - off-hours (evening window is [16,19)).
		{"weekday late", time.Date(2026, 9, 7, 19, 0, 0, 0, time.UTC), 90},
		// Saturday 14:00: base only.
		{"saturday midday", time.Date(2026, 9, 12, 14, 0, 0, 0, time.UTC), 100},
		// Past 30 days: -20. Oct 7 is a Wednesday.
		{"beyond 30 days", time.Date(2026, 10, 7, 14, 0, 0, 0, time.UTC), 85},
		// Past 60 days the penalties stack: -20 -40. Dec 7 is a Monday.
		{"beyond 60 days", time.Date(2026, 12, 7, 14, 0, 0, 0, time.UTC), 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Score(candidateAt(tt.start), now)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestScoreClampedAtZero(t *testing.T) {
	heavy := ScoreWeights{FarPenalty30d: 80, FarPenalty60d: 80, OffHoursPenalty: 30}
	r := NewRanker(heavy, 0)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	// Sunday 08:00 far in the future: 100 - 80 - 80 - 30 clamps to 0.
	got := r.Score(candidateAt(time.Date(2026, 12, 6, 8, 0, 0, 0, time.UTC)), now)
	assert.Equal(t, 0, got)
}

func TestRankEveningBeatsMidMorning(t *testing.T) {
	r := NewRanker(DefaultScoreWeights(), 5)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	tenAM := candidateAt(time.Date(2026, 9, 7, 10, 0, 0, 0, time.UTC))
	fivePM := candidateAt(time.Date(2026, 9, 7, 17, 0, 0, 0, time.UTC))

	ranked := r.Rank([]models.CandidateSlot{tenAM, fivePM}, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, fivePM.Start, ranked[0].Start)
	assert.Equal(t, ranked[1].Score+10, ranked[0].Score)
}

func TestRankTieBreaksByEarliestStart(t *testing.T) {
	r := NewRanker(DefaultScoreWeights(), 5)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	later := candidateAt(time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC))
	earlier := candidateAt(time.Date(2026, 9, 7, 13, 0, 0, 0, time.UTC))

	ranked := r.Rank([]models.CandidateSlot{later, earlier}, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, ranked[0].Score, ranked[1].Score)
	assert.True(t, ranked[0].Start.Before(ranked[1].Start))
}

func TestRankTopN(t *testing.T) {
	r := NewRanker(DefaultScoreWeights(), 3)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	var cands []models.CandidateSlot
	for h := 10; h < 18; h++ {
		cands = append(cands, candidateAt(time.Date(2026, 9, 7, h, 0, 0, 0, time.UTC)))
	}

	ranked := r.Rank(cands, now)
	assert.Len(t, ranked, 3)

	// Input order is untouched.
	assert.Equal(t, 10, cands[0].Start.Hour())
}

func TestRankDeterministic(t *testing.T) {
	r := NewRanker(DefaultScoreWeights(), 5)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	var cands []models.CandidateSlot
	for h := 9; h < 19; h++ {
		cands = append(cands, candidateAt(time.Date(2026, 9, 7, h, 0, 0, 0, time.UTC)))
	}

	first := r.Rank(cands, now)
	second := r.Rank(cands, now)
	assert.Equal(t, first, second)
}
