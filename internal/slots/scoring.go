package slots

import (
	"sort"
	"time"

	"reservio/internal/models"
)

// ScoreWeights are the heuristic weights for candidate ranking. All values
// are positive; penalties are subtracted, bonuses added.
type ScoreWeights struct {
	FarPenalty30d   int `yaml:"far_penalty_30d"`
	FarPenalty60d   int `yaml:"far_penalty_60d"`
	EveningBonus    int `yaml:"evening_bonus"`
	WeekdayBonus    int `yaml:"weekday_bonus"`
	OffHoursPenalty int `yaml:"off_hours_penalty"`
}

// DefaultScoreWeights returns the standard ranking weights.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		FarPenalty30d:   20,
		FarPenalty60d:   40,
		EveningBonus:    10,
		WeekdayBonus:    5,
		OffHoursPenalty: 15,
	}
}

const baseScore = 100

// DefaultTopN is how many ranked candidates a search returns by default.
const DefaultTopN = 5

// Ranker scores and orders candidates. It is deterministic and
// side-effect-free: the same candidates and instant always produce the
// same order.
type Ranker struct {
	weights ScoreWeights
	topN    int
}

// NewRanker creates a ranker. topN <= 0 falls back to DefaultTopN.
func NewRanker(weights ScoreWeights, topN int) *Ranker {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Ranker{weights: weights, topN: topN}
}

// Score computes the heuristic score for one candidate at the given
// instant. The 30- and 60-day penalties stack: a candidate beyond 60 days
// loses both.
func (r *Ranker) Score(c models.CandidateSlot, now time.Time) int {
	score := baseScore

	if c.Start.After(now.AddDate(0, 0, 30)) {
		score -= r.weights.FarPenalty30d
	}
	if c.Start.After(now.AddDate(0, 0, 60)) {
		score -= r.weights.FarPenalty60d
	}

	hour := c.Start.Hour()
	if hour >= 16 && hour < 19 {
		score += r.weights.EveningBonus
	}
	if wd := c.Start.Weekday(); wd >= time.Monday && wd <= time.Friday {
		score += r.weights.WeekdayBonus
	}
	if hour < 10 || hour > 18 {
		score -= r.weights.OffHoursPenalty
	}

	if score < 0 {
		score = 0
	}
	return score
}

// Rank scores every candidate, orders by score descending with earliest
// start as tie-break, and returns the top N.
func (r *Ranker) Rank(candidates []models.CandidateSlot, now time.Time) []models.CandidateSlot {
	ranked := make([]models.CandidateSlot, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = r.Score(ranked[i], now)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Start.Before(ranked[j].Start)
	})

	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}
	return ranked
}
