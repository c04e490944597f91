package insights

import (
	"math"

	"github.com/nexis-health/nexis-backend/pkg/models"
)

// Aggregate computes rolling statistics over analyzed entries ordered oldest
// first. Returns nil when there is nothing to aggregate.
func Aggregate(entries []*models.CheckinEntry) *models.AggregateStats {
	if len(entries) == 0 {
		return nil
	}

	scores := make([]float64, 0, len(entries))
	negative := 0
	for _, e := range entries {
		scores = append(scores, EntryScore(e))
		if EntryNegative(e) {
			negative++
		}
	}

	sum := 0.0
	best := scores[0]
	worst := scores[0]
	for _, s := range scores {
		sum += s
		best = math.Min(best, s)
		worst = math.Max(worst, s)
	}
	mean := sum / float64(len(scores))

	variance := 0.0
	for _, s := range scores {
		d := s - mean
		variance += d * d
	}
	variance /= float64(len(scores))

	return &models.AggregateStats{
		NumEntries: len(entries),
		AvgScore:   mean,
		StdDev:     math.Sqrt(variance),
		Best:       best,
		Worst:      worst,
		NegRatio:   float64(negative) / float64(len(entries)),
		TrendSlope: scores[len(scores)-1] - scores[0],
	}
}
