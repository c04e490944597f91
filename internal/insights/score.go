// Package insights turns analyzed check-in entries into behavioral scores,
// rolling aggregates, and the blended weekly risk report.
package insights

import (
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const (
	// defaultConfidence stands in when an entry carries no confidence, so a
	// missing value reads as maximal uncertainty rather than certainty.
	defaultConfidence = 50.0

	negMassWeight     = 0.7
	uncertaintyWeight = 0.3

	// negativeDayThreshold flags an entry as a negative day even when the top
	// label is not negative but negative mass dominates.
	negativeDayThreshold = 0.5
)

// EntryScore maps one analyzed entry onto a 0-100 scale where lower is
// better. It blends how much probability mass sits on negative emotions with
// how uncertain the verdict was.
func EntryScore(entry *models.CheckinEntry) float64 {
	conf := defaultConfidence
	if entry.Confidence != nil {
		conf = *entry.Confidence
	}
	return 100 * (negMassWeight*negativeMass(entry.Probabilities) + uncertaintyWeight*(1-conf/100))
}

// EntryNegative reports whether the entry counts as a negative day.
func EntryNegative(entry *models.CheckinEntry) bool {
	if entry.Emotion != nil && emotion.NegativeLabels[emotion.Label(*entry.Emotion)] {
		return true
	}
	return negativeMass(entry.Probabilities) >= negativeDayThreshold
}

func negativeMass(probs map[string]float64) float64 {
	mass := 0.0
	for label := range emotion.NegativeLabels {
		mass += probs[string(label)]
	}
	return mass
}
