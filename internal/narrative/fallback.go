package narrative

import "github.com/nexis-health/nexis-backend/pkg/models"

// Fallback returns the static narrative served when the provider fails or is
// unreachable. Reports must never fail because narration did.
func Fallback() models.Narrative {
	return models.Narrative{
		Summary:       "We could not generate a personalized summary this week, but your check-in data has been recorded.",
		MoodDirection: "unknown",
		KeyInsights: []string{
			"Your recent check-ins are captured and reflected in your scores.",
		},
		Suggestions: []string{
			"Keep checking in regularly so trends stay accurate.",
			"Reach out to someone you trust if you are feeling low.",
		},
		Strengths: []string{
			"You are tracking your wellbeing consistently.",
		},
		PossibleTriggers: []string{},
	}
}
