package models

// Mood trend values reported by the dashboard summary.
const (
	TrendImproving   = "Improving"
	TrendDeclining   = "Declining"
	TrendStable      = "Stable"
	TrendFluctuating = "Fluctuating"
)

// DashboardSummary is the lightweight home-screen payload: the latest
// detected mood, a coarse trend over recent check-ins, and how many alerts
// are still unacknowledged from the past week.
type DashboardSummary struct {
	InsightMessage string  `json:"insight_message"`
	CurrentMood    *string `json:"current_mood,omitempty"`
	MoodTrend      string  `json:"mood_trend"`
	NewAlertsCount int     `json:"new_alerts_count"`
}
