package models

import "time"

// AggregateStats is the rolling 14-day behavioral summary computed from
// analyzed check-in entries. Scores run 0-100 with lower meaning a better
// affect state, so Best is the minimum and Worst the maximum.
type AggregateStats struct {
	NumEntries int     `json:"num_entries"`
	AvgScore   float64 `json:"avg_score"`
	StdDev     float64 `json:"std_dev"`
	Best       float64 `json:"best"`
	Worst      float64 `json:"worst"`
	NegRatio   float64 `json:"neg_ratio"`
	TrendSlope float64 `json:"trend_slope"`
}

// WeeklyReport is the full dashboard report: window bounds, behavioral
// statistics, the blended risk score, and a best-effort narrative.
type WeeklyReport struct {
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	Stats            *AggregateStats `json:"stats,omitempty"`
	RiskScore        float64         `json:"risk_score"`
	SurveyScore      *int            `json:"survey_score,omitempty"`
	Narrative        *Narrative      `json:"narrative,omitempty"`
	InsufficientData bool            `json:"insufficient_data"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// Narrative is the structured output contract of the narrative provider.
// Whatever the provider returns, RecommendFollowup is overwritten by a
// local deterministic rule before the report is served.
type Narrative struct {
	Summary           string   `json:"summary"`
	MoodDirection     string   `json:"mood_direction"`
	KeyInsights       []string `json:"key_insights"`
	Suggestions       []string `json:"suggestions"`
	Strengths         []string `json:"strengths"`
	PossibleTriggers  []string `json:"possible_triggers"`
	RecommendFollowup bool     `json:"recommend_followup"`
}
