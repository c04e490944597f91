package models

import (
	"time"

	"github.com/google/uuid"
)

// PHQ9MaxScore is the maximum total score of the PHQ-9 questionnaire,
// used to normalize survey scores into the 0-100 risk blend.
const PHQ9MaxScore = 27

// SurveyResult is one submitted PHQ-9 questionnaire.
type SurveyResult struct {
	ID             uuid.UUID `db:"id"             json:"id"`
	UserID         uuid.UUID `db:"user_id"        json:"user_id"`
	Score          int       `db:"score"          json:"score"`
	Interpretation string    `db:"interpretation" json:"interpretation"`
	Answers        []int     `db:"answers"        json:"answers"`
	CreatedAt      time.Time `db:"created_at"     json:"created_at"`
}
