package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EntryStatusPending  = "pending"
	EntryStatusAnalyzed = "analyzed"
	EntryStatusFailed   = "failed"
)

// CheckinEntry is one submitted video check-in. Created in pending at upload
// time, it makes exactly one terminal transition to analyzed or failed,
// performed by the inference job. Analyzed entries carry the full unified
// probability distribution; failed entries carry the stringified cause.
type CheckinEntry struct {
	ID            uuid.UUID          `db:"id"             json:"id"`
	UserID        uuid.UUID          `db:"user_id"        json:"user_id"`
	VideoPath     string             `db:"video_path"     json:"video_path"`
	TextInput     *string            `db:"text_input"     json:"text_input,omitempty"`
	Status        string             `db:"status"         json:"status"`
	Emotion       *string            `db:"emotion"        json:"emotion,omitempty"`
	Confidence    *float64           `db:"confidence"     json:"confidence,omitempty"`
	Probabilities map[string]float64 `db:"probabilities"  json:"probabilities,omitempty"`
	AnalysisError *string            `db:"analysis_error" json:"analysis_error,omitempty"`
	CreatedAt     time.Time          `db:"created_at"     json:"created_at"`
}

// Terminal reports whether the entry has reached a terminal lifecycle state.
func (e *CheckinEntry) Terminal() bool {
	return e.Status == EntryStatusAnalyzed || e.Status == EntryStatusFailed
}
