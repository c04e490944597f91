package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	AlertStatusNew          = "new"
	AlertStatusAcknowledged = "acknowledged"

	AlertUrgencyLow    = "low"
	AlertUrgencyMedium = "medium"
	AlertUrgencyHigh   = "high"
)

// Alert is one notification derived from a negative-affect check-in.
// EntryID is nullable to allow legacy or manually raised alerts. CreatedAt
// is inherited from the originating entry, not the alert's own insert time,
// so the feed stays chronological even when alerts are backfilled.
type Alert struct {
	ID          uuid.UUID  `db:"id"          json:"id"`
	UserID      uuid.UUID  `db:"user_id"     json:"user_id"`
	EntryID     *uuid.UUID `db:"entry_id"    json:"entry_id,omitempty"`
	Category    string     `db:"category"    json:"category"`
	Description string     `db:"description" json:"description"`
	Status      string     `db:"status"      json:"status"`
	Urgency     string     `db:"urgency"     json:"urgency"`
	CreatedAt   time.Time  `db:"created_at"  json:"created_at"`
}
