// Package alerts derives mood alerts from analyzed check-in entries.
//
// Alerts are backfilled lazily: listing reconciles the alert table against
// analyzed entries first, so an alert exists for every negative verdict no
// matter when or how the entry was analyzed.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const backfillScanLimit = 200

// Service generates and manages mood alerts.
type Service struct {
	store store.Store
}

// NewService creates a new alert Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// List backfills missing alerts, then returns all alerts newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]*models.Alert, error) {
	if err := s.Backfill(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListAlerts(ctx, userID)
}

// Backfill creates one alert for every analyzed entry with a negative verdict
// that has none yet. Safe to run repeatedly.
func (s *Service) Backfill(ctx context.Context, userID uuid.UUID) error {
	entries, err := s.store.ListEntries(ctx, userID, store.EntryFilter{
		Status: models.EntryStatusAnalyzed,
		Limit:  backfillScanLimit,
	})
	if err != nil {
		return fmt.Errorf("listing analyzed entries: %w", err)
	}

	covered, err := s.store.EntryIDsWithAlerts(ctx, userID)
	if err != nil {
		return fmt.Errorf("listing alerted entries: %w", err)
	}

	var missing []*models.Alert
	for _, entry := range entries {
		if covered[entry.ID] {
			continue
		}
		if alert, ok := alertForEntry(entry); ok {
			missing = append(missing, alert)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := s.store.CreateAlerts(ctx, missing); err != nil {
		return fmt.Errorf("creating alerts: %w", err)
	}
	return nil
}

// RecordEntry creates an alert for one freshly analyzed entry when its
// verdict is negative. Duplicates are no-ops, and Backfill covers any entry
// this misses.
func (s *Service) RecordEntry(ctx context.Context, entry *models.CheckinEntry) error {
	alert, ok := alertForEntry(entry)
	if !ok {
		return nil
	}
	return s.store.CreateAlerts(ctx, []*models.Alert{alert})
}

// Acknowledge marks one alert acknowledged.
func (s *Service) Acknowledge(ctx context.Context, userID, alertID uuid.UUID) error {
	return s.store.AcknowledgeAlert(ctx, alertID, userID)
}

// AcknowledgeAll marks every new alert acknowledged and returns the count.
func (s *Service) AcknowledgeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.AcknowledgeAllAlerts(ctx, userID)
}

// alertForEntry builds an alert for an analyzed entry, or reports false for
// non-negative verdicts. The alert inherits the entry's timestamp so alert
// history lines up with check-in history.
func alertForEntry(entry *models.CheckinEntry) (*models.Alert, bool) {
	if entry.Emotion == nil {
		return nil, false
	}
	label := emotion.Label(*entry.Emotion)
	if !emotion.NegativeLabels[label] {
		return nil, false
	}

	conf := 0.0
	if entry.Confidence != nil {
		conf = *entry.Confidence
	}

	return &models.Alert{
		ID:          uuid.New(),
		UserID:      entry.UserID,
		EntryID:     &entry.ID,
		Category:    "Negative Emotion Detected",
		Description: fmt.Sprintf("Detected %q with %.1f%% confidence during your check-in.",
			capitalize(string(label)), conf),
		Status:    models.AlertStatusNew,
		Urgency:   urgencyFor(label),
		CreatedAt: entry.CreatedAt,
	}, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// urgencyFor maps the verdict to alert urgency. Fear and anger escalate.
func urgencyFor(label emotion.Label) string {
	switch label {
	case emotion.Fearful, emotion.Angry:
		return models.AlertUrgencyHigh
	default:
		return models.AlertUrgencyMedium
	}
}
