package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUsersByKeyPrefix(ctx context.Context, prefix string) ([]*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)

	CreateEntry(ctx context.Context, entry *models.CheckinEntry) error
	GetEntry(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.CheckinEntry, error)
	ListEntries(ctx context.Context, userID uuid.UUID, filter EntryFilter) ([]*models.CheckinEntry, error)
	ListEntriesInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.CheckinEntry, error)
	ListPendingEntries(ctx context.Context) ([]*models.CheckinEntry, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.CheckinEntry, error)
	UpdateEntryStatus(ctx context.Context, id uuid.UUID, status string, opts ...EntryUpdateOption) error

	CreateAlerts(ctx context.Context, alerts []*models.Alert) error
	ListAlerts(ctx context.Context, userID uuid.UUID) ([]*models.Alert, error)
	EntryIDsWithAlerts(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error)
	AcknowledgeAlert(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
	AcknowledgeAllAlerts(ctx context.Context, userID uuid.UUID) (int, error)

	CreateSurveyResult(ctx context.Context, result *models.SurveyResult) error
	ListSurveyResults(ctx context.Context, userID uuid.UUID) ([]*models.SurveyResult, error)
	LatestSurveyInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.SurveyResult, error)
}

type EntryFilter struct {
	Status string
	Limit  int
	Offset int
}

// EntryUpdate is the collected set of fields an UpdateEntryStatus call
// writes alongside the status itself.
type EntryUpdate struct {
	Emotion       *string
	Confidence    *float64
	Probabilities map[string]float64
	AnalysisError *string
}

type EntryUpdateOption func(*EntryUpdate)

// ApplyEntryUpdate collects options into a concrete update. Used by Store
// implementations and test doubles.
func ApplyEntryUpdate(opts ...EntryUpdateOption) EntryUpdate {
	var u EntryUpdate
	for _, opt := range opts {
		opt(&u)
	}
	return u
}

// WithVerdict records the final emotion, confidence and probability map
// alongside the status change.
func WithVerdict(emotion string, confidence float64, probabilities map[string]float64) EntryUpdateOption {
	return func(u *EntryUpdate) {
		u.Emotion = &emotion
		u.Confidence = &confidence
		u.Probabilities = probabilities
	}
}

func WithAnalysisError(msg string) EntryUpdateOption {
	return func(u *EntryUpdate) {
		u.AnalysisError = &msg
	}
}
