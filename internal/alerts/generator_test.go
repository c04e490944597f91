package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzedEntry(t *testing.T, st store.Store, userID uuid.UUID, label string, createdAt time.Time) *models.CheckinEntry {
	t.Helper()
	entry := &models.CheckinEntry{
		ID:        uuid.New(),
		UserID:    userID,
		VideoPath: "uploads/" + uuid.NewString() + ".mp4",
		Status:    models.EntryStatusPending,
		CreatedAt: createdAt,
	}
	require.NoError(t, st.CreateEntry(context.Background(), entry))
	require.NoError(t, st.UpdateEntryStatus(context.Background(), entry.ID, models.EntryStatusAnalyzed,
		store.WithVerdict(label, 66.0, map[string]float64{label: 0.66})))
	entry.Status = models.EntryStatusAnalyzed
	return entry
}

func TestBackfillCreatesAlertsForNegativeEntries(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now().UTC()

	sad := analyzedEntry(t, st, userID, "sad", now.Add(-3*time.Hour))
	angry := analyzedEntry(t, st, userID, "angry", now.Add(-2*time.Hour))
	fearful := analyzedEntry(t, st, userID, "fearful", now.Add(-time.Hour))
	analyzedEntry(t, st, userID, "happy", now)
	analyzedEntry(t, st, userID, "neutral", now)

	alerts, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	byEntry := make(map[uuid.UUID]*models.Alert)
	for _, a := range alerts {
		require.NotNil(t, a.EntryID)
		byEntry[*a.EntryID] = a
	}

	assert.Equal(t, `Detected "Sad" with 66.0% confidence during your check-in.`, byEntry[sad.ID].Description)
	assert.Equal(t, models.AlertUrgencyMedium, byEntry[sad.ID].Urgency)
	assert.Equal(t, models.AlertUrgencyHigh, byEntry[angry.ID].Urgency)
	assert.Equal(t, models.AlertUrgencyHigh, byEntry[fearful.ID].Urgency)

	// Alert timestamps line up with the check-ins they came from.
	assert.True(t, byEntry[sad.ID].CreatedAt.Equal(sad.CreatedAt))

	for _, a := range alerts {
		assert.Equal(t, models.AlertStatusNew, a.Status)
		assert.Equal(t, "Negative Emotion Detected", a.Category)
	}
}

func TestBackfillIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now().UTC()
	for i, label := range []string{"sad", "angry", "disgust"} {
		analyzedEntry(t, st, userID, label, now.Add(time.Duration(-i)*time.Hour))
	}

	first, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, second, 3)
}

func TestBackfillSkipsPendingAndFailed(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now().UTC()

	pending := &models.CheckinEntry{
		ID: uuid.New(), UserID: userID, VideoPath: "uploads/p.mp4",
		Status: models.EntryStatusPending, CreatedAt: now,
	}
	require.NoError(t, st.CreateEntry(ctx, pending))

	failed := &models.CheckinEntry{
		ID: uuid.New(), UserID: userID, VideoPath: "uploads/f.mp4",
		Status: models.EntryStatusPending, CreatedAt: now,
	}
	require.NoError(t, st.CreateEntry(ctx, failed))
	require.NoError(t, st.UpdateEntryStatus(ctx, failed.ID, models.EntryStatusFailed,
		store.WithAnalysisError("decode error")))

	alerts, err := svc.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRecordEntrySkipsNonNegative(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	userID := uuid.New()
	happy := analyzedEntry(t, st, userID, "happy", time.Now().UTC())
	happyEmotion := "happy"
	happyConf := 66.0
	happy.Emotion = &happyEmotion
	happy.Confidence = &happyConf
	require.NoError(t, svc.RecordEntry(ctx, happy))

	got, err := st.ListAlerts(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordEntryThenBackfillDoesNotDuplicate(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	userID := uuid.New()
	sad := analyzedEntry(t, st, userID, "sad", time.Now().UTC())
	sadEmotion := "sad"
	sadConf := 66.0
	sad.Emotion = &sadEmotion
	sad.Confidence = &sadConf
	require.NoError(t, svc.RecordEntry(ctx, sad))

	// Listing runs the backfill sweep over the same entry.
	alerts, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, sad.ID, *alerts[0].EntryID)
}

func TestAcknowledgeOneAndAll(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	userID := uuid.New()
	now := time.Now().UTC()
	analyzedEntry(t, st, userID, "sad", now.Add(-2*time.Hour))
	analyzedEntry(t, st, userID, "fearful", now.Add(-time.Hour))

	alerts, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	require.NoError(t, svc.Acknowledge(ctx, userID, alerts[0].ID))

	alerts, err = svc.List(ctx, userID)
	require.NoError(t, err)
	acknowledged := 0
	for _, a := range alerts {
		if a.Status == models.AlertStatusAcknowledged {
			acknowledged++
		}
	}
	assert.Equal(t, 1, acknowledged)

	n, err := svc.AcknowledgeAll(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = svc.Acknowledge(ctx, userID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAcknowledgeScopedToOwner(t *testing.T) {
	st := store.NewMemoryStore()
	svc := NewService(st)
	ctx := context.Background()

	owner := uuid.New()
	analyzedEntry(t, st, owner, "angry", time.Now().UTC())

	alerts, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	err = svc.Acknowledge(ctx, uuid.New(), alerts[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
