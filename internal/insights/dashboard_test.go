package insights

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/cache"
	"github.com/nexis-health/nexis-backend/internal/narrative/mock"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedLabeled plants an analyzed entry whose top label is exactly the one
// given, with all probability mass on it.
func seedLabeled(t *testing.T, st store.Store, userID uuid.UUID, label string, createdAt time.Time) {
	t.Helper()
	ctx := context.Background()
	entry := &models.CheckinEntry{
		ID:        uuid.New(),
		UserID:    userID,
		VideoPath: "uploads/" + uuid.NewString() + ".mp4",
		Status:    models.EntryStatusPending,
		CreatedAt: createdAt,
	}
	require.NoError(t, st.CreateEntry(ctx, entry))
	require.NoError(t, st.UpdateEntryStatus(ctx, entry.ID, models.EntryStatusAnalyzed,
		store.WithVerdict(label, 90, map[string]float64{label: 1})))
}

func TestDashboardNoData(t *testing.T) {
	svc, _, _ := newTestService(t)

	summary, err := svc.Dashboard(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Nil(t, summary.CurrentMood)
	assert.Equal(t, "No data yet", summary.MoodTrend)
	assert.Equal(t, 0, summary.NewAlertsCount)
	assert.NotEmpty(t, summary.InsightMessage)
}

func TestDashboardCurrentMoodAndTrend(t *testing.T) {
	svc, st, _ := newTestService(t)
	userID := uuid.New()
	now := time.Now().UTC()

	seedLabeled(t, st, userID, "sad", now.Add(-3*time.Hour))
	seedLabeled(t, st, userID, "happy", now.Add(-2*time.Hour))

	summary, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)

	require.NotNil(t, summary.CurrentMood)
	assert.Equal(t, "Happy", *summary.CurrentMood)
	assert.Equal(t, models.TrendImproving, summary.MoodTrend)
	assert.Equal(t, 1, summary.NewAlertsCount)
}

func TestDashboardSingleEntryIsStable(t *testing.T) {
	svc, st, _ := newTestService(t)
	userID := uuid.New()

	seedLabeled(t, st, userID, "neutral", time.Now().UTC().Add(-time.Hour))

	summary, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, models.TrendStable, summary.MoodTrend)
}

func TestDashboardTrendTable(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   string
	}{
		{"negative to positive", []string{"angry", "happy"}, models.TrendImproving},
		{"positive to negative", []string{"neutral", "fearful"}, models.TrendDeclining},
		{"same label twice", []string{"sad", "sad"}, models.TrendStable},
		{"different non-negative labels", []string{"happy", "surprise"}, models.TrendFluctuating},
		{"only last two matter", []string{"happy", "sad", "sad"}, models.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moodTrend(tt.labels))
		})
	}
}

func TestDashboardCountsNegativeWeek(t *testing.T) {
	svc, st, _ := newTestService(t)
	userID := uuid.New()
	now := time.Now().UTC()

	seedLabeled(t, st, userID, "sad", now.Add(-2*24*time.Hour))
	seedLabeled(t, st, userID, "angry", now.Add(-4*24*time.Hour))
	// outside the 7-day window
	seedLabeled(t, st, userID, "fearful", now.Add(-10*24*time.Hour))
	// negative label but not analyzed yet
	pending := &models.CheckinEntry{
		ID:        uuid.New(),
		UserID:    userID,
		VideoPath: "uploads/pending.mp4",
		Status:    models.EntryStatusPending,
		CreatedAt: now.Add(-24 * time.Hour),
	}
	require.NoError(t, st.CreateEntry(context.Background(), pending))

	summary, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.NewAlertsCount)
}

func TestDashboardCachedUntilInvalidated(t *testing.T) {
	st := store.NewMemoryStore()
	ca := newMemCache()
	svc := NewService(st, ca, mock.NewMockProvider())
	userID := uuid.New()
	now := time.Now().UTC()

	seedLabeled(t, st, userID, "happy", now.Add(-2*time.Hour))

	first, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, first.CurrentMood)
	assert.Equal(t, "Happy", *first.CurrentMood)

	// A newer entry does not surface while the cached summary is live.
	seedLabeled(t, st, userID, "sad", now.Add(-time.Hour))
	stale, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Happy", *stale.CurrentMood)

	require.NoError(t, ca.Delete(context.Background(), cache.DashboardKey(userID)))
	fresh, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "Sad", *fresh.CurrentMood)
	assert.Equal(t, models.TrendDeclining, fresh.MoodTrend)
}

func TestDashboardInsightTracksLatestScore(t *testing.T) {
	svc, st, _ := newTestService(t)
	userID := uuid.New()

	// happy at confidence 90: score 100*(0 + 0.3*0.1) = 3, the calmest band.
	seedLabeled(t, st, userID, "happy", time.Now().UTC().Add(-time.Hour))

	summary, err := svc.Dashboard(context.Background(), userID)
	require.NoError(t, err)
	assert.Contains(t, summary.InsightMessage, "looking up")
}
