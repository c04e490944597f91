package insights

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/cache"
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const (
	dashboardRecentLimit = 5
	dashboardAlertDays   = 7
	dashboardCacheTTL    = 5 * time.Minute
)

// Dashboard assembles the home-screen summary: latest mood and short-term
// trend from the most recent analyzed check-ins, plus the count of negative
// check-ins over the past week. Summaries are cached briefly; the check-in
// pipeline drops the cached copy whenever a new verdict lands.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardSummary, error) {
	if cached, ok := s.cachedDashboard(ctx, userID); ok {
		return cached, nil
	}

	recent, err := s.store.ListEntries(ctx, userID, store.EntryFilter{
		Status: models.EntryStatusAnalyzed,
		Limit:  dashboardRecentLimit,
	})
	if err != nil {
		return nil, err
	}

	summary := &models.DashboardSummary{
		InsightMessage: insightMessage(recent),
		MoodTrend:      "No data yet",
	}

	if len(recent) > 0 {
		mood := capitalize(derefEmotion(recent[0]))
		summary.CurrentMood = &mood

		// ListEntries returns newest first; trend reads oldest to newest.
		labels := make([]string, 0, len(recent))
		for i := len(recent) - 1; i >= 0; i-- {
			labels = append(labels, derefEmotion(recent[i]))
		}
		summary.MoodTrend = moodTrend(labels)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -dashboardAlertDays)
	window, err := s.store.ListEntriesInWindow(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	for _, e := range window {
		if e.Status == models.EntryStatusAnalyzed && EntryNegative(e) {
			summary.NewAlertsCount++
		}
	}

	s.storeDashboard(ctx, userID, summary)
	return summary, nil
}

func (s *Service) cachedDashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardSummary, bool) {
	raw, found, err := s.cache.Get(ctx, cache.DashboardKey(userID))
	if err != nil || !found {
		return nil, false
	}

	var summary models.DashboardSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, false
	}
	return &summary, true
}

func (s *Service) storeDashboard(ctx context.Context, userID uuid.UUID, summary *models.DashboardSummary) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.DashboardKey(userID), raw, dashboardCacheTTL); err != nil {
		slog.Warn("caching dashboard summary failed", "error", err, "user_id", userID)
	}
}

// moodTrend compares the two most recent moods. A swing across the
// negative/non-negative boundary reads as Improving or Declining; a repeat
// is Stable, anything else Fluctuating.
func moodTrend(labels []string) string {
	if len(labels) < 2 {
		return models.TrendStable
	}

	prev, last := labels[len(labels)-2], labels[len(labels)-1]
	prevNeg := emotion.NegativeLabels[emotion.Label(prev)]
	lastNeg := emotion.NegativeLabels[emotion.Label(last)]

	switch {
	case prevNeg && !lastNeg:
		return models.TrendImproving
	case !prevNeg && lastNeg:
		return models.TrendDeclining
	case prev == last:
		return models.TrendStable
	default:
		return models.TrendFluctuating
	}
}

// insightMessage picks a short encouragement based on the latest entry's
// score, where lower means better.
func insightMessage(recent []*models.CheckinEntry) string {
	if len(recent) == 0 {
		return "Keep checking in to get personalized insights."
	}

	switch score := EntryScore(recent[0]); {
	case score < 20:
		return "It sounds like things are looking up! Keep embracing that positive energy."
	case score < 40:
		return "Seems like a relatively calm moment. Remember to take time for yourself."
	case score < 55:
		return "Thanks for sharing. Every check-in helps build understanding."
	case score < 75:
		return "It sounds like things might be a bit challenging. Remember to be kind to yourself."
	default:
		return "It sounds like you're going through a difficult time. Remember that feelings pass, and support is available."
	}
}

func derefEmotion(entry *models.CheckinEntry) string {
	if entry.Emotion == nil {
		return string(emotion.Neutral)
	}
	return *entry.Emotion
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
