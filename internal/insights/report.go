package insights

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/cache"
	"github.com/nexis-health/nexis-backend/internal/narrative"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const (
	reportWindowDays = 14
	reportCacheTTL   = time.Hour

	// cacheTolerance accepts a cached report whose window end is within this
	// distance of the requested one, so repeated dashboard loads reuse it.
	cacheTolerance = time.Hour

	emotionOnlyWeight = 0.6
	ratioOnlyWeight   = 0.4

	emotionSurveyWeight = 0.5
	ratioSurveyWeight   = 0.3
	surveyWeight        = 0.2

	followupRiskThreshold   = 70.0
	followupSurveyThreshold = 20
)

// Service computes weekly reports from stored entries, surveys and the
// narrative provider.
type Service struct {
	store    store.Store
	cache    cache.Cache
	provider models.NarrativeProvider

	now func() time.Time
}

// NewService creates a new insights Service.
func NewService(st store.Store, ca cache.Cache, provider models.NarrativeProvider) *Service {
	return &Service{store: st, cache: ca, provider: provider, now: time.Now}
}

// WeeklyReport builds the rolling 14-day report for the user. A recent cached
// report is served as-is unless refresh forces recomputation; narrative
// failures degrade to a static fallback and never fail the report.
func (s *Service) WeeklyReport(ctx context.Context, userID uuid.UUID, refresh bool) (*models.WeeklyReport, error) {
	end := s.now().UTC()

	if !refresh {
		if cached, ok := s.cachedReport(ctx, userID, end); ok {
			return cached, nil
		}
	}

	start := end.AddDate(0, 0, -reportWindowDays)

	entries, err := s.store.ListEntriesInWindow(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	var analyzed []*models.CheckinEntry
	for _, e := range entries {
		if e.Status == models.EntryStatusAnalyzed {
			analyzed = append(analyzed, e)
		}
	}

	report := &models.WeeklyReport{
		WindowStart: start,
		WindowEnd:   end,
		GeneratedAt: end,
	}

	var surveyScore *int
	if survey, err := s.store.LatestSurveyInWindow(ctx, userID, start, end); err == nil {
		surveyScore = &survey.Score
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	report.SurveyScore = surveyScore

	stats := Aggregate(analyzed)
	if stats == nil {
		report.InsufficientData = true
		s.storeReport(ctx, userID, report)
		return report, nil
	}

	report.Stats = stats
	report.RiskScore = RiskScore(stats, surveyScore)
	report.Narrative = s.narrate(ctx, report)

	s.storeReport(ctx, userID, report)
	return report, nil
}

// RiskScore blends the emotion aggregate with the latest PHQ-9 score when one
// exists inside the window. 0-100, lower is better.
func RiskScore(stats *models.AggregateStats, surveyScore *int) float64 {
	ratioComponent := stats.NegRatio * 100

	if surveyScore == nil {
		return emotionOnlyWeight*stats.AvgScore + ratioOnlyWeight*ratioComponent
	}

	surveyComponent := float64(*surveyScore) / float64(models.PHQ9MaxScore) * 100
	return emotionSurveyWeight*stats.AvgScore +
		ratioSurveyWeight*ratioComponent +
		surveyWeight*surveyComponent
}

// narrate asks the provider for prose and falls back to the static narrative
// on any failure. RecommendFollowup is always decided locally.
func (s *Service) narrate(ctx context.Context, report *models.WeeklyReport) *models.Narrative {
	n, err := s.provider.Generate(ctx, *report)
	if err != nil {
		slog.Warn("narrative generation failed, using fallback",
			"error", err, "provider", s.provider.Name())
		n = narrative.Fallback()
	}
	n.RecommendFollowup = recommendFollowup(report)
	return &n
}

func recommendFollowup(report *models.WeeklyReport) bool {
	if report.RiskScore >= followupRiskThreshold {
		return true
	}
	return report.SurveyScore != nil && *report.SurveyScore >= followupSurveyThreshold
}

func (s *Service) cachedReport(ctx context.Context, userID uuid.UUID, end time.Time) (*models.WeeklyReport, bool) {
	raw, found, err := s.cache.Get(ctx, cache.WeeklyReportKey(userID))
	if err != nil || !found {
		return nil, false
	}

	var report models.WeeklyReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false
	}

	age := end.Sub(report.WindowEnd)
	if age < -cacheTolerance || age > cacheTolerance {
		return nil, false
	}
	return &report, true
}

func (s *Service) storeReport(ctx context.Context, userID uuid.UUID, report *models.WeeklyReport) {
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.WeeklyReportKey(userID), raw, reportCacheTTL); err != nil {
		slog.Warn("caching weekly report failed", "error", err, "user_id", userID)
	}
}
