package mock

import (
	"context"

	"github.com/nexis-health/nexis-backend/pkg/models"
)

// MockProvider satisfies models.NarrativeProvider for testing and for
// deployments without an LLM backend.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, report models.WeeklyReport) (models.Narrative, error)
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, report models.WeeklyReport) (models.Narrative, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, report)
	}
	return models.Narrative{}, nil
}

// NewMockProvider returns a MockProvider with sensible default responses.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, report models.WeeklyReport) (models.Narrative, error) {
			direction := "stable"
			if s := report.Stats; s != nil {
				switch {
				case s.TrendSlope < -5:
					direction = "improving"
				case s.TrendSlope > 5:
					direction = "declining"
				}
			}
			return models.Narrative{
				Summary:          "Simulated wellbeing summary for testing.",
				MoodDirection:    direction,
				KeyInsights:      []string{"Mock insight derived from check-in statistics."},
				Suggestions:      []string{"Mock suggestion: keep a regular check-in routine."},
				Strengths:        []string{"Consistent engagement with check-ins."},
				PossibleTriggers: []string{},
			}, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.WeeklyReport) (models.Narrative, error) {
			return models.Narrative{}, err
		},
	}
}

var _ models.NarrativeProvider = (*MockProvider)(nil)
