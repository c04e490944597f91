package models

import "context"

// NarrativeProvider turns a computed weekly report into supportive prose.
// Providers are best-effort: callers substitute a static fallback on any
// error and never surface the failure.
type NarrativeProvider interface {
	// Generate produces a structured narrative for the given report.
	Generate(ctx context.Context, report WeeklyReport) (Narrative, error)
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
}
