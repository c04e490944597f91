package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SubmitCheckinHandler  http.HandlerFunc
	GetCheckinHandler     http.HandlerFunc
	ListCheckinsHandler   http.HandlerFunc
	AnalyzeCheckinHandler http.HandlerFunc
	ProcessPendingHandler http.HandlerFunc

	ListAlertsHandler   http.HandlerFunc
	AckAlertHandler     http.HandlerFunc
	AckAllAlertsHandler http.HandlerFunc

	WeeklyReportHandler http.HandlerFunc

	SubmitSurveyHandler http.HandlerFunc
	ListSurveysHandler  http.HandlerFunc

	DashboardSummaryHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/checkins", orNotImplemented(deps.SubmitCheckinHandler))
		r.Get("/api/v1/checkins", orNotImplemented(deps.ListCheckinsHandler))
		r.Get("/api/v1/checkins/{entryID}", orNotImplemented(deps.GetCheckinHandler))
		r.Post("/api/v1/checkins/{entryID}/analyze", orNotImplemented(deps.AnalyzeCheckinHandler))
		r.Post("/api/v1/checkins/process-pending", orNotImplemented(deps.ProcessPendingHandler))

		r.Get("/api/v1/alerts", orNotImplemented(deps.ListAlertsHandler))
		r.Patch("/api/v1/alerts/{alertID}/acknowledge", orNotImplemented(deps.AckAlertHandler))
		r.Post("/api/v1/alerts/acknowledge-all", orNotImplemented(deps.AckAllAlertsHandler))

		r.Get("/api/v1/reports/weekly", orNotImplemented(deps.WeeklyReportHandler))

		r.Post("/api/v1/surveys/phq9", orNotImplemented(deps.SubmitSurveyHandler))
		r.Get("/api/v1/surveys", orNotImplemented(deps.ListSurveysHandler))

		r.Get("/api/v1/dashboard/summary", orNotImplemented(deps.DashboardSummaryHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
