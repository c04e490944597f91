package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// DashboardService provides the home-screen summary.
type DashboardService interface {
	Dashboard(ctx context.Context, userID uuid.UUID) (*models.DashboardSummary, error)
}

// NewDashboardSummaryHandler returns the handler for GET /api/v1/dashboard/summary.
func NewDashboardSummaryHandler(svc DashboardService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		summary, err := svc.Dashboard(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to build dashboard summary", nil)
			return
		}

		response.JSON(w, summary)
	}
}
