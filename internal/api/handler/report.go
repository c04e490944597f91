package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// ReportService defines the reporting operations the handlers depend on.
type ReportService interface {
	WeeklyReport(ctx context.Context, userID uuid.UUID, refresh bool) (*models.WeeklyReport, error)
}

// NewWeeklyReportHandler returns the handler for GET /api/v1/reports/weekly.
// The refresh query parameter forces recomputation past the cache.
func NewWeeklyReportHandler(svc ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))

		report, err := svc.WeeklyReport(r.Context(), userID, refresh)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to build weekly report", nil)
			return
		}

		response.JSON(w, report)
	}
}
