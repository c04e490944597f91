package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// AlertService defines the alert operations the handlers depend on.
type AlertService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.Alert, error)
	Acknowledge(ctx context.Context, userID, alertID uuid.UUID) error
	AcknowledgeAll(ctx context.Context, userID uuid.UUID) (int, error)
}

// NewListAlertsHandler returns the handler for GET /api/v1/alerts. Listing
// backfills alerts for any analyzed entries that are missing one.
func NewListAlertsHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		alerts, err := svc.List(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to list alerts", nil)
			return
		}
		if alerts == nil {
			alerts = []*models.Alert{}
		}

		response.JSON(w, alerts)
	}
}

// NewAckAlertHandler returns the handler for PATCH /api/v1/alerts/{alertID}/acknowledge.
func NewAckAlertHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		alertID, err := uuid.Parse(chi.URLParam(r, "alertID"))
		if err != nil {
			response.BadRequest(w, "alertID must be a valid UUID", nil)
			return
		}

		err = svc.Acknowledge(r.Context(), userID, alertID)
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "Alert not found")
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to acknowledge alert", nil)
			return
		}

		response.JSON(w, map[string]string{"status": models.AlertStatusAcknowledged})
	}
}

// NewAckAllAlertsHandler returns the handler for POST /api/v1/alerts/acknowledge-all.
func NewAckAllAlertsHandler(svc AlertService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		n, err := svc.AcknowledgeAll(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to acknowledge alerts", nil)
			return
		}

		response.JSON(w, map[string]int{"acknowledged": n})
	}
}
