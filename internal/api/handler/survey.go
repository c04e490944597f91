package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const phq9Questions = 9

// NewSubmitSurveyHandler returns the handler for POST /api/v1/surveys/phq9.
// Scoring happens server-side from the raw answers.
func NewSubmitSurveyHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			Answers []int `json:"answers"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "Invalid JSON body", nil)
			return
		}

		if len(req.Answers) != phq9Questions {
			response.BadRequest(w, "answers must contain exactly 9 values", nil)
			return
		}
		score := 0
		for i, a := range req.Answers {
			if a < 0 || a > 3 {
				response.BadRequest(w, "each answer must be between 0 and 3",
					map[string]any{"index": i, "value": a})
				return
			}
			score += a
		}

		result := &models.SurveyResult{
			ID:             uuid.New(),
			UserID:         userID,
			Score:          score,
			Interpretation: interpretPHQ9(score),
			Answers:        req.Answers,
			CreatedAt:      time.Now().UTC(),
		}

		if err := st.CreateSurveyResult(r.Context(), result); err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to store survey result", nil)
			return
		}

		response.Created(w, result)
	}
}

// NewListSurveysHandler returns the handler for GET /api/v1/surveys.
func NewListSurveysHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		results, err := st.ListSurveyResults(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to list survey results", nil)
			return
		}
		if results == nil {
			results = []*models.SurveyResult{}
		}

		response.JSON(w, results)
	}
}

// interpretPHQ9 maps a total score onto the standard severity bands.
func interpretPHQ9(score int) string {
	switch {
	case score <= 4:
		return "Minimal depression"
	case score <= 9:
		return "Mild depression"
	case score <= 14:
		return "Moderate depression"
	case score <= 19:
		return "Moderately severe depression"
	default:
		return "Severe depression"
	}
}
