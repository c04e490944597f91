package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/nexis-health/nexis-backend/internal/api/middleware"
	"github.com/nexis-health/nexis-backend/internal/api/response"
	"github.com/nexis-health/nexis-backend/internal/checkin"
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// maxUploadBytes caps check-in video uploads.
const maxUploadBytes = 100 << 20

var allowedVideoExts = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".mkv":  true,
}

// CheckinService defines the check-in operations the handlers depend on.
type CheckinService interface {
	Submit(ctx context.Context, userID uuid.UUID, videoPath string, textInput *string) (*models.CheckinEntry, error)
	Get(ctx context.Context, userID, entryID uuid.UUID) (*models.CheckinEntry, error)
	History(ctx context.Context, userID uuid.UUID, filter store.EntryFilter) ([]*models.CheckinEntry, error)
	AnalyzeEntry(ctx context.Context, userID, entryID uuid.UUID) (*models.CheckinEntry, error)
	ProcessPending(ctx context.Context) (*checkin.BatchResult, error)
}

// NewSubmitCheckinHandler returns the handler for POST /api/v1/checkins.
// Accepts a multipart form with a "video" file and an optional "text" field.
func NewSubmitCheckinHandler(svc CheckinService, uploadDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			response.BadRequest(w, "Invalid multipart form or upload too large", nil)
			return
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			response.BadRequest(w, "video file is required", nil)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedVideoExts[ext] {
			response.BadRequest(w, "unsupported video format", map[string]any{"extension": ext})
			return
		}

		videoPath, err := saveUpload(file, uploadDir, ext)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"UPLOAD_FAILED", "Failed to store uploaded video", nil)
			return
		}

		var textInput *string
		if text := strings.TrimSpace(r.FormValue("text")); text != "" {
			textInput = &text
		}

		entry, err := svc.Submit(r.Context(), userID, videoPath, textInput)
		if err != nil {
			os.Remove(videoPath)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to create check-in entry", nil)
			return
		}

		response.Accepted(w, entry)
	}
}

// NewGetCheckinHandler returns the handler for GET /api/v1/checkins/{entryID}.
func NewGetCheckinHandler(svc CheckinService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
		if err != nil {
			response.BadRequest(w, "entryID must be a valid UUID", nil)
			return
		}

		entry, err := svc.Get(r.Context(), userID, entryID)
		if errors.Is(err, store.ErrNotFound) {
			response.NotFound(w, "Check-in entry not found")
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to load entry", nil)
			return
		}

		response.JSON(w, entry)
	}
}

// NewListCheckinsHandler returns the handler for GET /api/v1/checkins.
func NewListCheckinsHandler(svc CheckinService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		filter := store.EntryFilter{Status: r.URL.Query().Get("status")}
		if filter.Status != "" && !validEntryStatus(filter.Status) {
			response.BadRequest(w, "status must be one of pending, analyzed, failed", nil)
			return
		}

		page := queryInt(r, "page", 1)
		if page < 1 {
			page = 1
		}
		limit := queryInt(r, "limit", 20)
		if limit < 1 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		filter.Limit = limit
		filter.Offset = (page - 1) * limit

		entries, err := svc.History(r.Context(), userID, filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to list entries", nil)
			return
		}
		if entries == nil {
			entries = []*models.CheckinEntry{}
		}

		response.Collection(w, entries, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   len(entries),
			HasNext: len(entries) == limit,
		})
	}
}

// NewAnalyzeCheckinHandler returns the handler for
// POST /api/v1/checkins/{entryID}/analyze. Runs the pipeline synchronously.
func NewAnalyzeCheckinHandler(svc CheckinService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		entryID, err := uuid.Parse(chi.URLParam(r, "entryID"))
		if err != nil {
			response.BadRequest(w, "entryID must be a valid UUID", nil)
			return
		}

		entry, err := svc.AnalyzeEntry(r.Context(), userID, entryID)
		if err != nil {
			writeAnalysisError(w, err)
			return
		}

		response.JSON(w, entry)
	}
}

// NewProcessPendingHandler returns the handler for
// POST /api/v1/checkins/process-pending. The sweep covers pending entries
// from every user, not just the caller.
func NewProcessPendingHandler(svc CheckinService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := mw.GetUserID(r); !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		result, err := svc.ProcessPending(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to process pending entries", nil)
			return
		}

		response.JSON(w, result)
	}
}

// writeAnalysisError maps pipeline failures onto API error codes. The entry
// has already been marked failed by the service.
func writeAnalysisError(w http.ResponseWriter, err error) {
	var decodeErr *emotion.MediaDecodeError
	var inferErr *emotion.InferenceError

	switch {
	case errors.Is(err, store.ErrNotFound):
		response.NotFound(w, "Check-in entry not found")
	case errors.As(err, &decodeErr):
		response.Error(w, http.StatusUnprocessableEntity,
			"MEDIA_DECODE_ERROR", "The uploaded video could not be decoded", nil)
	case errors.As(err, &inferErr):
		response.Error(w, http.StatusInternalServerError,
			"INFERENCE_ERROR", fmt.Sprintf("Analysis failed in the %s stage", inferErr.Stage), nil)
	default:
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Analysis failed", nil)
	}
}

func validEntryStatus(status string) bool {
	switch status {
	case models.EntryStatusPending, models.EntryStatusAnalyzed, models.EntryStatusFailed:
		return true
	}
	return false
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func saveUpload(file multipart.File, uploadDir, ext string) (string, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}

	path := filepath.Join(uploadDir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	}
	return path, nil
}
