package checkin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/cache"
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

const statusCacheTTL = 30 * time.Minute

// Analyzer runs the multimodal pipeline on one check-in.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath, textInput string) (emotion.Verdict, error)
}

// Enqueuer hands an entry to the background workers. Returns false when the
// queue is full or stopped.
type Enqueuer interface {
	Enqueue(entryID, userID uuid.UUID) bool
}

// AlertRecorder records a mood alert for a freshly analyzed entry.
type AlertRecorder interface {
	RecordEntry(ctx context.Context, entry *models.CheckinEntry) error
}

// BatchResult reports the outcome of a process-pending sweep. Failed entries
// land in terminal failed state and are reported, not retried.
type BatchResult struct {
	Processed []uuid.UUID `json:"processed"`
	Failed    []uuid.UUID `json:"failed"`
}

// Service owns the check-in entry lifecycle: submission, async dispatch, and
// the pending -> analyzed|failed transition.
type Service struct {
	store    store.Store
	cache    cache.Cache
	analyzer Analyzer
	queue    Enqueuer
	alerts   AlertRecorder
}

// NewService creates a new check-in Service. Attach a queue before serving
// submissions, otherwise entries stay pending until the next sweep.
func NewService(st store.Store, ca cache.Cache, analyzer Analyzer) *Service {
	return &Service{store: st, cache: ca, analyzer: analyzer}
}

// AttachQueue wires the background worker queue. Called once at startup.
func (s *Service) AttachQueue(q Enqueuer) {
	s.queue = q
}

// AttachAlertRecorder wires alert creation on negative verdicts. Optional:
// without it alerts are still backfilled lazily on listing.
func (s *Service) AttachAlertRecorder(r AlertRecorder) {
	s.alerts = r
}

// Submit persists a pending entry and dispatches it to the workers. Returns
// the entry immediately without waiting for analysis.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, videoPath string, textInput *string) (*models.CheckinEntry, error) {
	if videoPath == "" {
		return nil, fmt.Errorf("invalid entry: video path is required")
	}

	entry := &models.CheckinEntry{
		ID:        uuid.New(),
		UserID:    userID,
		VideoPath: videoPath,
		TextInput: textInput,
		Status:    models.EntryStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("creating entry: %w", err)
	}

	_ = s.cache.SetEntryStatus(ctx, entry.ID, models.EntryStatusPending, statusCacheTTL)

	if s.queue != nil && !s.queue.Enqueue(entry.ID, userID) {
		slog.Warn("worker queue full, entry left for sweep", "entry_id", entry.ID)
	}

	return entry, nil
}

// Get returns one entry scoped to its owner.
func (s *Service) Get(ctx context.Context, userID, entryID uuid.UUID) (*models.CheckinEntry, error) {
	return s.store.GetEntry(ctx, entryID, userID)
}

// History lists the user's entries, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, filter store.EntryFilter) ([]*models.CheckinEntry, error) {
	return s.store.ListEntries(ctx, userID, filter)
}

// AnalyzeEntry runs analysis synchronously for one entry. Entries already in
// a terminal state are returned unchanged. A failed analysis marks the entry
// failed and reports the cause to the caller.
func (s *Service) AnalyzeEntry(ctx context.Context, userID, entryID uuid.UUID) (*models.CheckinEntry, error) {
	entry, err := s.store.GetEntry(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}

	if entry.Terminal() {
		return entry, nil
	}

	if err := s.process(ctx, entry); err != nil {
		return nil, err
	}

	return s.store.GetEntry(ctx, entryID, userID)
}

// ProcessPending analyzes every pending entry serially, regardless of owner.
// One failure never aborts the batch.
func (s *Service) ProcessPending(ctx context.Context) (*BatchResult, error) {
	pending, err := s.store.ListPendingEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending entries: %w", err)
	}

	result := &BatchResult{Processed: []uuid.UUID{}, Failed: []uuid.UUID{}}
	for _, entry := range pending {
		if err := s.process(ctx, entry); err != nil {
			result.Failed = append(result.Failed, entry.ID)
			continue
		}
		result.Processed = append(result.Processed, entry.ID)
	}
	return result, nil
}

// ProcessQueued is the worker entrypoint. Entries that reached a terminal
// state while queued are skipped; the status cache answers that cheaply when
// the same entry was enqueued by both submit and the reconciliation sweep.
func (s *Service) ProcessQueued(ctx context.Context, entryID, userID uuid.UUID) {
	if status, ok, _ := s.cache.GetEntryStatus(ctx, entryID); ok &&
		status != models.EntryStatusPending {
		return
	}
	entry, err := s.store.GetEntry(ctx, entryID, userID)
	if err != nil {
		slog.Error("loading queued entry", "error", err, "entry_id", entryID)
		return
	}
	if entry.Terminal() {
		return
	}
	_ = s.process(ctx, entry)
}

// process runs the pipeline on one pending entry and always lands it in a
// terminal state.
func (s *Service) process(ctx context.Context, entry *models.CheckinEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in entry analysis", "error", r, "entry_id", entry.ID)
			err = fmt.Errorf("panic: %v", r)
			s.markFailed(ctx, entry.ID, err)
		}
	}()

	text := ""
	if entry.TextInput != nil {
		text = *entry.TextInput
	}

	verdict, err := s.analyzer.Analyze(ctx, entry.VideoPath, text)
	if err != nil {
		slog.Error("entry analysis failed", "error", err, "entry_id", entry.ID)
		s.markFailed(ctx, entry.ID, err)
		return err
	}

	if err := s.store.UpdateEntryStatus(ctx, entry.ID, models.EntryStatusAnalyzed,
		store.WithVerdict(string(verdict.Emotion), verdict.Confidence, verdict.Probabilities)); err != nil {
		err = fmt.Errorf("storing verdict: %w", err)
		s.markFailed(ctx, entry.ID, err)
		return err
	}
	_ = s.cache.SetEntryStatus(ctx, entry.ID, models.EntryStatusAnalyzed, statusCacheTTL)
	// The new verdict changes the user's dashboard summary.
	_ = s.cache.Delete(ctx, cache.DashboardKey(entry.UserID))

	if s.alerts != nil {
		em := string(verdict.Emotion)
		conf := verdict.Confidence
		analyzed := *entry
		analyzed.Status = models.EntryStatusAnalyzed
		analyzed.Emotion = &em
		analyzed.Confidence = &conf
		if err := s.alerts.RecordEntry(ctx, &analyzed); err != nil {
			slog.Warn("recording alert for entry", "error", err, "entry_id", entry.ID)
		}
	}

	slog.Info("entry analyzed",
		"entry_id", entry.ID,
		"emotion", verdict.Emotion,
		"confidence", verdict.Confidence)
	return nil
}

func (s *Service) markFailed(ctx context.Context, entryID uuid.UUID, cause error) {
	if err := s.store.UpdateEntryStatus(ctx, entryID, models.EntryStatusFailed,
		store.WithAnalysisError(cause.Error())); err != nil {
		slog.Error("marking entry failed", "error", err, "entry_id", entryID)
	}
	_ = s.cache.SetEntryStatus(ctx, entryID, models.EntryStatusFailed, statusCacheTTL)
}
