package checkin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/internal/emotion"
	"github.com/nexis-health/nexis-backend/internal/store"
	"github.com/nexis-health/nexis-backend/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.CheckinEntry
	// failStatusWrites injects an error on UpdateEntryStatus per target status.
	failStatusWrites map[string]error
}

func newMockStore() *mockStore {
	return &mockStore{entries: make(map[uuid.UUID]*models.CheckinEntry)}
}

func (s *mockStore) Ping(_ context.Context) error { return nil }

func (s *mockStore) CreateUser(_ context.Context, _ *models.User) error { return nil }
func (s *mockStore) GetUsersByKeyPrefix(_ context.Context, _ string) ([]*models.User, error) {
	return nil, nil
}
func (s *mockStore) GetUser(_ context.Context, _ uuid.UUID) (*models.User, error) { return nil, nil }

func (s *mockStore) CreateEntry(_ context.Context, entry *models.CheckinEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *mockStore) GetEntry(_ context.Context, id uuid.UUID, userID uuid.UUID) (*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *mockStore) ListEntries(_ context.Context, userID uuid.UUID, _ store.EntryFilter) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.UserID == userID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) ListEntriesInWindow(_ context.Context, _ uuid.UUID, _, _ time.Time) ([]*models.CheckinEntry, error) {
	return nil, nil
}

func (s *mockStore) ListPendingEntries(_ context.Context) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.Status == models.EntryStatusPending {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.Status == models.EntryStatusPending && e.CreatedAt.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) UpdateEntryStatus(_ context.Context, id uuid.UUID, status string, opts ...store.EntryUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failStatusWrites[status]; ok {
		return err
	}
	e, ok := s.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	if e.Status != models.EntryStatusPending {
		return fmt.Errorf("invalid entry status transition: %s -> %s", e.Status, status)
	}
	upd := store.ApplyEntryUpdate(opts...)
	e.Status = status
	e.Emotion = upd.Emotion
	e.Confidence = upd.Confidence
	e.Probabilities = upd.Probabilities
	e.AnalysisError = upd.AnalysisError
	return nil
}

func (s *mockStore) CreateAlerts(_ context.Context, _ []*models.Alert) error { return nil }
func (s *mockStore) ListAlerts(_ context.Context, _ uuid.UUID) ([]*models.Alert, error) {
	return nil, nil
}
func (s *mockStore) EntryIDsWithAlerts(_ context.Context, _ uuid.UUID) (map[uuid.UUID]bool, error) {
	return nil, nil
}
func (s *mockStore) AcknowledgeAlert(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *mockStore) AcknowledgeAllAlerts(_ context.Context, _ uuid.UUID) (int, error)   { return 0, nil }

func (s *mockStore) CreateSurveyResult(_ context.Context, _ *models.SurveyResult) error { return nil }
func (s *mockStore) ListSurveyResults(_ context.Context, _ uuid.UUID) ([]*models.SurveyResult, error) {
	return nil, nil
}
func (s *mockStore) LatestSurveyInWindow(_ context.Context, _ uuid.UUID, _, _ time.Time) (*models.SurveyResult, error) {
	return nil, store.ErrNotFound
}

type mockCache struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]string
}

func newMockCache() *mockCache {
	return &mockCache{statuses: make(map[uuid.UUID]string)}
}

func (c *mockCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *mockCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *mockCache) Delete(_ context.Context, _ string) error                         { return nil }
func (c *mockCache) Ping(_ context.Context) error                                     { return nil }

func (c *mockCache) SetEntryStatus(_ context.Context, entryID uuid.UUID, status string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[entryID] = status
	return nil
}

func (c *mockCache) GetEntryStatus(_ context.Context, entryID uuid.UUID) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[entryID]
	return s, ok, nil
}

func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 0, nil
}

// stubAnalyzer returns a canned verdict, or an error for video paths in fail.
type stubAnalyzer struct {
	mu      sync.Mutex
	calls   int
	fail    map[string]error
	panicOn string
	verdict emotion.Verdict
}

func happyVerdict() emotion.Verdict {
	return emotion.Verdict{
		Emotion:    emotion.Happy,
		Confidence: 70.0,
		Probabilities: map[string]float64{
			"happy": 0.7, "sad": 0.05, "angry": 0.05, "fearful": 0.05,
			"neutral": 0.05, "surprise": 0.05, "disgust": 0.05,
		},
	}
}

func (a *stubAnalyzer) Analyze(_ context.Context, videoPath, _ string) (emotion.Verdict, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.panicOn == videoPath {
		panic("tensor shape mismatch")
	}
	if err, ok := a.fail[videoPath]; ok {
		return emotion.Verdict{}, err
	}
	return a.verdict, nil
}

func (a *stubAnalyzer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type recordingQueue struct {
	mu    sync.Mutex
	items []uuid.UUID
	full  bool
}

func (q *recordingQueue) Enqueue(entryID, _ uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.items = append(q.items, entryID)
	return true
}

// --- tests ---

func TestSubmitCreatesPendingAndEnqueues(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	q := &recordingQueue{}
	svc := NewService(st, ca, &stubAnalyzer{verdict: happyVerdict()})
	svc.AttachQueue(q)

	userID := uuid.New()
	text := "feeling good today"
	entry, err := svc.Submit(context.Background(), userID, "uploads/a.mp4", &text)
	require.NoError(t, err)

	assert.Equal(t, models.EntryStatusPending, entry.Status)
	assert.Nil(t, entry.Emotion)

	stored, err := st.GetEntry(context.Background(), entry.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPending, stored.Status)

	require.Len(t, q.items, 1)
	assert.Equal(t, entry.ID, q.items[0])

	status, ok, _ := ca.GetEntryStatus(context.Background(), entry.ID)
	assert.True(t, ok)
	assert.Equal(t, models.EntryStatusPending, status)
}

func TestSubmitRequiresVideoPath(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &stubAnalyzer{})
	_, err := svc.Submit(context.Background(), uuid.New(), "", nil)
	require.Error(t, err)
}

func TestSubmitSurvivesFullQueue(t *testing.T) {
	st := newMockStore()
	svc := NewService(st, newMockCache(), &stubAnalyzer{})
	svc.AttachQueue(&recordingQueue{full: true})

	entry, err := svc.Submit(context.Background(), uuid.New(), "uploads/a.mp4", nil)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPending, entry.Status)
}

func TestAnalyzeEntrySuccess(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	svc := NewService(st, ca, &stubAnalyzer{verdict: happyVerdict()})

	userID := uuid.New()
	entry, err := svc.Submit(context.Background(), userID, "uploads/a.mp4", nil)
	require.NoError(t, err)

	got, err := svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, models.EntryStatusAnalyzed, got.Status)
	require.NotNil(t, got.Emotion)
	assert.Equal(t, "happy", *got.Emotion)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 70.0, *got.Confidence, 0.001)
	assert.InDelta(t, 0.7, got.Probabilities["happy"], 0.001)

	status, ok, _ := ca.GetEntryStatus(context.Background(), entry.ID)
	assert.True(t, ok)
	assert.Equal(t, models.EntryStatusAnalyzed, status)
}

type recordingAlerts struct {
	mu      sync.Mutex
	entries []*models.CheckinEntry
}

func (r *recordingAlerts) RecordEntry(_ context.Context, entry *models.CheckinEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func TestAnalyzeEntryNotifiesAlertRecorder(t *testing.T) {
	st := newMockStore()
	sad := emotion.Verdict{
		Emotion:       emotion.Sad,
		Confidence:    62.5,
		Probabilities: map[string]float64{"sad": 0.625, "neutral": 0.375},
	}
	svc := NewService(st, newMockCache(), &stubAnalyzer{verdict: sad})
	rec := &recordingAlerts{}
	svc.AttachAlertRecorder(rec)

	userID := uuid.New()
	entry, err := svc.Submit(context.Background(), userID, "uploads/a.mp4", nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.NoError(t, err)

	require.Len(t, rec.entries, 1)
	got := rec.entries[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, models.EntryStatusAnalyzed, got.Status)
	require.NotNil(t, got.Emotion)
	assert.Equal(t, "sad", *got.Emotion)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 62.5, *got.Confidence, 0.001)
}

func TestAnalyzeEntryTerminalIsNoop(t *testing.T) {
	st := newMockStore()
	analyzer := &stubAnalyzer{verdict: happyVerdict()}
	svc := NewService(st, newMockCache(), analyzer)

	userID := uuid.New()
	entry, err := svc.Submit(context.Background(), userID, "uploads/a.mp4", nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.NoError(t, err)
	require.Equal(t, 1, analyzer.callCount())

	// Second call returns the stored verdict without re-running the pipeline.
	got, err := svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusAnalyzed, got.Status)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestAnalyzeEntryFailureLandsFailed(t *testing.T) {
	st := newMockStore()
	cause := &emotion.MediaDecodeError{Path: "uploads/bad.mp4", Err: errors.New("ffprobe exited 1")}
	analyzer := &stubAnalyzer{fail: map[string]error{"uploads/bad.mp4": cause}}
	svc := NewService(st, newMockCache(), analyzer)

	userID := uuid.New()
	entry, err := svc.Submit(context.Background(), userID, "uploads/bad.mp4", nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.Error(t, err)

	var decodeErr *emotion.MediaDecodeError
	assert.ErrorAs(t, err, &decodeErr)

	stored, err := st.GetEntry(context.Background(), entry.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusFailed, stored.Status)
	require.NotNil(t, stored.AnalysisError)
	assert.Contains(t, *stored.AnalysisError, "ffprobe")
	assert.Nil(t, stored.Emotion)
}

func TestAnalyzeEntryNotOwned(t *testing.T) {
	st := newMockStore()
	svc := NewService(st, newMockCache(), &stubAnalyzer{verdict: happyVerdict()})

	owner := uuid.New()
	entry, err := svc.Submit(context.Background(), owner, "uploads/a.mp4", nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeEntry(context.Background(), uuid.New(), entry.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzePanicLandsFailed(t *testing.T) {
	st := newMockStore()
	analyzer := &stubAnalyzer{panicOn: "uploads/panic.mp4"}
	svc := NewService(st, newMockCache(), analyzer)

	userID := uuid.New()
	entry, err := svc.Submit(context.Background(), userID, "uploads/panic.mp4", nil)
	require.NoError(t, err)

	_, err = svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	stored, _ := st.GetEntry(context.Background(), entry.ID, userID)
	assert.Equal(t, models.EntryStatusFailed, stored.Status)
	require.NotNil(t, stored.AnalysisError)
	assert.Contains(t, *stored.AnalysisError, "tensor shape mismatch")
}

func TestProcessPendingContinuesPastFailures(t *testing.T) {
	st := newMockStore()
	cause := errors.New("no audio stream")
	analyzer := &stubAnalyzer{
		verdict: happyVerdict(),
		fail:    map[string]error{"uploads/broken.mp4": cause},
	}
	svc := NewService(st, newMockCache(), analyzer)

	userID := uuid.New()
	ctx := context.Background()

	a, _ := svc.Submit(ctx, userID, "uploads/a.mp4", nil)
	broken, _ := svc.Submit(ctx, userID, "uploads/broken.mp4", nil)
	b, _ := svc.Submit(ctx, userID, "uploads/b.mp4", nil)

	result, err := svc.ProcessPending(ctx)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, result.Processed)
	assert.ElementsMatch(t, []uuid.UUID{broken.ID}, result.Failed)

	// Every entry reached exactly one terminal state.
	for _, id := range []uuid.UUID{a.ID, broken.ID, b.ID} {
		e, err := st.GetEntry(ctx, id, userID)
		require.NoError(t, err)
		assert.True(t, e.Terminal())
	}
	brokenEntry, _ := st.GetEntry(ctx, broken.ID, userID)
	assert.Equal(t, models.EntryStatusFailed, brokenEntry.Status)
}

func TestProcessPendingEmpty(t *testing.T) {
	svc := NewService(newMockStore(), newMockCache(), &stubAnalyzer{})

	result, err := svc.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Processed)
	assert.Empty(t, result.Failed)
}

func TestProcessPendingSweepsAllUsers(t *testing.T) {
	st := newMockStore()
	svc := NewService(st, newMockCache(), &stubAnalyzer{verdict: happyVerdict()})
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()
	a, _ := svc.Submit(ctx, alice, "uploads/alice.mp4", nil)
	b, _ := svc.Submit(ctx, bob, "uploads/bob.mp4", nil)

	result, err := svc.ProcessPending(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, result.Processed)

	got, err := st.GetEntry(ctx, b.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusAnalyzed, got.Status)
}

func TestProcessQueuedSkipsTerminal(t *testing.T) {
	st := newMockStore()
	analyzer := &stubAnalyzer{verdict: happyVerdict()}
	svc := NewService(st, newMockCache(), analyzer)

	userID := uuid.New()
	entry, _ := svc.Submit(context.Background(), userID, "uploads/a.mp4", nil)

	_, err := svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.NoError(t, err)

	svc.ProcessQueued(context.Background(), entry.ID, userID)
	assert.Equal(t, 1, analyzer.callCount())
}

func TestAnalyzeVerdictWriteFailureLandsFailed(t *testing.T) {
	st := newMockStore()
	st.failStatusWrites = map[string]error{
		models.EntryStatusAnalyzed: errors.New("connection reset"),
	}
	svc := NewService(st, newMockCache(), &stubAnalyzer{verdict: happyVerdict()})

	userID := uuid.New()
	entry, _ := svc.Submit(context.Background(), userID, "uploads/a.mp4", nil)

	_, err := svc.AnalyzeEntry(context.Background(), userID, entry.ID)
	require.Error(t, err)

	// The entry must not stay pending when only the verdict write failed.
	stored, err := st.GetEntry(context.Background(), entry.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusFailed, stored.Status)
	require.NotNil(t, stored.AnalysisError)
	assert.Contains(t, *stored.AnalysisError, "storing verdict")
}

func TestProcessQueuedTrustsStatusCache(t *testing.T) {
	st := newMockStore()
	ca := newMockCache()
	analyzer := &stubAnalyzer{verdict: happyVerdict()}
	svc := NewService(st, ca, analyzer)

	userID := uuid.New()
	entry, _ := svc.Submit(context.Background(), userID, "uploads/a.mp4", nil)

	// Another worker already landed this entry; the cache answers without a
	// store read.
	require.NoError(t, ca.SetEntryStatus(context.Background(), entry.ID, models.EntryStatusAnalyzed, time.Minute))

	svc.ProcessQueued(context.Background(), entry.ID, userID)
	assert.Equal(t, 0, analyzer.callCount())
}
