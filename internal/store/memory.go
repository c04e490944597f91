package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// mirrors PostgresStore semantics: owner scoping, the pending-only status
// transition, and one alert per entry.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[uuid.UUID]*models.User
	entries map[uuid.UUID]*models.CheckinEntry
	alerts  map[uuid.UUID]*models.Alert
	surveys map[uuid.UUID]*models.SurveyResult
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]*models.User),
		entries: make(map[uuid.UUID]*models.CheckinEntry),
		alerts:  make(map[uuid.UUID]*models.Alert),
		surveys: make(map[uuid.UUID]*models.SurveyResult),
	}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUsersByKeyPrefix(_ context.Context, prefix string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.User
	for _, u := range s.users {
		if u.APIKeyPrefix == prefix {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- Check-in entries ---

func (s *MemoryStore) CreateEntry(_ context.Context, entry *models.CheckinEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries[entry.ID] = &cp
	return nil
}

func (s *MemoryStore) GetEntry(_ context.Context, id uuid.UUID, userID uuid.UUID) (*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) ListEntries(_ context.Context, userID uuid.UUID, filter EntryFilter) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListEntriesInWindow(_ context.Context, userID uuid.UUID, from, to time.Time) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.UserID != userID || e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListPendingEntries(_ context.Context) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.Status == models.EntryStatusPending {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListPendingOlderThan(_ context.Context, cutoff time.Time) ([]*models.CheckinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CheckinEntry
	for _, e := range s.entries {
		if e.Status == models.EntryStatusPending && e.CreatedAt.Before(cutoff) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UpdateEntryStatus(_ context.Context, id uuid.UUID, status string, opts ...EntryUpdateOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return ErrNotFound
	}
	if e.Status != models.EntryStatusPending {
		return fmt.Errorf("invalid entry status transition: %s -> %s", e.Status, status)
	}
	upd := ApplyEntryUpdate(opts...)
	e.Status = status
	e.Emotion = upd.Emotion
	e.Confidence = upd.Confidence
	e.Probabilities = upd.Probabilities
	e.AnalysisError = upd.AnalysisError
	return nil
}

// --- Alerts ---

func (s *MemoryStore) CreateAlerts(_ context.Context, alerts []*models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range alerts {
		if a.EntryID != nil && s.entryAlertedLocked(a.UserID, *a.EntryID) {
			continue
		}
		cp := *a
		s.alerts[a.ID] = &cp
	}
	return nil
}

func (s *MemoryStore) entryAlertedLocked(userID, entryID uuid.UUID) bool {
	for _, a := range s.alerts {
		if a.UserID == userID && a.EntryID != nil && *a.EntryID == entryID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) ListAlerts(_ context.Context, userID uuid.UUID) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) EntryIDsWithAlerts(_ context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	for _, a := range s.alerts {
		if a.UserID == userID && a.EntryID != nil {
			seen[*a.EntryID] = true
		}
	}
	return seen, nil
}

func (s *MemoryStore) AcknowledgeAlert(_ context.Context, id uuid.UUID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	a.Status = models.AlertStatusAcknowledged
	return nil
}

func (s *MemoryStore) AcknowledgeAllAlerts(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.UserID == userID && a.Status == models.AlertStatusNew {
			a.Status = models.AlertStatusAcknowledged
			n++
		}
	}
	return n, nil
}

// --- Survey results ---

func (s *MemoryStore) CreateSurveyResult(_ context.Context, result *models.SurveyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *result
	s.surveys[result.ID] = &cp
	return nil
}

func (s *MemoryStore) ListSurveyResults(_ context.Context, userID uuid.UUID) ([]*models.SurveyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SurveyResult
	for _, r := range s.surveys {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) LatestSurveyInWindow(_ context.Context, userID uuid.UUID, from, to time.Time) (*models.SurveyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SurveyResult
	for _, r := range s.surveys {
		if r.UserID != userID || r.CreatedAt.Before(from) || !r.CreatedAt.Before(to) {
			continue
		}
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
