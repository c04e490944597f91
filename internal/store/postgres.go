package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nexis-health/nexis-backend/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, api_key_hash, api_key_prefix, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Name, user.Email, user.APIKeyHash, user.APIKeyPrefix, user.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUsersByKeyPrefix(ctx context.Context, prefix string) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, api_key_hash, api_key_prefix, created_at
		 FROM users WHERE api_key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get users by key prefix: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.APIKeyHash, &u.APIKeyPrefix, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email, api_key_hash, api_key_prefix, created_at
		 FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &u.APIKeyHash, &u.APIKeyPrefix, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// --- Check-in entries ---

const entryColumns = `id, user_id, video_path, text_input, status, emotion, confidence, probabilities, analysis_error, created_at`

func scanEntry(row pgx.Row) (*models.CheckinEntry, error) {
	var e models.CheckinEntry
	err := row.Scan(&e.ID, &e.UserID, &e.VideoPath, &e.TextInput, &e.Status,
		&e.Emotion, &e.Confidence, &e.Probabilities, &e.AnalysisError, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) CreateEntry(ctx context.Context, entry *models.CheckinEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checkin_entries (id, user_id, video_path, text_input, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.VideoPath, entry.TextInput, entry.Status, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.CheckinEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM checkin_entries WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, userID uuid.UUID, filter EntryFilter) ([]*models.CheckinEntry, error) {
	conditions := []string{"user_id = $1"}
	args := []any{userID}
	argIdx := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	query := `SELECT ` + entryColumns + ` FROM checkin_entries WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (s *PostgresStore) ListEntriesInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*models.CheckinEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM checkin_entries
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at ASC`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list entries in window: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (s *PostgresStore) ListPendingEntries(ctx context.Context) ([]*models.CheckinEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM checkin_entries
		 WHERE status = $1 ORDER BY created_at ASC`,
		models.EntryStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func (s *PostgresStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*models.CheckinEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM checkin_entries
		 WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC`,
		models.EntryStatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list pending older than: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]*models.CheckinEntry, error) {
	var entries []*models.CheckinEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var validEntryTransitions = map[string][]string{
	models.EntryStatusPending: {models.EntryStatusAnalyzed, models.EntryStatusFailed},
}

func (s *PostgresStore) UpdateEntryStatus(ctx context.Context, id uuid.UUID, status string, opts ...EntryUpdateOption) error {
	params := ApplyEntryUpdate(opts...)

	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM checkin_entries WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get entry status: %w", err)
	}

	allowed := validEntryTransitions[currentStatus]
	valid := false
	for _, a := range allowed {
		if a == status {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid entry status transition: %s -> %s", currentStatus, status)
	}

	query := `UPDATE checkin_entries SET status = $2`
	args := []any{id, status}
	argIdx := 3

	if params.Emotion != nil {
		query += fmt.Sprintf(", emotion = $%d", argIdx)
		args = append(args, *params.Emotion)
		argIdx++
	}
	if params.Confidence != nil {
		query += fmt.Sprintf(", confidence = $%d", argIdx)
		args = append(args, *params.Confidence)
		argIdx++
	}
	if params.Probabilities != nil {
		query += fmt.Sprintf(", probabilities = $%d", argIdx)
		args = append(args, params.Probabilities)
		argIdx++
	}
	if params.AnalysisError != nil {
		query += fmt.Sprintf(", analysis_error = $%d", argIdx)
		args = append(args, *params.AnalysisError)
		argIdx++
	}

	query += " WHERE id = $1"

	_, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}
	return nil
}

// --- Alerts ---

func (s *PostgresStore) CreateAlerts(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range alerts {
		batch.Queue(
			`INSERT INTO alerts (id, user_id, entry_id, category, description, status, urgency, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id, entry_id) DO NOTHING`,
			a.ID, a.UserID, a.EntryID, a.Category, a.Description, a.Status, a.Urgency, a.CreatedAt)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range alerts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("create alerts: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListAlerts(ctx context.Context, userID uuid.UUID) ([]*models.Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, entry_id, category, description, status, urgency, created_at
		 FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.EntryID, &a.Category, &a.Description,
			&a.Status, &a.Urgency, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) EntryIDsWithAlerts(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entry_id FROM alerts WHERE user_id = $1 AND entry_id IS NOT NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("entry ids with alerts: %w", err)
	}
	defer rows.Close()

	seen := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan entry id: %w", err)
		}
		seen[id] = true
	}
	return seen, rows.Err()
}

func (s *PostgresStore) AcknowledgeAlert(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET status = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, models.AlertStatusAcknowledged)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AcknowledgeAllAlerts(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alerts SET status = $2 WHERE user_id = $1 AND status = $3`,
		userID, models.AlertStatusAcknowledged, models.AlertStatusNew)
	if err != nil {
		return 0, fmt.Errorf("acknowledge all alerts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// --- Survey results ---

func (s *PostgresStore) CreateSurveyResult(ctx context.Context, result *models.SurveyResult) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO survey_results (id, user_id, score, interpretation, answers, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, result.UserID, result.Score, result.Interpretation, result.Answers, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("create survey result: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSurveyResults(ctx context.Context, userID uuid.UUID) ([]*models.SurveyResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, score, interpretation, answers, created_at
		 FROM survey_results WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list survey results: %w", err)
	}
	defer rows.Close()

	var results []*models.SurveyResult
	for rows.Next() {
		var r models.SurveyResult
		if err := rows.Scan(&r.ID, &r.UserID, &r.Score, &r.Interpretation, &r.Answers, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan survey result: %w", err)
		}
		results = append(results, &r)
	}
	return results, rows.Err()
}

func (s *PostgresStore) LatestSurveyInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) (*models.SurveyResult, error) {
	var r models.SurveyResult
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, score, interpretation, answers, created_at
		 FROM survey_results WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at DESC LIMIT 1`, userID, from, to,
	).Scan(&r.ID, &r.UserID, &r.Score, &r.Interpretation, &r.Answers, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest survey in window: %w", err)
	}
	return &r, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
