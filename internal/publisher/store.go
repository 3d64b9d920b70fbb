package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"draftwire/internal/models"
	"draftwire/pkg/database"
)

// ErrEntryNotCancellable is returned when cancellation targets an entry
// that is missing or has already left the scheduled state.
var ErrEntryNotCancellable = errors.New("publisher: schedule entry not cancellable")

// ScheduleStore persists schedule entries in Postgres.
type ScheduleStore struct {
	db database.PostgresConn
}

func NewScheduleStore(db database.PostgresConn) *ScheduleStore {
	return &ScheduleStore{db: db}
}

// Create persists a new entry in the scheduled state.
func (s *ScheduleStore) Create(ctx context.Context, entry models.ScheduleEntry) (models.ScheduleEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.Status = models.ScheduleScheduled
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_entries
			(id, content_id, user_id, platform, content, scheduled_for, status, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $8)`,
		entry.ID, entry.ContentID, entry.UserID, entry.Platform, entry.Content,
		entry.ScheduledFor, entry.Status, now)
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("insert schedule entry: %w", err)
	}
	return entry, nil
}

// Due returns entries whose time has come, oldest first.
func (s *ScheduleStore) Due(ctx context.Context, limit int) ([]models.ScheduleEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_id, user_id, platform, content, scheduled_for, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM schedule_entries
		WHERE status = 'scheduled' AND scheduled_for <= NOW()
		ORDER BY scheduled_for ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query due entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ScheduleEntry
	for rows.Next() {
		var e models.ScheduleEntry
		if err := rows.Scan(&e.ID, &e.ContentID, &e.UserID, &e.Platform, &e.Content,
			&e.ScheduledFor, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpcomingTimes lists pending publish times for a user, for the timing
// engine's minimum-interval exclusion.
func (s *ScheduleStore) UpcomingTimes(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scheduled_for FROM schedule_entries
		WHERE user_id = $1 AND status = 'scheduled'`, userID)
	if err != nil {
		return nil, fmt.Errorf("query upcoming times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan upcoming time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// MarkPublished flips scheduled→published.
func (s *ScheduleStore) MarkPublished(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.SchedulePublished, "")
}

// MarkFailed flips scheduled→failed, recording the terminal error.
func (s *ScheduleStore) MarkFailed(ctx context.Context, id string, cause string) error {
	return s.transition(ctx, id, models.ScheduleFailed, cause)
}

func (s *ScheduleStore) transition(ctx context.Context, id string, status models.ScheduleStatus, cause string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE schedule_entries
		SET status = $2, last_error = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`,
		id, status, cause)
	if err != nil {
		return fmt.Errorf("transition entry %s to %s: %w", id, status, err)
	}
	return nil
}

// RecordAttempt bumps the failed-attempt counter on a still-scheduled
// entry and returns the new count.
func (s *ScheduleStore) RecordAttempt(ctx context.Context, id string, cause string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE schedule_entries
		SET attempts = attempts + 1, last_error = NULLIF($2, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING attempts`, id, cause).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("record attempt on entry %s: %w", id, err)
	}
	return attempts, nil
}

// Cancel removes a pending entry from the queue. Entries already
// dispatched cannot be recalled.
func (s *ScheduleStore) Cancel(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedule_entries
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = 'scheduled'`,
		id, userID)
	if err != nil {
		return fmt.Errorf("cancel entry %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel entry %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrEntryNotCancellable)
	}
	return nil
}

// Get fetches one entry by id.
func (s *ScheduleStore) Get(ctx context.Context, id string) (models.ScheduleEntry, error) {
	var e models.ScheduleEntry
	err := s.db.QueryRowContext(ctx, `
		SELECT id, content_id, user_id, platform, content, scheduled_for, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM schedule_entries WHERE id = $1`, id).
		Scan(&e.ID, &e.ContentID, &e.UserID, &e.Platform, &e.Content,
			&e.ScheduledFor, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScheduleEntry{}, fmt.Errorf("entry %s not found: %w", id, err)
	}
	if err != nil {
		return models.ScheduleEntry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return e, nil
}
