package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"draftwire/internal/models"
)

func TestScheduleStoreCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO schedule_entries").
		WithArgs(sqlmock.AnyArg(), "c1", "u1", "linkedin", "hello", sqlmock.AnyArg(), "scheduled", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewScheduleStore(db)
	entry, err := store.Create(context.Background(), models.ScheduleEntry{
		ContentID:    "c1",
		UserID:       "u1",
		Platform:     "linkedin",
		Content:      "hello",
		ScheduledFor: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("create should assign an id")
	}
	if entry.Status != models.ScheduleScheduled {
		t.Fatalf("expected scheduled status, got %s", entry.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestScheduleStoreDue(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "content_id", "user_id", "platform", "content",
		"scheduled_for", "status", "attempts", "last_error", "created_at", "updated_at",
	}).AddRow("e1", "c1", "u1", "x", "post text", now.Add(-time.Minute), "scheduled", 0, "", now, now)

	mock.ExpectQuery("SELECT (.+) FROM schedule_entries").
		WithArgs(20).
		WillReturnRows(rows)

	store := NewScheduleStore(db)
	entries, err := store.Due(context.Background(), 20)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestScheduleStoreCancelOnlyWhileScheduled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE schedule_entries").
		WithArgs("e1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE schedule_entries").
		WithArgs("e2", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewScheduleStore(db)
	if err := store.Cancel(context.Background(), "e1", "u1"); err != nil {
		t.Fatalf("cancel pending entry: %v", err)
	}
	if err := store.Cancel(context.Background(), "e2", "u1"); !errors.Is(err, ErrEntryNotCancellable) {
		t.Fatalf("expected ErrEntryNotCancellable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestScheduleStoreRecordAttempt(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("UPDATE schedule_entries").
		WithArgs("e1", "platform returned 429: slow down").
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(3))

	store := NewScheduleStore(db)
	attempts, err := store.RecordAttempt(context.Background(), "e1", "platform returned 429: slow down")
	if err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected attempts 3, got %d", attempts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestScheduleStoreMarkFailedRecordsCause(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE schedule_entries").
		WithArgs("e1", "failed", "missing platform credentials").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewScheduleStore(db)
	if err := store.MarkFailed(context.Background(), "e1", "missing platform credentials"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
