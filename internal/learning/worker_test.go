package learning

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
)

func TestWorkerRecordsPublishOutcome(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO content_publishes").
		WithArgs("c1", "u1", "linkedin", "published", "p1", "https://example.com/p1", "",
			0.85, 0.7, 0.1, uint8(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := NewWorker(db, logrus.New())
	event := models.TrackingEvent{
		Result: models.PublishResult{
			ContentID:   "c1",
			UserID:      "u1",
			Platform:    "linkedin",
			Status:      "published",
			ExternalID:  "p1",
			URL:         "https://example.com/p1",
			PublishedAt: time.Now().UTC(),
		},
		Scores:   models.Scores{VoiceMatch: 0.85, Quality: 0.7, Risk: 0.1},
		Revision: 1,
	}

	msg, _ := bus.NewTask(bus.AgentPublisher, bus.AgentLearning, bus.TaskTrackPublishing, event)
	if _, err := w.Process(context.Background(), msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWorkerRejectsForeignTasks(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := NewWorker(db, logrus.New())
	msg, _ := bus.NewTask(bus.AgentPublisher, bus.AgentLearning, bus.TaskGeneratePost, nil)
	_, perr := w.Process(context.Background(), msg)
	if taskErr := bus.AsTaskError(perr); taskErr.Code != bus.CodeInvalidTask {
		t.Fatalf("expected invalid_task, got %+v", taskErr)
	}
}

func TestOptimizerBiasesFromHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "avg_voice", "avg_quality", "samples"}).
		AddRow("drifting", 0.5, 0.6, uint64(10)).
		AddRow("steady", 0.7, 0.7, uint64(12)).
		AddRow("strong", 0.9, 0.8, uint64(8))
	mock.ExpectQuery("SELECT user_id").WillReturnRows(rows)

	opt := NewOptimizer(db, bus.NewMemoryBus(logrus.New()), logrus.New(), time.Hour)
	updates, err := opt.computeUpdates(context.Background())
	if err != nil {
		t.Fatalf("compute updates: %v", err)
	}

	if len(updates) != 2 {
		t.Fatalf("expected updates for drifting and strong users only, got %+v", updates)
	}
	byUser := map[string]float64{}
	for _, u := range updates {
		byUser[u.UserID] = u.TemperatureBias
	}
	if byUser["drifting"] != coolBias {
		t.Fatalf("low voice match should cool the temperature, got %f", byUser["drifting"])
	}
	if byUser["strong"] != warmBias {
		t.Fatalf("strong history should warm the temperature, got %f", byUser["strong"])
	}
}

func TestOptimizerEmitsUpdatesOnBus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"user_id", "avg_voice", "avg_quality", "samples"}).
		AddRow("u1", 0.4, 0.5, uint64(20))
	mock.ExpectQuery("SELECT user_id").WillReturnRows(rows)

	b := bus.NewMemoryBus(logrus.New())
	var got []bus.Message
	b.Subscribe(bus.AgentGenerator, func(_ context.Context, msg bus.Message) error {
		got = append(got, msg)
		return nil
	})

	opt := NewOptimizer(db, b, logrus.New(), time.Hour)
	opt.runCycle(context.Background())
	b.Drain()

	if len(got) != 1 || got[0].Task != bus.TaskOptimizeAgent {
		t.Fatalf("expected one optimize_agent message, got %+v", got)
	}
	if got[0].Priority != bus.PriorityLow {
		t.Fatalf("optimization updates are background work, got priority %s", got[0].Priority)
	}
}
