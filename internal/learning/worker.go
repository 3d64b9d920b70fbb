package learning

import (
	"context"
	"fmt"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/database"
	"draftwire/pkg/logging"
)

// Worker is the learning agent's ingest side: it records every publish
// outcome so the optimizer has history to reason over.
type Worker struct {
	db     database.ClickHouseConn
	logger logging.Logger
}

func NewWorker(db database.ClickHouseConn, logger logging.Logger) *Worker {
	return &Worker{db: db, logger: logger}
}

func (w *Worker) Type() bus.AgentType { return bus.AgentLearning }

func (w *Worker) Initialize(_ context.Context) error { return nil }

func (w *Worker) Process(ctx context.Context, msg bus.Message) (any, error) {
	if msg.Task != bus.TaskTrackPublishing {
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: fmt.Sprintf("unsupported task %s", msg.Task)}
	}

	var event models.TrackingEvent
	if err := msg.DecodePayload(&event); err != nil {
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
	}

	if err := w.record(ctx, event); err != nil {
		return nil, bus.NewTaskError(bus.CodeUpstream, true, err)
	}

	w.logger.WithFields(logging.Fields{
		"content_id": event.Result.ContentID,
		"platform":   event.Result.Platform,
		"status":     event.Result.Status,
	}).Info("Publish outcome recorded")

	return map[string]string{"status": "recorded"}, nil
}

func (w *Worker) record(ctx context.Context, event models.TrackingEvent) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO content_publishes
			(content_id, user_id, platform, status, external_id, url, error,
			 voice_match_score, quality_score, risk_score, revision_count, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Result.ContentID, event.Result.UserID, event.Result.Platform,
		event.Result.Status, event.Result.ExternalID, event.Result.URL, event.Result.Error,
		event.Scores.VoiceMatch, event.Scores.Quality, event.Scores.Risk,
		uint8(event.Revision), event.Result.PublishedAt)
	if err != nil {
		return fmt.Errorf("insert publish outcome: %w", err)
	}
	return nil
}
