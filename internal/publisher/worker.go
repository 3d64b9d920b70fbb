package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/logging"
)

// immediateWindow is how soon the optimal slot must be for a publish to
// go out now instead of being queued for later.
const immediateWindow = 15 * time.Minute

// EntryStore is the slice of the schedule store the worker needs.
type EntryStore interface {
	ScheduleReader
	Create(ctx context.Context, entry models.ScheduleEntry) (models.ScheduleEntry, error)
	Cancel(ctx context.Context, id, userID string) error
}

// Worker is the publisher agent: rate limiting, slot selection,
// formatting, delivery, and schedule management.
type Worker struct {
	limiter   *Limiter
	engine    *Engine
	store     EntryStore
	deliverer *Deliverer
	bus       bus.Bus
	logger    logging.Logger
	now       func() time.Time
}

func NewWorker(limiter *Limiter, engine *Engine, store EntryStore, deliverer *Deliverer, b bus.Bus, logger logging.Logger) *Worker {
	return &Worker{
		limiter:   limiter,
		engine:    engine,
		store:     store,
		deliverer: deliverer,
		bus:       b,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the worker's notion of now, for tests.
func (w *Worker) SetClock(now func() time.Time) { w.now = now }

func (w *Worker) Type() bus.AgentType { return bus.AgentPublisher }

func (w *Worker) Initialize(_ context.Context) error { return nil }

func (w *Worker) Process(ctx context.Context, msg bus.Message) (any, error) {
	switch msg.Task {
	case bus.TaskPublishContent:
		var req models.PublishRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return w.publish(ctx, req)
	case bus.TaskScheduleContent:
		var req models.ScheduleRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return w.schedule(ctx, req)
	case bus.TaskOptimizeTiming:
		var req models.TimingRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return w.engine.OptimalSlots(ctx, req)
	case bus.TaskCancelScheduled:
		var req models.CancelRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return w.cancel(ctx, req)
	default:
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: fmt.Sprintf("unsupported task %s", msg.Task)}
	}
}

// publish delivers now when the optimal slot is imminent, otherwise it
// queues the draft for that slot.
func (w *Worker) publish(ctx context.Context, req models.PublishRequest) (any, error) {
	platform, err := PlatformFor(req.Platform)
	if err != nil {
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
	}

	// Drafts that quality control rejected never reach a platform.
	if req.Draft.Status == models.StatusManualReview || req.Draft.Status == models.StatusFailed {
		return nil, &bus.TaskError{
			Code:    bus.CodeQualityGate,
			Message: fmt.Sprintf("draft %s has not cleared quality control", req.Draft.ID),
		}
	}

	if err := w.limiter.Allow(ctx, req.Draft.UserID, platform); err != nil {
		return nil, err
	}

	slots, err := w.engine.OptimalSlots(ctx, models.TimingRequest{
		UserID:   req.Draft.UserID,
		Platform: platform.Name,
		Count:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(slots) > 0 && slots[0].At.Sub(w.now()) > immediateWindow {
		return w.enqueue(ctx, req.Draft, platform, slots[0].At)
	}

	return w.deliverNow(ctx, req.Draft, platform)
}

func (w *Worker) schedule(ctx context.Context, req models.ScheduleRequest) (models.ScheduleEntry, error) {
	platform, err := PlatformFor(req.Platform)
	if err != nil {
		return models.ScheduleEntry{}, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
	}

	at := req.At
	if at.IsZero() {
		slots, err := w.engine.OptimalSlots(ctx, models.TimingRequest{
			UserID:      req.Draft.UserID,
			Platform:    platform.Name,
			Count:       1,
			Preferences: req.Preferences,
		})
		if err != nil {
			return models.ScheduleEntry{}, err
		}
		at = slots[0].At
	}

	return w.enqueue(ctx, req.Draft, platform, at)
}

func (w *Worker) enqueue(ctx context.Context, draft models.Draft, platform Platform, at time.Time) (models.ScheduleEntry, error) {
	entry, err := w.store.Create(ctx, models.ScheduleEntry{
		ContentID:    draft.ID,
		UserID:       draft.UserID,
		Platform:     platform.Name,
		Content:      draft.Content,
		ScheduledFor: at.UTC(),
	})
	if err != nil {
		return models.ScheduleEntry{}, bus.NewTaskError(bus.CodeUpstream, true, err)
	}

	w.logger.WithFields(logging.Fields{
		"entry_id":      entry.ID,
		"content_id":    entry.ContentID,
		"platform":      entry.Platform,
		"scheduled_for": entry.ScheduledFor,
	}).Info("Publish scheduled")

	return entry, nil
}

func (w *Worker) cancel(ctx context.Context, req models.CancelRequest) (any, error) {
	if err := w.store.Cancel(ctx, req.ScheduleID, req.UserID); err != nil {
		if errors.Is(err, ErrEntryNotCancellable) {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return nil, bus.NewTaskError(bus.CodeUpstream, true, err)
	}
	w.logger.WithField("entry_id", req.ScheduleID).Info("Scheduled publish cancelled")
	return map[string]string{"status": "cancelled"}, nil
}

// deliverNow formats, delivers, bumps rate counters on success, and
// notifies the learning agent either way.
func (w *Worker) deliverNow(ctx context.Context, draft models.Draft, platform Platform) (models.PublishResult, error) {
	result, err := w.deliverer.Deliver(ctx, draft, platform)
	w.track(ctx, draft, result)
	if err != nil {
		if retryableDelivery(err) {
			return result, bus.NewTaskError(bus.CodeUpstream, true, err)
		}
		return result, bus.NewTaskError(bus.CodeUpstream, false, err)
	}

	if err := w.limiter.RecordPublish(ctx, draft.UserID, platform); err != nil {
		w.logger.WithError(err).Warn("Failed to record publish against rate limits")
	}

	w.logger.WithFields(logging.Fields{
		"content_id":  draft.ID,
		"platform":    platform.Name,
		"external_id": result.ExternalID,
	}).Info("Content published")

	return result, nil
}

// track emits the fire-and-forget publishing notification.
func (w *Worker) track(ctx context.Context, draft models.Draft, result models.PublishResult) {
	event := models.TrackingEvent{Result: result, Scores: draft.Scores, Revision: draft.Revision}
	msg, err := bus.NewTask(bus.AgentPublisher, bus.AgentLearning, bus.TaskTrackPublishing, event)
	if err != nil {
		w.logger.WithError(err).Warn("Failed to build tracking event")
		return
	}
	if err := w.bus.Publish(ctx, msg); err != nil {
		w.logger.WithError(err).Warn("Failed to publish tracking event")
	}
}
