package publisher

import (
	"context"
	"fmt"
	"time"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/logging"
)

const (
	defaultPollInterval = 30 * time.Second
	dueBatchSize        = 20

	// maxDeliveryAttempts caps redelivery of a due entry across sweeps.
	// Each attempt already carries its own bounded in-call retries.
	maxDeliveryAttempts = 5
)

// DueStore is the slice of the schedule store the scheduler consumes.
type DueStore interface {
	Due(ctx context.Context, limit int) ([]models.ScheduleEntry, error)
	RecordAttempt(ctx context.Context, id string, cause string) (int, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause string) error
}

// Scheduler drains due schedule entries and hands them to the deliverer.
// Retryable delivery failures leave the entry scheduled for the next
// sweep; terminal ones flip it to failed.
type Scheduler struct {
	store     DueStore
	deliverer *Deliverer
	limiter   *Limiter
	bus       bus.Bus
	logger    logging.Logger
	interval  time.Duration
}

func NewScheduler(store DueStore, deliverer *Deliverer, limiter *Limiter, b bus.Bus, logger logging.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Scheduler{
		store:     store,
		deliverer: deliverer,
		limiter:   limiter,
		bus:       b,
		logger:    logger,
		interval:  interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	entries, err := s.store.Due(ctx, dueBatchSize)
	if err != nil {
		s.logger.WithError(err).Warn("Scheduler: failed to load due entries")
		return
	}

	for _, entry := range entries {
		s.dispatch(ctx, entry)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, entry models.ScheduleEntry) {
	platform, err := PlatformFor(entry.Platform)
	if err != nil {
		s.fail(ctx, entry, err.Error())
		return
	}

	// A user who exhausted their publish window keeps the entry; it goes
	// out on a later sweep once the bucket rolls over.
	if err := s.limiter.Allow(ctx, entry.UserID, platform); err != nil {
		s.logger.WithFields(logging.Fields{
			"entry_id": entry.ID,
			"user_id":  entry.UserID,
			"platform": entry.Platform,
		}).Info("Scheduler: rate limit reached, deferring entry")
		return
	}

	draft := models.Draft{ID: entry.ContentID, UserID: entry.UserID, Content: entry.Content}
	result, err := s.deliverer.Deliver(ctx, draft, platform)

	if err != nil {
		if retryableDelivery(err) {
			s.retryOrFail(ctx, entry, result, err)
			return
		}
		s.fail(ctx, entry, err.Error())
		s.notify(ctx, result)
		return
	}
	s.notify(ctx, result)

	if err := s.store.MarkPublished(ctx, entry.ID); err != nil {
		s.logger.WithError(err).WithField("entry_id", entry.ID).Warn("Scheduler: failed to mark published")
	}
	if err := s.limiter.RecordPublish(ctx, entry.UserID, platform); err != nil {
		s.logger.WithError(err).Warn("Scheduler: failed to record publish against rate limits")
	}

	s.logger.WithFields(logging.Fields{
		"entry_id":    entry.ID,
		"platform":    entry.Platform,
		"external_id": result.ExternalID,
	}).Info("Scheduled content published")
}

// retryOrFail records a transient delivery failure. The entry stays
// scheduled for the next sweep until the attempt ceiling, then it is
// surfaced as failed.
func (s *Scheduler) retryOrFail(ctx context.Context, entry models.ScheduleEntry, result models.PublishResult, cause error) {
	attempts, err := s.store.RecordAttempt(ctx, entry.ID, cause.Error())
	if err != nil {
		s.logger.WithError(err).WithField("entry_id", entry.ID).Warn("Scheduler: failed to record delivery attempt")
		return
	}
	if attempts < maxDeliveryAttempts {
		s.logger.WithError(cause).WithFields(logging.Fields{
			"entry_id": entry.ID,
			"attempts": attempts,
		}).Warn("Scheduler: transient delivery failure")
		return
	}
	s.fail(ctx, entry, fmt.Sprintf("gave up after %d attempts: %s", attempts, cause))
	s.notify(ctx, result)
}

func (s *Scheduler) fail(ctx context.Context, entry models.ScheduleEntry, cause string) {
	if err := s.store.MarkFailed(ctx, entry.ID, cause); err != nil {
		s.logger.WithError(err).WithField("entry_id", entry.ID).Warn("Scheduler: failed to mark entry failed")
		return
	}
	s.logger.WithFields(logging.Fields{
		"entry_id": entry.ID,
		"cause":    cause,
	}).Warn("Scheduled publish failed terminally")
}

func (s *Scheduler) notify(ctx context.Context, result models.PublishResult) {
	event := models.TrackingEvent{Result: result}
	msg, err := bus.NewTask(bus.AgentPublisher, bus.AgentLearning, bus.TaskTrackPublishing, event)
	if err != nil {
		s.logger.WithError(err).Warn("Scheduler: failed to build tracking event")
		return
	}
	if err := s.bus.Publish(ctx, msg); err != nil {
		s.logger.WithError(err).Warn("Scheduler: failed to publish tracking event")
	}
}
