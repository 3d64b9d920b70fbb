package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
)

type fakePlatformClient struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakePlatformClient) Publish(_ context.Context, _, _, _ string) (PostResult, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return PostResult{}, c.err
	}
	return PostResult{PostID: "p1", URL: "https://example.com/p1"}, nil
}

type fakeEntryStore struct {
	mu      sync.Mutex
	created []models.ScheduleEntry
	cancels []string
}

func (s *fakeEntryStore) Create(_ context.Context, e models.ScheduleEntry) (models.ScheduleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = "entry-1"
	e.Status = models.ScheduleScheduled
	s.created = append(s.created, e)
	return e, nil
}

func (s *fakeEntryStore) Cancel(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "gone" {
		return ErrEntryNotCancellable
	}
	s.cancels = append(s.cancels, id)
	return nil
}

func (s *fakeEntryStore) UpcomingTimes(_ context.Context, _ string) ([]time.Time, error) {
	return nil, nil
}

type workerFixture struct {
	worker  *Worker
	client  *fakePlatformClient
	store   *fakeEntryStore
	bus     *bus.MemoryBus
	limiter *Limiter
	now     time.Time
}

// hotFactors makes the current hour the clear winner so publishes go out
// immediately instead of being scheduled.
func hotFactors(now time.Time) models.TimingFactors {
	var f models.TimingFactors
	f.AudienceActivity[int(now.Weekday())][now.Hour()+1] = 1.0
	return f
}

func newWorkerFixture(t *testing.T, factors models.TimingFactors, clientErr error) *workerFixture {
	t.Helper()
	logger := logrus.New()
	now := time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC) // Monday morning

	client := &fakePlatformClient{err: clientErr}
	store := &fakeEntryStore{}
	b := bus.NewMemoryBus(logger)

	counter := NewMemoryCounterStore()
	counter.now = func() time.Time { return now }
	limiter := NewLimiter(counter)
	limiter.now = func() time.Time { return now }

	engine := NewEngine(StaticFactorSource{Fixed: factors}, store)
	engine.now = func() time.Time { return now }

	w := NewWorker(limiter, engine, store, NewDeliverer(client, logger), b, logger)
	w.now = func() time.Time { return now }

	return &workerFixture{worker: w, client: client, store: store, bus: b, limiter: limiter, now: now}
}

func publishMessage(t *testing.T, req models.PublishRequest) bus.Message {
	t.Helper()
	msg, err := bus.NewTask(bus.AgentOrchestrator, bus.AgentPublisher, bus.TaskPublishContent, req)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return msg
}

func TestPublishDeliversImmediatelyWhenSlotIsNow(t *testing.T) {
	fx := newWorkerFixture(t, hotFactors(time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC)), nil)

	var tracked []bus.Message
	var mu sync.Mutex
	fx.bus.Subscribe(bus.AgentLearning, func(_ context.Context, msg bus.Message) error {
		mu.Lock()
		tracked = append(tracked, msg)
		mu.Unlock()
		return nil
	})

	draft := models.Draft{ID: "c1", UserID: "u1", Content: "A fine update.", Status: models.StatusApproved}
	result, err := fx.worker.Process(context.Background(), publishMessage(t, models.PublishRequest{Draft: draft, Platform: "linkedin"}))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	pub := result.(models.PublishResult)
	if pub.Status != "published" || pub.ExternalID != "p1" {
		t.Fatalf("unexpected result: %+v", pub)
	}
	if fx.client.calls != 1 {
		t.Fatalf("expected one delivery call, got %d", fx.client.calls)
	}

	fx.bus.Drain()
	mu.Lock()
	defer mu.Unlock()
	if len(tracked) != 1 || tracked[0].Task != bus.TaskTrackPublishing {
		t.Fatalf("expected one tracking event, got %+v", tracked)
	}
}

func TestPublishSchedulesWhenBestSlotIsLater(t *testing.T) {
	// Best slot Wednesday afternoon, far outside the immediate window.
	var factors models.TimingFactors
	factors.AudienceActivity[int(time.Wednesday)][14] = 1.0
	fx := newWorkerFixture(t, factors, nil)

	draft := models.Draft{ID: "c1", UserID: "u1", Content: "A fine update.", Status: models.StatusApproved}
	result, err := fx.worker.Process(context.Background(), publishMessage(t, models.PublishRequest{Draft: draft, Platform: "linkedin"}))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	entry := result.(models.ScheduleEntry)
	if entry.Status != models.ScheduleScheduled {
		t.Fatalf("expected scheduled entry, got %+v", entry)
	}
	if entry.ScheduledFor.Weekday() != time.Wednesday || entry.ScheduledFor.Hour() != 14 {
		t.Fatalf("expected Wednesday 14:00 slot, got %s", entry.ScheduledFor)
	}
	if fx.client.calls != 0 {
		t.Fatalf("scheduled publish must not call the platform")
	}
}

func TestPublishRejectedWhenRateLimited(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC)
	fx := newWorkerFixture(t, hotFactors(now), nil)
	platform, _ := PlatformFor("linkedin")

	for i := 0; i < platform.MaxPerHour; i++ {
		if err := fx.limiter.RecordPublish(context.Background(), "u1", platform); err != nil {
			t.Fatalf("record publish: %v", err)
		}
	}

	draft := models.Draft{ID: "c1", UserID: "u1", Content: "A fine update."}
	_, err := fx.worker.Process(context.Background(), publishMessage(t, models.PublishRequest{Draft: draft, Platform: "linkedin"}))
	taskErr := bus.AsTaskError(err)
	if taskErr.Code != bus.CodeRateLimited || !taskErr.Retryable {
		t.Fatalf("expected retryable rate_limited, got %+v", taskErr)
	}
	if fx.client.calls != 0 {
		t.Fatalf("rate-limited publish must not reach the platform")
	}
}

func TestPublishRejectsDraftHeldForManualReview(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC)
	fx := newWorkerFixture(t, hotFactors(now), nil)

	draft := models.Draft{ID: "c1", UserID: "u1", Content: "A fine update.", Status: models.StatusManualReview}
	_, err := fx.worker.Process(context.Background(), publishMessage(t, models.PublishRequest{Draft: draft, Platform: "linkedin"}))
	taskErr := bus.AsTaskError(err)
	if taskErr.Code != bus.CodeQualityGate {
		t.Fatalf("expected quality_gate_failed, got %+v", taskErr)
	}
	if fx.client.calls != 0 {
		t.Fatalf("gated draft must never reach the platform")
	}
}

func TestPublishFailureDoesNotConsumeRateBudget(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 50, 0, 0, time.UTC)
	fx := newWorkerFixture(t, hotFactors(now), ErrMissingCredentials)
	platform, _ := PlatformFor("linkedin")

	draft := models.Draft{ID: "c1", UserID: "u1", Content: "A fine update."}
	_, err := fx.worker.Process(context.Background(), publishMessage(t, models.PublishRequest{Draft: draft, Platform: "linkedin"}))
	taskErr := bus.AsTaskError(err)
	if taskErr == nil || taskErr.Retryable {
		t.Fatalf("missing credentials must be terminal, got %+v", taskErr)
	}
	// Credentials are checked once; no retries for terminal failures.
	if fx.client.calls != 1 {
		t.Fatalf("expected single attempt, got %d", fx.client.calls)
	}

	if err := fx.limiter.Allow(context.Background(), "u1", platform); err != nil {
		t.Fatalf("failed publish must not consume rate budget: %v", err)
	}
}

func TestCancelScheduled(t *testing.T) {
	fx := newWorkerFixture(t, models.TimingFactors{}, nil)

	msg, _ := bus.NewTask(bus.AgentOrchestrator, bus.AgentPublisher, bus.TaskCancelScheduled,
		models.CancelRequest{ScheduleID: "entry-1", UserID: "u1"})
	if _, err := fx.worker.Process(context.Background(), msg); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(fx.store.cancels) != 1 || fx.store.cancels[0] != "entry-1" {
		t.Fatalf("cancel not recorded: %+v", fx.store.cancels)
	}

	gone, _ := bus.NewTask(bus.AgentOrchestrator, bus.AgentPublisher, bus.TaskCancelScheduled,
		models.CancelRequest{ScheduleID: "gone", UserID: "u1"})
	_, err := fx.worker.Process(context.Background(), gone)
	taskErr := bus.AsTaskError(err)
	if taskErr.Code != bus.CodeInvalidTask {
		t.Fatalf("cancelling a dispatched entry should be invalid, got %+v", taskErr)
	}
}
