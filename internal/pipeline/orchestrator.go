package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/logging"
)

// maxRevisionCycles bounds the revise/check loop. A draft that cannot
// clear quality control in two rewrites goes to a human instead.
const maxRevisionCycles = 2

const defaultTaskTimeout = 60 * time.Second

// Outcome labels for a finished pipeline run.
const (
	OutcomePublished    = "published"
	OutcomeScheduled    = "scheduled"
	OutcomeManualReview = "needs_manual_review"
	OutcomeFailed       = "failed"
)

// Result is the terminal state of one pipeline run.
type Result struct {
	Outcome   string                `json:"outcome"`
	Draft     models.Draft          `json:"draft"`
	Report    models.QualityReport  `json:"report"`
	Publish   *models.PublishResult `json:"publish,omitempty"`
	Schedule  *models.ScheduleEntry `json:"schedule,omitempty"`
	Revisions int                   `json:"revisions"`
}

// Metrics are the orchestrator's instrumentation hooks, all optional.
type Metrics struct {
	Runs      *prometheus.CounterVec
	Revisions *prometheus.HistogramVec
	Publishes *prometheus.CounterVec
}

// Orchestrator sequences generate → check → (revise → check)* → publish
// for one draft. Ordering within a run is enforced here, not by the bus.
type Orchestrator struct {
	bus         bus.Bus
	awaiter     *bus.Awaiter
	logger      logging.Logger
	metrics     Metrics
	taskTimeout time.Duration
}

func NewOrchestrator(b bus.Bus, logger logging.Logger, metrics Metrics) *Orchestrator {
	o := &Orchestrator{
		bus:         b,
		awaiter:     bus.NewAwaiter(),
		logger:      logger,
		metrics:     metrics,
		taskTimeout: defaultTaskTimeout,
	}
	b.Subscribe(bus.AgentOrchestrator, o.awaiter.Handle)
	return o
}

// Run drives one content request through the full pipeline.
func (o *Orchestrator) Run(ctx context.Context, req models.GenerateRequest, platform string) (Result, error) {
	result, err := o.run(ctx, req, platform)
	if err != nil {
		o.countRun(OutcomeFailed)
		return Result{}, err
	}
	o.countRun(result.Outcome)
	if o.metrics.Revisions != nil {
		o.metrics.Revisions.WithLabelValues().Observe(float64(result.Revisions))
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, req models.GenerateRequest, platform string) (Result, error) {
	var draft models.Draft
	if err := o.request(ctx, bus.AgentGenerator, bus.TaskGeneratePost, req, &draft); err != nil {
		return Result{}, fmt.Errorf("generate: %w", err)
	}

	var report models.QualityReport
	revisions := 0
	for {
		if err := o.request(ctx, bus.AgentQuality, bus.TaskCheckQuality, models.CheckRequest{Draft: draft}, &report); err != nil {
			return Result{}, fmt.Errorf("quality check: %w", err)
		}
		if report.Approved {
			break
		}
		if revisions >= maxRevisionCycles {
			draft.Status = models.StatusManualReview
			o.logger.WithFields(logging.Fields{
				"draft_id":  draft.ID,
				"revisions": revisions,
				"issues":    len(report.Issues),
			}).Warn("Revision budget exhausted, escalating to manual review")
			return Result{Outcome: OutcomeManualReview, Draft: draft, Report: report, Revisions: revisions}, nil
		}

		revisions++
		o.logger.WithFields(logging.Fields{
			"draft_id": draft.ID,
			"revision": revisions,
			"issues":   len(report.Issues),
		}).Info("Draft sent back for revision")

		if err := o.request(ctx, bus.AgentGenerator, bus.TaskReviseContent,
			models.ReviseRequest{Draft: draft, Report: report}, &draft); err != nil {
			return Result{}, fmt.Errorf("revise: %w", err)
		}
	}

	draft.Status = models.StatusApproved
	return o.publish(ctx, draft, report, platform, revisions)
}

// publish hands the approved draft to the publisher. The reply is either
// an immediate publish result or a schedule entry.
func (o *Orchestrator) publish(ctx context.Context, draft models.Draft, report models.QualityReport, platform string, revisions int) (Result, error) {
	var raw json.RawMessage
	if err := o.request(ctx, bus.AgentPublisher, bus.TaskPublishContent,
		models.PublishRequest{Draft: draft, Platform: platform}, &raw); err != nil {
		return Result{}, fmt.Errorf("publish: %w", err)
	}

	result := Result{Draft: draft, Report: report, Revisions: revisions}

	var entry models.ScheduleEntry
	if err := json.Unmarshal(raw, &entry); err == nil && entry.Status == models.ScheduleScheduled {
		result.Outcome = OutcomeScheduled
		result.Schedule = &entry
		result.Draft.Status = models.StatusScheduled
		o.countPublish(platform, OutcomeScheduled)
		return result, nil
	}

	var pub models.PublishResult
	if err := json.Unmarshal(raw, &pub); err != nil {
		return Result{}, fmt.Errorf("decode publish reply: %w", err)
	}
	result.Outcome = OutcomePublished
	result.Publish = &pub
	result.Draft.Status = models.StatusPublished
	o.countPublish(platform, OutcomePublished)
	return result, nil
}

// CancelScheduled asks the publisher to cancel a pending schedule entry.
func (o *Orchestrator) CancelScheduled(ctx context.Context, scheduleID, userID string) error {
	var ack map[string]string
	return o.request(ctx, bus.AgentPublisher, bus.TaskCancelScheduled,
		models.CancelRequest{ScheduleID: scheduleID, UserID: userID}, &ack)
}

// request sends one acked task and decodes the task_complete payload
// into out. A task_error reply surfaces as the carried TaskError.
func (o *Orchestrator) request(ctx context.Context, target bus.AgentType, task bus.TaskType, payload, out any) error {
	msg, err := bus.NewTask(bus.AgentOrchestrator, target, task, payload)
	if err != nil {
		return err
	}
	msg = msg.WithAck(o.taskTimeout)

	reply, err := o.awaiter.Request(ctx, o.bus, msg)
	if err != nil {
		return err
	}
	if reply.Type == bus.TypeTaskError {
		if reply.Error != nil {
			return reply.Error
		}
		return fmt.Errorf("task %s failed without detail", task)
	}
	return reply.DecodePayload(out)
}

func (o *Orchestrator) countRun(outcome string) {
	if o.metrics.Runs != nil {
		o.metrics.Runs.WithLabelValues(outcome).Inc()
	}
}

func (o *Orchestrator) countPublish(platform, status string) {
	if o.metrics.Publishes != nil {
		o.metrics.Publishes.WithLabelValues(platform, status).Inc()
	}
}
