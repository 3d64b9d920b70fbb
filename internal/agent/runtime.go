package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"draftwire/pkg/bus"
	"draftwire/pkg/logging"
)

const (
	defaultQueueSize      = 64
	defaultMaxConcurrent  = 4
	defaultHealthInterval = 30 * time.Second
)

// Worker is the unit of behavior hosted by a Runtime. Process returns the
// result payload for the task_complete reply, or an error that the runtime
// converts into a task_error reply.
type Worker interface {
	Type() bus.AgentType
	Initialize(ctx context.Context) error
	Process(ctx context.Context, msg bus.Message) (any, error)
}

// Metrics are the runtime's instrumentation hooks. All fields are optional.
type Metrics struct {
	Tasks    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// Config wires a Runtime.
type Config struct {
	Bus            bus.Bus
	Worker         Worker
	Logger         logging.Logger
	Metrics        Metrics
	QueueSize      int
	MaxConcurrent  int
	HealthInterval time.Duration
}

// Runtime hosts one worker on the bus: it validates and queues inbound
// tasks, runs them on a bounded executor pool, and publishes replies.
type Runtime struct {
	bus            bus.Bus
	worker         Worker
	logger         logging.Logger
	metrics        Metrics
	queue          chan bus.Message
	maxConcurrent  int
	healthInterval time.Duration
	accepted       map[bus.TaskType]bool
}

func NewRuntime(cfg Config) *Runtime {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	healthInterval := cfg.HealthInterval
	if healthInterval <= 0 {
		healthInterval = defaultHealthInterval
	}

	accepted := make(map[bus.TaskType]bool)
	for _, task := range bus.TasksFor(cfg.Worker.Type()) {
		accepted[task] = true
	}

	return &Runtime{
		bus:            cfg.Bus,
		worker:         cfg.Worker,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		queue:          make(chan bus.Message, queueSize),
		maxConcurrent:  maxConcurrent,
		healthInterval: healthInterval,
		accepted:       accepted,
	}
}

// Start initializes the worker, subscribes it, and runs the executor pool
// until ctx is cancelled. Queued tasks are drained before Start returns.
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.worker.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize %s worker: %w", r.worker.Type(), err)
	}

	r.bus.Subscribe(r.worker.Type(), r.enqueue)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.maxConcurrent; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					// Drain whatever was already accepted.
					for {
						select {
						case msg := <-r.queue:
							r.execute(context.Background(), msg)
						default:
							return nil
						}
					}
				case msg := <-r.queue:
					r.execute(gctx, msg)
				}
			}
		})
	}
	g.Go(func() error {
		r.healthLoop(gctx)
		return nil
	})

	r.logger.WithFields(logging.Fields{
		"agent":       r.worker.Type(),
		"executors":   r.maxConcurrent,
		"queue_depth": cap(r.queue),
	}).Info("Agent runtime started")

	return g.Wait()
}

// enqueue is the bus handler: it rejects misrouted or malformed tasks with
// a task_error reply and admits the rest to the bounded queue. A full queue
// returns an error so the bus redelivers instead of dropping work.
func (r *Runtime) enqueue(ctx context.Context, msg bus.Message) error {
	if msg.Type != bus.TypeTaskRequest {
		return nil
	}
	if !r.accepted[msg.Task] {
		taskErr := &bus.TaskError{
			Code:    bus.CodeInvalidTask,
			Message: fmt.Sprintf("agent %s does not accept task %s", r.worker.Type(), msg.Task),
		}
		r.countTask(msg.Task, "rejected")
		return r.bus.Publish(ctx, msg.Failed(taskErr))
	}

	select {
	case r.queue <- msg:
		return nil
	default:
		r.countTask(msg.Task, "queue_full")
		return fmt.Errorf("agent %s queue full", r.worker.Type())
	}
}

func (r *Runtime) execute(ctx context.Context, msg bus.Message) {
	if r.metrics.InFlight != nil {
		r.metrics.InFlight.WithLabelValues(string(r.worker.Type())).Inc()
		defer r.metrics.InFlight.WithLabelValues(string(r.worker.Type())).Dec()
	}

	start := time.Now()
	result, err := r.process(ctx, msg)
	elapsed := time.Since(start)

	if r.metrics.Duration != nil {
		r.metrics.Duration.WithLabelValues(string(r.worker.Type()), string(msg.Task)).Observe(elapsed.Seconds())
	}

	if err != nil {
		r.countTask(msg.Task, "error")
		r.logger.WithError(err).WithFields(logging.Fields{
			"agent":      r.worker.Type(),
			"task":       msg.Task,
			"message_id": msg.ID,
			"duration":   elapsed,
		}).Error("Task failed")
		if pubErr := r.bus.Publish(ctx, msg.Failed(bus.AsTaskError(err))); pubErr != nil {
			r.logger.WithError(pubErr).Error("Failed to publish task_error reply")
		}
		return
	}

	r.countTask(msg.Task, "ok")
	reply, err := msg.Complete(result)
	if err != nil {
		r.logger.WithError(err).Error("Failed to build task_complete reply")
		return
	}
	if err := r.bus.Publish(ctx, reply); err != nil {
		r.logger.WithError(err).Error("Failed to publish task_complete reply")
	}
}

// process runs the worker with panic containment so one bad task cannot
// take down the executor pool.
func (r *Runtime) process(ctx context.Context, msg bus.Message) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &bus.TaskError{
				Code:    bus.CodeInternal,
				Message: fmt.Sprintf("panic in %s worker: %v", r.worker.Type(), rec),
			}
		}
	}()
	return r.worker.Process(ctx, msg)
}

func (r *Runtime) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(r.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.logger.WithFields(logging.Fields{
				"agent":       r.worker.Type(),
				"queue_depth": len(r.queue),
			}).Debug("Agent heartbeat")
		}
	}
}

func (r *Runtime) countTask(task bus.TaskType, status string) {
	if r.metrics.Tasks != nil {
		r.metrics.Tasks.WithLabelValues(string(r.worker.Type()), string(task), status).Inc()
	}
}
