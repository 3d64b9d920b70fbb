package bus

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const memoryRedeliveries = 2

// MemoryBus is an in-process transport with the same at-least-once
// semantics as the Kafka transport. Used for tests and single-process
// deployments.
type MemoryBus struct {
	logger  *logrus.Logger
	metrics Metrics

	mu       sync.RWMutex
	handlers map[AgentType][]Handler
	wg       sync.WaitGroup
}

func NewMemoryBus(logger *logrus.Logger) *MemoryBus {
	return &MemoryBus{
		logger:   logger,
		handlers: make(map[AgentType][]Handler),
	}
}

// SetMetrics attaches instrumentation hooks. Call before traffic flows.
func (b *MemoryBus) SetMetrics(metrics Metrics) {
	b.metrics = metrics
}

// Subscribe registers a handler for an agent's messages.
func (b *MemoryBus) Subscribe(agent AgentType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[agent] = append(b.handlers[agent], handler)
}

// Publish delivers the message asynchronously to every subscriber of its
// target. A failing handler is redelivered a bounded number of times.
func (b *MemoryBus) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[msg.Target]...)
	b.mu.RUnlock()

	b.metrics.count(msg, "published")
	for _, handler := range handlers {
		h := handler
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.deliver(h, msg)
		}()
	}
	return nil
}

func (b *MemoryBus) deliver(handler Handler, msg Message) {
	ctx := context.Background()
	start := time.Now()
	defer b.metrics.observe("handle", start)
	for attempt := 0; attempt <= memoryRedeliveries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 10 * time.Millisecond)
		}
		err := handler(ctx, msg)
		if err == nil {
			b.metrics.count(msg, "handled")
			return
		}
		if b.logger != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"message": msg.ID,
				"target":  msg.Target,
				"attempt": attempt + 1,
			}).Warn("memory bus handler failed")
		}
	}
	b.metrics.count(msg, "handler_error")
}

// Drain blocks until all in-flight deliveries finish. Test helper.
func (b *MemoryBus) Drain() {
	b.wg.Wait()
}
