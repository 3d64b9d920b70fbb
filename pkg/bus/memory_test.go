package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
)

func TestMemoryBusDeliversToTargetSubscribers(t *testing.T) {
	b := NewMemoryBus(logrus.New())

	var mu sync.Mutex
	var got []string
	b.Subscribe(AgentGenerator, func(_ context.Context, msg Message) error {
		mu.Lock()
		got = append(got, msg.ID)
		mu.Unlock()
		return nil
	})
	b.Subscribe(AgentQuality, func(_ context.Context, msg Message) error {
		t.Errorf("quality subscriber should not receive generator messages")
		return nil
	})

	msg, _ := NewTask(AgentOrchestrator, AgentGenerator, TaskGeneratePost, nil)
	if err := b.Publish(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	b.Drain()

	if len(got) != 1 || got[0] != msg.ID {
		t.Fatalf("expected one delivery of %s, got %v", msg.ID, got)
	}
}

func TestMemoryBusRedeliversOnFailure(t *testing.T) {
	b := NewMemoryBus(logrus.New())

	var mu sync.Mutex
	attempts := 0
	b.Subscribe(AgentPublisher, func(_ context.Context, _ Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	msg, _ := NewTask(AgentOrchestrator, AgentPublisher, TaskPublishContent, nil)
	if err := b.Publish(context.Background(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}
	b.Drain()

	if attempts != 2 {
		t.Fatalf("expected redelivery to succeed on attempt 2, got %d attempts", attempts)
	}
}

func TestMemoryBusCountsMessages(t *testing.T) {
	b := NewMemoryBus(logrus.New())
	messages := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "test_bus_messages_total"},
		[]string{"target", "task", "status"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "test_bus_operation_duration_seconds"},
		[]string{"operation"},
	)
	b.SetMetrics(Metrics{Messages: messages, Duration: duration})

	b.Subscribe(AgentGenerator, func(_ context.Context, _ Message) error { return nil })
	b.Subscribe(AgentQuality, func(_ context.Context, _ Message) error { return errors.New("boom") })

	ok, _ := NewTask(AgentOrchestrator, AgentGenerator, TaskGeneratePost, nil)
	if err := b.Publish(context.Background(), ok); err != nil {
		t.Fatalf("publish: %v", err)
	}
	bad, _ := NewTask(AgentOrchestrator, AgentQuality, TaskCheckQuality, nil)
	if err := b.Publish(context.Background(), bad); err != nil {
		t.Fatalf("publish: %v", err)
	}
	b.Drain()

	published := testutil.ToFloat64(messages.WithLabelValues(string(AgentGenerator), string(TaskGeneratePost), "published"))
	handled := testutil.ToFloat64(messages.WithLabelValues(string(AgentGenerator), string(TaskGeneratePost), "handled"))
	failed := testutil.ToFloat64(messages.WithLabelValues(string(AgentQuality), string(TaskCheckQuality), "handler_error"))
	if published != 1 || handled != 1 || failed != 1 {
		t.Fatalf("unexpected counts: published=%v handled=%v handler_error=%v", published, handled, failed)
	}
}

func TestMemoryBusRejectsInvalidMessage(t *testing.T) {
	b := NewMemoryBus(logrus.New())
	if err := b.Publish(context.Background(), Message{}); err == nil {
		t.Fatalf("expected validation error")
	}
}
