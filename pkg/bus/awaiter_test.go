package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestAwaiterCorrelatesReply(t *testing.T) {
	b := NewMemoryBus(logrus.New())
	awaiter := NewAwaiter()
	b.Subscribe(AgentOrchestrator, awaiter.Handle)

	// Echo worker: completes every request it sees.
	b.Subscribe(AgentGenerator, func(ctx context.Context, msg Message) error {
		reply, err := msg.Complete(map[string]string{"content": "draft"})
		if err != nil {
			return err
		}
		return b.Publish(ctx, reply)
	})

	msg, _ := NewTask(AgentOrchestrator, AgentGenerator, TaskGeneratePost, nil)
	msg = msg.WithAck(2 * time.Second)

	reply, err := awaiter.Request(context.Background(), b, msg)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if reply.InReplyTo != msg.ID {
		t.Fatalf("reply correlated to %s, want %s", reply.InReplyTo, msg.ID)
	}
	if reply.Type != TypeTaskComplete {
		t.Fatalf("expected task_complete, got %s", reply.Type)
	}
}

func TestAwaiterTimesOutWithoutReply(t *testing.T) {
	b := NewMemoryBus(logrus.New())
	awaiter := NewAwaiter()
	b.Subscribe(AgentOrchestrator, awaiter.Handle)
	// No generator subscriber: the request is never acknowledged.

	msg, _ := NewTask(AgentOrchestrator, AgentGenerator, TaskGeneratePost, nil)
	msg = msg.WithAck(50 * time.Millisecond)

	_, err := awaiter.Request(context.Background(), b, msg)
	if !errors.Is(err, ErrAckTimeout) {
		t.Fatalf("expected ErrAckTimeout, got %v", err)
	}
}

func TestAwaiterIgnoresUnmatchedReplies(t *testing.T) {
	awaiter := NewAwaiter()
	late := Message{ID: "r1", InReplyTo: "gone", Type: TypeTaskComplete, Target: AgentOrchestrator}
	if err := awaiter.Handle(context.Background(), late); err != nil {
		t.Fatalf("unmatched reply should not error: %v", err)
	}
}
