package bus

import (
	"context"
	"sync"
	"time"
)

const defaultAckTimeout = 30 * time.Second

// Awaiter correlates task_complete/task_error replies with their requests
// by InReplyTo. The owning agent routes its inbound replies through Handle.
type Awaiter struct {
	mu      sync.Mutex
	pending map[string]chan Message
}

func NewAwaiter() *Awaiter {
	return &Awaiter{pending: make(map[string]chan Message)}
}

// Handle is a bus Handler that fulfills a pending request if the message
// is a reply to one. Returns nil for unmatched messages so late replies
// after a timeout are not redelivered forever.
func (a *Awaiter) Handle(_ context.Context, msg Message) error {
	if msg.InReplyTo == "" {
		return nil
	}

	a.mu.Lock()
	ch, ok := a.pending[msg.InReplyTo]
	if ok {
		delete(a.pending, msg.InReplyTo)
	}
	a.mu.Unlock()

	if ok {
		ch <- msg
	}
	return nil
}

// Request publishes msg and blocks until its reply arrives or the
// message's timeout elapses. A message with requires_ack and no reply in
// time fails with ErrAckTimeout, per the envelope contract.
func (a *Awaiter) Request(ctx context.Context, b Bus, msg Message) (Message, error) {
	timeout := msg.Timeout()
	if timeout <= 0 {
		timeout = defaultAckTimeout
	}

	ch := make(chan Message, 1)
	a.mu.Lock()
	a.pending[msg.ID] = ch
	a.mu.Unlock()

	if err := b.Publish(ctx, msg); err != nil {
		a.mu.Lock()
		delete(a.pending, msg.ID)
		a.mu.Unlock()
		return Message{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		a.abandon(msg.ID)
		return Message{}, ctx.Err()
	case <-timer.C:
		a.abandon(msg.ID)
		return Message{}, ErrAckTimeout
	}
}

func (a *Awaiter) abandon(id string) {
	a.mu.Lock()
	delete(a.pending, id)
	a.mu.Unlock()
}
