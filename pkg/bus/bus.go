package bus

import (
	"context"
)

// Handler processes one delivered message. Returning an error leaves the
// message eligible for redelivery; handlers must be idempotent on ID.
type Handler func(ctx context.Context, msg Message) error

// Bus is the asynchronous transport between agents. Publish delivers the
// message to every subscriber of its target agent; Subscribe registers a
// handler invoked once per delivery.
type Bus interface {
	Publish(ctx context.Context, msg Message) error
	Subscribe(agent AgentType, handler Handler)
}
