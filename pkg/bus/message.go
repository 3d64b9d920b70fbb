package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentType identifies a worker on the bus. The set is closed: adding an
// agent is a compile-time change, not a runtime string.
type AgentType string

const (
	AgentGenerator    AgentType = "generator"
	AgentQuality      AgentType = "quality"
	AgentPublisher    AgentType = "publisher"
	AgentLearning     AgentType = "learning"
	AgentOrchestrator AgentType = "orchestrator"
)

// MessageType distinguishes requests from their outcomes.
type MessageType string

const (
	TypeTaskRequest  MessageType = "task_request"
	TypeTaskComplete MessageType = "task_complete"
	TypeTaskError    MessageType = "task_error"
)

// Priority orders competing work within an agent.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskType enumerates every operation the pipeline's agents perform.
type TaskType string

const (
	TaskGeneratePost    TaskType = "generate_post"
	TaskReviseContent   TaskType = "revise_content"
	TaskCheckQuality    TaskType = "check_quality"
	TaskPublishContent  TaskType = "publish_content"
	TaskScheduleContent TaskType = "schedule_content"
	TaskOptimizeTiming  TaskType = "optimize_timing"
	TaskCancelScheduled TaskType = "cancel_scheduled"
	TaskTrackPublishing TaskType = "track_publishing"
	TaskOptimizeAgent   TaskType = "optimize_agent"
)

// TasksFor returns the task types an agent accepts. Runtimes use this to
// reject misrouted messages before processing.
func TasksFor(agent AgentType) []TaskType {
	switch agent {
	case AgentGenerator:
		return []TaskType{TaskGeneratePost, TaskReviseContent, TaskOptimizeAgent}
	case AgentQuality:
		return []TaskType{TaskCheckQuality}
	case AgentPublisher:
		return []TaskType{TaskPublishContent, TaskScheduleContent, TaskOptimizeTiming, TaskCancelScheduled}
	case AgentLearning:
		return []TaskType{TaskTrackPublishing}
	default:
		return nil
	}
}

// Message is the envelope passed between agents. Delivery is at-least-once;
// consumers must be idempotent on ID.
type Message struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      AgentType       `json:"source_agent"`
	Target      AgentType       `json:"target_agent"`
	Type        MessageType     `json:"type"`
	Priority    Priority        `json:"priority"`
	Task        TaskType        `json:"task_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	InReplyTo   string          `json:"in_reply_to,omitempty"`
	RequiresAck bool            `json:"requires_ack"`
	TimeoutMs   int64           `json:"timeout_ms,omitempty"`
	Error       *TaskError      `json:"error,omitempty"`
}

// NewTask builds a task_request message with a fresh ID and marshalled payload.
func NewTask(source, target AgentType, task TaskType, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal task payload: %w", err)
	}
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		Target:    target,
		Type:      TypeTaskRequest,
		Priority:  PriorityMedium,
		Task:      task,
		Payload:   raw,
	}, nil
}

// WithAck marks the message as requiring acknowledgment within the timeout.
func (m Message) WithAck(timeout time.Duration) Message {
	m.RequiresAck = true
	m.TimeoutMs = timeout.Milliseconds()
	return m
}

// WithPriority overrides the default medium priority.
func (m Message) WithPriority(p Priority) Message {
	m.Priority = p
	return m
}

// Timeout returns the acknowledgment timeout as a duration.
func (m Message) Timeout() time.Duration {
	return time.Duration(m.TimeoutMs) * time.Millisecond
}

// Complete builds the task_complete reply carrying the given result payload.
func (m Message) Complete(payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal result payload: %w", err)
	}
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    m.Target,
		Target:    m.Source,
		Type:      TypeTaskComplete,
		Priority:  m.Priority,
		Task:      m.Task,
		Payload:   raw,
		InReplyTo: m.ID,
	}, nil
}

// Failed builds the task_error reply for this message.
func (m Message) Failed(taskErr *TaskError) Message {
	return Message{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    m.Target,
		Target:    m.Source,
		Type:      TypeTaskError,
		Priority:  m.Priority,
		Task:      m.Task,
		InReplyTo: m.ID,
		Error:     taskErr,
	}
}

// DecodePayload unmarshals the payload into v.
func (m Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s has no payload", m.ID)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode payload of %s: %w", m.ID, err)
	}
	return nil
}

// Validate checks the structural invariants of an envelope.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message has no id")
	}
	if m.Target == "" {
		return fmt.Errorf("message %s has no target agent", m.ID)
	}
	switch m.Type {
	case TypeTaskRequest, TypeTaskComplete, TypeTaskError:
	default:
		return fmt.Errorf("message %s has unknown type %q", m.ID, m.Type)
	}
	if m.Type == TypeTaskError && m.Error == nil {
		return fmt.Errorf("message %s is task_error without error detail", m.ID)
	}
	return nil
}
