package quality

import (
	"context"
	"fmt"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/logging"
)

// Worker is the quality control agent. Evaluation is pure rule
// application, so the worker itself is stateless.
type Worker struct {
	logger logging.Logger
}

func NewWorker(logger logging.Logger) *Worker {
	return &Worker{logger: logger}
}

func (w *Worker) Type() bus.AgentType { return bus.AgentQuality }

func (w *Worker) Initialize(_ context.Context) error { return nil }

func (w *Worker) Process(_ context.Context, msg bus.Message) (any, error) {
	if msg.Task != bus.TaskCheckQuality {
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: fmt.Sprintf("unsupported task %s", msg.Task)}
	}

	var req models.CheckRequest
	if err := msg.DecodePayload(&req); err != nil {
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
	}

	report := Evaluate(req.Draft)
	w.logger.WithFields(logging.Fields{
		"draft_id": req.Draft.ID,
		"approved": report.Approved,
		"issues":   len(report.Issues),
		"risk":     report.RiskScore,
	}).Info("Draft evaluated")

	return report, nil
}
