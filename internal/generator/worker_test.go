package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"draftwire/internal/models"
	"draftwire/internal/voice"
	"draftwire/pkg/bus"
	"draftwire/pkg/llm"
)

type stubProvider struct {
	mu       sync.Mutex
	requests []llm.Request
	response string
	err      error
}

func (p *stubProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	return p.response, nil
}

type stubProfiles struct {
	profile models.Profile
	err     error
}

func (s *stubProfiles) Profile(_ context.Context, _ string) (models.Profile, error) {
	return s.profile, s.err
}

func testProfile() models.Profile {
	return models.Profile{
		Voice: models.VoiceProfile{
			UserID:         "u1",
			Tone:           "professional",
			Archetype:      "innovator",
			ContentPillars: []string{"engineering culture"},
			Creativity:     0.5,
		},
		Workshop: models.WorkshopData{Industry: "software", Role: "founder"},
	}
}

func generateMessage(t *testing.T, req models.GenerateRequest) bus.Message {
	t.Helper()
	msg, err := bus.NewTask(bus.AgentOrchestrator, bus.AgentGenerator, bus.TaskGeneratePost, req)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return msg
}

func TestGenerateProducesScoredDraft(t *testing.T) {
	provider := &stubProvider{response: "Here's what three failed launches taught me about engineering culture. Ask before you build. What do you think?"}
	w := NewWorker(&stubProfiles{profile: testProfile()}, provider, rand.New(rand.NewSource(1)), logrus.New())

	result, err := w.Process(context.Background(), generateMessage(t, models.GenerateRequest{UserID: "u1", Topic: "launches"}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	draft := result.(models.Draft)

	if draft.Status != models.StatusDraft {
		t.Fatalf("expected draft status, got %s", draft.Status)
	}
	if draft.ID == "" || draft.UserID != "u1" {
		t.Fatalf("draft identity wrong: %+v", draft)
	}
	for name, v := range map[string]float64{
		"voice_match": draft.Scores.VoiceMatch,
		"quality":     draft.Scores.Quality,
		"risk":        draft.Scores.Risk,
	} {
		if v < 0 || v > 1 {
			t.Fatalf("%s out of range: %f", name, v)
		}
	}
	if draft.Metadata.Topic != "launches" {
		t.Fatalf("metadata topic missing: %+v", draft.Metadata)
	}
	if draft.Angle == "" {
		t.Fatalf("expected archetype-derived angle")
	}
	// One generation call plus variation calls.
	if len(provider.requests) < 1+maxVariations {
		t.Fatalf("expected generation and variation calls, got %d", len(provider.requests))
	}
}

func TestGeneratePicksTopicFromPillarsWhenUnset(t *testing.T) {
	provider := &stubProvider{response: "A post."}
	w := NewWorker(&stubProfiles{profile: testProfile()}, provider, rand.New(rand.NewSource(1)), logrus.New())

	result, err := w.Process(context.Background(), generateMessage(t, models.GenerateRequest{UserID: "u1"}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if draft := result.(models.Draft); draft.Metadata.Topic != "engineering culture" {
		t.Fatalf("expected pillar topic, got %q", draft.Metadata.Topic)
	}
}

func TestGenerateFailsStructurallyWithoutProfile(t *testing.T) {
	w := NewWorker(
		&stubProfiles{err: fmt.Errorf("user u1: %w", voice.ErrProfileNotFound)},
		&stubProvider{response: "x"},
		rand.New(rand.NewSource(1)),
		logrus.New(),
	)

	_, err := w.Process(context.Background(), generateMessage(t, models.GenerateRequest{UserID: "u1", Topic: "t"}))
	taskErr := bus.AsTaskError(err)
	if taskErr.Code != bus.CodeProfileNotFound {
		t.Fatalf("expected profile_not_found, got %+v", taskErr)
	}
	if taskErr.Retryable {
		t.Fatalf("missing profile is structural, must not be retryable")
	}
}

func TestReviseIncrementsRevisionAndRescores(t *testing.T) {
	provider := &stubProvider{response: "AI may reshape some jobs. Many roles will adapt over time. What's your take?"}
	w := NewWorker(&stubProfiles{profile: testProfile()}, provider, rand.New(rand.NewSource(1)), logrus.New())

	original := models.Draft{
		ID:      "d1",
		UserID:  "u1",
		Content: "AI will destroy all jobs. Everyone knows this.",
		Status:  models.StatusDraft,
		Scores:  models.Scores{Risk: 0.6},
	}
	req := models.ReviseRequest{
		Draft: original,
		Report: models.QualityReport{
			Issues: []models.QualityIssue{{Type: "risk", Severity: models.SeverityHigh, Description: "inflammatory language"}},
		},
	}

	msg, _ := bus.NewTask(bus.AgentQuality, bus.AgentGenerator, bus.TaskReviseContent, req)
	result, err := w.Process(context.Background(), msg)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	draft := result.(models.Draft)

	if draft.Status != models.StatusRevised {
		t.Fatalf("expected revised status, got %s", draft.Status)
	}
	if draft.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", draft.Revision)
	}
	if draft.Scores.Risk >= original.Scores.Risk {
		t.Fatalf("rewritten content should carry lower risk: %f >= %f", draft.Scores.Risk, original.Scores.Risk)
	}
}

func TestOptimizeAgentBiasesTemperature(t *testing.T) {
	provider := &stubProvider{response: "A post."}
	w := NewWorker(&stubProfiles{profile: testProfile()}, provider, rand.New(rand.NewSource(1)), logrus.New())

	if _, err := w.Process(context.Background(), generateMessage(t, models.GenerateRequest{UserID: "u1", Topic: "t"})); err != nil {
		t.Fatalf("baseline generate: %v", err)
	}
	baseline := provider.requests[0].Temperature

	opt, _ := bus.NewTask(bus.AgentLearning, bus.AgentGenerator, bus.TaskOptimizeAgent,
		models.OptimizeRequest{UserID: "u1", TemperatureBias: 0.2})
	if _, err := w.Process(context.Background(), opt); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	provider.requests = nil
	if _, err := w.Process(context.Background(), generateMessage(t, models.GenerateRequest{UserID: "u1", Topic: "t"})); err != nil {
		t.Fatalf("biased generate: %v", err)
	}
	if got := provider.requests[0].Temperature; got <= baseline {
		t.Fatalf("positive bias should raise temperature: %f <= %f", got, baseline)
	}
}
