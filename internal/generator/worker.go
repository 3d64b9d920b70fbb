package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"draftwire/internal/models"
	"draftwire/internal/voice"
	"draftwire/pkg/bus"
	"draftwire/pkg/llm"
	"draftwire/pkg/logging"
)

const maxVariations = 2

var variationStyles = []string{"professional", "casual", "storytelling"}

// anglesByArchetype biases angle selection: the first entry for an
// archetype is picked twice as often as the rest.
var anglesByArchetype = map[string][]string{
	"innovator": {"future prediction", "contrarian take", "trend analysis"},
	"educator":  {"how-to breakdown", "common mistake", "first principles"},
	"connector": {"community story", "shared challenge", "collaboration win"},
	"analyst":   {"data insight", "trend analysis", "myth busting"},
}

var defaultAngles = []string{"lesson learned", "industry observation", "practical tip"}

// Worker is the content generator agent: it turns a request into a
// scored, humanized draft and reworks drafts the quality agent bounced.
type Worker struct {
	profiles  voice.DataService
	provider  llm.Provider
	humanizer *Humanizer
	scorer    scorer
	rng       *rand.Rand
	logger    logging.Logger

	mu     sync.Mutex
	biases map[string]float64
}

func NewWorker(profiles voice.DataService, provider llm.Provider, rng *rand.Rand, logger logging.Logger) *Worker {
	return &Worker{
		profiles:  profiles,
		provider:  provider,
		humanizer: NewHumanizer(rng),
		rng:       rng,
		logger:    logger,
		biases:    make(map[string]float64),
	}
}

func (w *Worker) Type() bus.AgentType { return bus.AgentGenerator }

func (w *Worker) Initialize(_ context.Context) error { return nil }

func (w *Worker) Process(ctx context.Context, msg bus.Message) (any, error) {
	switch msg.Task {
	case bus.TaskGeneratePost:
		var req models.GenerateRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return w.generate(ctx, req)
	case bus.TaskReviseContent:
		var req models.ReviseRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		return w.revise(ctx, req)
	case bus.TaskOptimizeAgent:
		var req models.OptimizeRequest
		if err := msg.DecodePayload(&req); err != nil {
			return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: err.Error()}
		}
		w.applyOptimization(req)
		return map[string]string{"status": "applied"}, nil
	default:
		return nil, &bus.TaskError{Code: bus.CodeInvalidTask, Message: fmt.Sprintf("unsupported task %s", msg.Task)}
	}
}

func (w *Worker) generate(ctx context.Context, req models.GenerateRequest) (models.Draft, error) {
	profile, err := w.profiles.Profile(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, voice.ErrProfileNotFound) {
			return models.Draft{}, &bus.TaskError{Code: bus.CodeProfileNotFound, Message: err.Error()}
		}
		return models.Draft{}, err
	}

	if req.Topic == "" {
		req.Topic = w.pickTopic(profile.Voice)
	}
	if req.Topic == "" {
		return models.Draft{}, &bus.TaskError{
			Code:    bus.CodeInvalidTask,
			Message: fmt.Sprintf("no topic given and user %s has no content pillars", req.UserID),
		}
	}
	if req.Angle == "" {
		req.Angle = w.pickAngle(profile.Voice.Archetype)
	}

	prompt := buildGenerationPrompt(req, profile)
	raw, err := w.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: w.temperature(req.UserID, profile.Voice),
		MaxTokens:   maxTokensFor(req.ContentType),
	})
	if err != nil {
		return models.Draft{}, bus.NewTaskError(bus.CodeUpstream, true, fmt.Errorf("language model: %w", err))
	}

	content := w.humanizer.Apply(raw, profile.Voice)
	now := time.Now().UTC()
	draft := models.Draft{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Content:     content,
		ContentType: contentTypeOrPost(req.ContentType),
		Angle:       req.Angle,
		Scores:      w.scorer.Score(content, profile),
		Status:      models.StatusDraft,
		Metadata:    buildMetadata(req, content),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	draft.Variations = w.generateVariations(ctx, content, profile)

	w.logger.WithFields(logging.Fields{
		"draft_id":    draft.ID,
		"user_id":     draft.UserID,
		"topic":       req.Topic,
		"angle":       req.Angle,
		"voice_match": draft.Scores.VoiceMatch,
		"quality":     draft.Scores.Quality,
		"risk":        draft.Scores.Risk,
		"variations":  len(draft.Variations),
	}).Info("Draft generated")

	return draft, nil
}

func (w *Worker) revise(ctx context.Context, req models.ReviseRequest) (models.Draft, error) {
	profile, err := w.profiles.Profile(ctx, req.Draft.UserID)
	if err != nil {
		if errors.Is(err, voice.ErrProfileNotFound) {
			return models.Draft{}, &bus.TaskError{Code: bus.CodeProfileNotFound, Message: err.Error()}
		}
		return models.Draft{}, err
	}

	prompt := buildRevisionPrompt(req.Draft, req.Report)
	raw, err := w.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: w.temperature(req.Draft.UserID, profile.Voice),
		MaxTokens:   maxTokensFor(req.Draft.ContentType),
	})
	if err != nil {
		return models.Draft{}, bus.NewTaskError(bus.CodeUpstream, true, fmt.Errorf("language model: %w", err))
	}

	content := w.humanizer.Apply(raw, profile.Voice)
	draft := req.Draft
	draft.Content = content
	draft.Scores = w.scorer.Score(content, profile)
	draft.Status = models.StatusRevised
	draft.Revision++
	draft.Metadata.CharacterCount = len(content)
	draft.Metadata.Hashtags = extractHashtags(content)
	draft.UpdatedAt = time.Now().UTC()

	w.logger.WithFields(logging.Fields{
		"draft_id": draft.ID,
		"revision": draft.Revision,
		"risk":     draft.Scores.Risk,
	}).Info("Draft revised")

	return draft, nil
}

// generateVariations asks for up to maxVariations restylings. A failed
// variation is logged and skipped; the primary draft is what matters.
func (w *Worker) generateVariations(ctx context.Context, content string, profile models.Profile) []models.Variation {
	var variations []models.Variation
	for _, style := range variationStyles {
		if len(variations) >= maxVariations {
			break
		}
		text, err := w.provider.Complete(ctx, llm.Request{
			System:      variationSystemPrompt,
			Prompt:      buildVariationPrompt(content, style),
			Temperature: min(temperatureCeil, temperatureFor(profile.Voice, 0)+0.1),
			MaxTokens:   maxTokensFor(models.ContentPost),
		})
		if err != nil {
			w.logger.WithError(err).WithField("style", style).Warn("Variation generation failed")
			continue
		}
		variations = append(variations, models.Variation{
			Style:   style,
			Content: text,
			Quality: qualityScore(text, profile.Workshop),
		})
	}
	return variations
}

func (w *Worker) applyOptimization(req models.OptimizeRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.biases[req.UserID] = req.TemperatureBias
	w.logger.WithFields(logging.Fields{
		"user_id":          req.UserID,
		"temperature_bias": req.TemperatureBias,
	}).Info("Generation parameters updated")
}

func (w *Worker) temperature(userID string, v models.VoiceProfile) float64 {
	w.mu.Lock()
	bias := w.biases[userID]
	w.mu.Unlock()
	return temperatureFor(v, bias)
}

func (w *Worker) pickTopic(v models.VoiceProfile) string {
	if len(v.ContentPillars) == 0 {
		return ""
	}
	return v.ContentPillars[w.rng.Intn(len(v.ContentPillars))]
}

func (w *Worker) pickAngle(archetype string) string {
	angles, ok := anglesByArchetype[strings.ToLower(archetype)]
	if !ok {
		angles = defaultAngles
	}
	// The leading angle gets double weight.
	idx := w.rng.Intn(len(angles) + 1)
	if idx >= len(angles) {
		idx = 0
	}
	return angles[idx]
}

func buildMetadata(req models.GenerateRequest, content string) models.DraftMetadata {
	hook := content
	if idx := strings.IndexByte(content, '\n'); idx > 0 {
		hook = content[:idx]
	}
	return models.DraftMetadata{
		Topic:          req.Topic,
		Pillar:         req.Pillar,
		Hook:           strings.TrimSpace(hook),
		CharacterCount: len(content),
		Hashtags:       extractHashtags(content),
	}
}

func extractHashtags(content string) []string {
	var tags []string
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "#") && len(field) > 1 {
			tags = append(tags, strings.TrimRight(field, ".,!?"))
		}
	}
	return tags
}

func maxTokensFor(ct models.ContentType) int {
	switch ct {
	case models.ContentArticle:
		return 2000
	case models.ContentComment:
		return 300
	default:
		return 500
	}
}
