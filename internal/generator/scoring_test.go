package generator

import (
	"strings"
	"testing"

	"draftwire/internal/models"
)

func TestScoresStayInUnitRange(t *testing.T) {
	profile := models.Profile{
		Voice: models.VoiceProfile{
			Tone:             "professional",
			RhythmPattern:    "varied",
			SentenceStarters: []string{"Here's"},
			Transitions:      []string{"That said"},
			SignaturePhrases: []string{"ship it"},
		},
		Workshop: models.WorkshopData{Values: []string{"craftsmanship"}},
	}

	samples := []string{
		"",
		"Short.",
		strings.Repeat("always never everyone ", 50),
		"Here's the thing about craftsmanship. That said, ship it. What do you think?",
		strings.Repeat("A very long sentence without any punctuation whatsoever ", 30),
	}

	var s scorer
	for _, sample := range samples {
		scores := s.Score(sample, profile)
		for name, v := range map[string]float64{
			"voice_match": scores.VoiceMatch,
			"quality":     scores.Quality,
			"risk":        scores.Risk,
		} {
			if v < 0 || v > 1 {
				t.Fatalf("%s out of range for %q: %f", name, sample, v)
			}
		}
	}
}

func TestVoiceMatchRewardsIndicators(t *testing.T) {
	voice := models.VoiceProfile{
		SentenceStarters: []string{"Here's the thing"},
		SignaturePhrases: []string{"ship early"},
		Tone:             "professional",
	}

	plain := voiceMatchScore("some generic text about business topics today", models.VoiceProfile{})
	if plain != voiceBase {
		t.Fatalf("no indicators should score the base %v, got %f", voiceBase, plain)
	}

	matched := voiceMatchScore("Here's the thing about launches. Ship early.", voice)
	if matched <= plain {
		t.Fatalf("indicator matches should raise the score: %f <= %f", matched, plain)
	}
}

func TestRiskScoreFlagsInflammatoryAndAbsoluteLanguage(t *testing.T) {
	risk := riskScore("AI will destroy all jobs. Everyone knows this. It always happens and will never stop.")
	if risk < 0.4 {
		t.Fatalf("inflammatory plus absolute language should score >= 0.4, got %f", risk)
	}

	clean := riskScore("AI will change many jobs. Some roles may shift toward new skills.")
	if clean >= 0.2 {
		t.Fatalf("clean content should stay below 0.2, got %f", clean)
	}
}

func TestRiskAbsoluteTermPenaltyIsCapped(t *testing.T) {
	many := riskScore("always always always always always always")
	three := riskScore("always always always")
	if many != three {
		t.Fatalf("absolute-term penalty should cap at %d occurrences: %f != %f", maxAbsoluteHits, many, three)
	}
}

func TestQualityScoreRewardsStructure(t *testing.T) {
	content := "What if your best ideas die in drafts?\n\n" +
		strings.Repeat("Write one post a day and keep the good ones. ", 8) +
		"Craftsmanship beats volume.\n\nWhat do you think?"
	workshop := models.WorkshopData{Values: []string{"craftsmanship"}}

	structured := qualityScore(content, workshop)
	bare := qualityScore("ok", workshop)
	if structured <= bare {
		t.Fatalf("structured content should outscore bare content: %f <= %f", structured, bare)
	}
	if structured < 0.8 {
		t.Fatalf("hook, CTA, range, readability and values should all register, got %f", structured)
	}
}

func TestTemperatureStaysInBand(t *testing.T) {
	cases := []struct {
		creativity float64
		bias       float64
	}{
		{0, 0}, {1, 0}, {0.5, 0.5}, {0.5, -0.5}, {1, 1},
	}
	for _, tc := range cases {
		temp := temperatureFor(models.VoiceProfile{Creativity: tc.creativity}, tc.bias)
		if temp < temperatureFloor || temp > temperatureCeil {
			t.Fatalf("temperature %f out of [%v,%v] for creativity=%f bias=%f",
				temp, temperatureFloor, temperatureCeil, tc.creativity, tc.bias)
		}
	}
}
