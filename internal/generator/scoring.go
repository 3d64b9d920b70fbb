package generator

import (
	"strings"

	"draftwire/internal/models"
)

// Voice-match indicator weights. Each contributes its full weight when
// present, nothing otherwise, on top of a 0.5 base.
const (
	voiceBase          = 0.5
	weightStarterMatch = 0.20
	weightTransition   = 0.15
	weightSignature    = 0.15
	weightRhythm       = 0.25
	weightTone         = 0.25
)

// Quality component weights.
const (
	weightWordCount = 0.20
	weightHook      = 0.20
	weightCTA       = 0.15
	weightReadable  = 0.25
	weightValues    = 0.20
)

// Risk penalties.
const (
	penaltyControversial = 0.3
	penaltyAbsolute      = 0.1 // per occurrence, capped at 3
	penaltySensitive     = 0.2
	maxAbsoluteHits      = 3
)

// Target word range for a post. Articles get triple the ceiling.
const (
	minPostWords = 50
	maxPostWords = 300
)

var controversialTerms = []string{
	"destroy", "disaster", "scam", "fraud", "corrupt", "idiots",
	"war on", "evil", "conspiracy",
}

var absoluteTerms = []string{
	"always", "never", "everyone", "no one", "nobody", "guaranteed",
}

var sensitiveTerms = []string{
	"politics", "religion", "layoffs", "lawsuit", "salary", "abortion",
	"election", "vaccine",
}

var hookMarkers = []string{
	"?", "imagine", "what if", "here's", "i learned", "unpopular opinion",
	"most people", "stop",
}

var ctaMarkers = []string{
	"what do you think", "share your", "let me know", "comment below",
	"agree?", "thoughts?", "reach out", "follow for", "dm me",
}

type scorer struct{}

// Score computes the three draft scores from the content, the voice
// profile, and workshop values. All results land in [0,1].
func (scorer) Score(content string, profile models.Profile) models.Scores {
	return models.Scores{
		VoiceMatch: voiceMatchScore(content, profile.Voice),
		Quality:    qualityScore(content, profile.Workshop),
		Risk:       riskScore(content),
	}
}

func voiceMatchScore(content string, voice models.VoiceProfile) float64 {
	lower := strings.ToLower(content)
	score := voiceBase

	if containsAnyFold(lower, voice.SentenceStarters) {
		score += weightStarterMatch
	}
	if containsAnyFold(lower, voice.Transitions) {
		score += weightTransition
	}
	if containsAnyFold(lower, voice.SignaturePhrases) {
		score += weightSignature
	}
	if rhythmAligned(content, voice.RhythmPattern) {
		score += weightRhythm
	}
	if toneAligned(lower, voice.Tone) {
		score += weightTone
	}

	return clamp01(score)
}

func qualityScore(content string, workshop models.WorkshopData) float64 {
	lower := strings.ToLower(content)
	words := len(strings.Fields(content))

	score := 0.0
	if words >= minPostWords && words <= maxPostWords {
		score += weightWordCount
	}
	if hasHook(lower) {
		score += weightHook
	}
	if hasCallToAction(lower) {
		score += weightCTA
	}
	if readable(content) {
		score += weightReadable
	}
	if containsAnyFold(lower, workshop.Values) || containsAnyFold(lower, workshop.Expertise) {
		score += weightValues
	}

	return clamp01(score)
}

func riskScore(content string) float64 {
	lower := strings.ToLower(content)

	risk := 0.0
	if containsAnyFold(lower, controversialTerms) {
		risk += penaltyControversial
	}

	hits := 0
	for _, term := range absoluteTerms {
		hits += countWordFold(lower, term)
	}
	if hits > maxAbsoluteHits {
		hits = maxAbsoluteHits
	}
	risk += float64(hits) * penaltyAbsolute

	if containsAnyFold(lower, sensitiveTerms) {
		risk += penaltySensitive
	}

	return clamp01(risk)
}

// rhythmAligned checks the draft's sentence-length profile against the
// voice's rhythm pattern.
func rhythmAligned(content, pattern string) bool {
	lengths := sentenceWordCounts(content)
	if len(lengths) == 0 {
		return false
	}

	total := 0
	for _, n := range lengths {
		total += n
	}
	avg := float64(total) / float64(len(lengths))

	switch pattern {
	case "short_punchy":
		return avg <= 12
	case "flowing":
		return avg >= 15
	case "varied", "":
		if len(lengths) < 2 {
			return false
		}
		min, max := lengths[0], lengths[0]
		for _, n := range lengths[1:] {
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
		}
		return max-min >= 6
	default:
		return false
	}
}

func toneAligned(lower, tone string) bool {
	switch tone {
	case "professional", "formal":
		return !strings.Contains(lower, "lol") && !strings.Contains(lower, "!!")
	case "casual":
		return strings.Contains(lower, "i ") || strings.Contains(lower, "you ")
	case "confident", "authoritative":
		return strings.Contains(lower, "will ") || strings.Contains(lower, "we ") || strings.Contains(lower, "i've ")
	default:
		return false
	}
}

func hasHook(lower string) bool {
	firstLine := lower
	if idx := strings.IndexByte(lower, '\n'); idx > 0 {
		firstLine = lower[:idx]
	}
	for _, marker := range hookMarkers {
		if strings.Contains(firstLine, marker) {
			return true
		}
	}
	return false
}

func hasCallToAction(lower string) bool {
	return containsAnyFold(lower, ctaMarkers)
}

// readable approximates readability: average sentence length under 25
// words and no sentence beyond 40.
func readable(content string) bool {
	lengths := sentenceWordCounts(content)
	if len(lengths) == 0 {
		return false
	}
	total := 0
	for _, n := range lengths {
		if n > 40 {
			return false
		}
		total += n
	}
	return float64(total)/float64(len(lengths)) <= 25
}

func sentenceWordCounts(content string) []int {
	var counts []int
	for _, sentence := range splitSentences(content) {
		if n := len(strings.Fields(sentence)); n > 0 {
			counts = append(counts, n)
		}
	}
	return counts
}

func splitSentences(content string) []string {
	return strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
}

func containsAnyFold(lower string, terms []string) bool {
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

func countWordFold(lower, term string) int {
	count := 0
	for _, field := range strings.Fields(lower) {
		if strings.Trim(field, ".,!?;:'\"") == term {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
