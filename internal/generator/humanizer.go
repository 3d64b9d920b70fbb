package generator

import (
	"math/rand"
	"strings"

	"draftwire/internal/models"
)

// fillerProbability is the chance a filler phrase is woven into a draft.
// Model output reads too polished without the occasional aside.
const fillerProbability = 0.3

var defaultFillers = []string{
	"Honestly,", "To be fair,", "Here's the thing:", "Truth be told,",
}

// Humanizer nudges raw model output toward the user's actual writing
// habits. The random source is injected so tests can pin its choices.
type Humanizer struct {
	rng *rand.Rand
}

func NewHumanizer(rng *rand.Rand) *Humanizer {
	return &Humanizer{rng: rng}
}

// Apply runs the humanization pass: maybe insert a filler phrase, ensure
// at least one signature phrase appears, and break up sentences when the
// profile calls for a short, punchy rhythm.
func (h *Humanizer) Apply(content string, voice models.VoiceProfile) string {
	content = h.maybeInsertFiller(content, voice)
	content = h.ensureSignaturePhrase(content, voice)
	content = h.applyRhythm(content, voice)
	return content
}

func (h *Humanizer) maybeInsertFiller(content string, voice models.VoiceProfile) string {
	if h.rng.Float64() >= fillerProbability {
		return content
	}

	fillers := voice.FillerPhrases
	if len(fillers) == 0 {
		fillers = defaultFillers
	}
	filler := fillers[h.rng.Intn(len(fillers))]

	sentences := splitKeepingDelims(content)
	if len(sentences) < 2 {
		return filler + " " + content
	}
	// Insert before a sentence somewhere past the hook.
	pos := 1 + h.rng.Intn(len(sentences)-1)
	sentences[pos] = " " + filler + " " + strings.TrimSpace(sentences[pos])
	return strings.Join(sentences, "")
}

func (h *Humanizer) ensureSignaturePhrase(content string, voice models.VoiceProfile) string {
	if len(voice.SignaturePhrases) == 0 {
		return content
	}
	lower := strings.ToLower(content)
	for _, phrase := range voice.SignaturePhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return content
		}
	}
	phrase := voice.SignaturePhrases[h.rng.Intn(len(voice.SignaturePhrases))]
	return strings.TrimRight(content, "\n ") + "\n\n" + phrase
}

// applyRhythm splits run-on sentences for short_punchy profiles. Other
// patterns are left to the model; forced merging reads worse than the
// original.
func (h *Humanizer) applyRhythm(content string, voice models.VoiceProfile) string {
	if voice.RhythmPattern != "short_punchy" {
		return content
	}

	var out []string
	for _, sentence := range splitKeepingDelims(content) {
		words := strings.Fields(sentence)
		if len(words) <= 18 {
			out = append(out, sentence)
			continue
		}
		// Break at a conjunction near the middle, keeping the chunk's
		// trailing whitespace intact.
		trail := sentence[len(strings.TrimRight(sentence, " \n")):]
		broken := false
		for i := len(words) / 3; i < 2*len(words)/3; i++ {
			switch strings.ToLower(words[i]) {
			case "and", "but", "so", "because":
				first := strings.TrimRight(strings.Join(words[:i], " "), ",;")
				rest := strings.Join(words[i:], " ")
				out = append(out, first+". "+strings.ToUpper(rest[:1])+rest[1:]+trail)
				broken = true
			}
			if broken {
				break
			}
		}
		if !broken {
			out = append(out, sentence)
		}
	}
	return strings.Join(out, "")
}

// splitKeepingDelims splits content into sentence chunks, each keeping
// its terminating punctuation and trailing whitespace.
func splitKeepingDelims(content string) []string {
	var parts []string
	start := 0
	for i, r := range content {
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			// Swallow trailing whitespace into the chunk.
			for end < len(content) && (content[end] == ' ' || content[end] == '\n') {
				end++
			}
			parts = append(parts, content[start:end])
			start = end
		}
	}
	if start < len(content) {
		parts = append(parts, content[start:])
	}
	return parts
}
