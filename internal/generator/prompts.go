package generator

import (
	"fmt"
	"sort"
	"strings"

	"draftwire/internal/models"
)

const systemPrompt = "You are a ghostwriter producing social content in the author's " +
	"own voice. Write only the post text, no preamble or commentary."

const variationSystemPrompt = "You create variations of social content that keep the " +
	"author's voice while shifting the style. Write only the post text."

// Temperature tracks how adventurous the voice is: reserved profiles get
// conservative sampling, expressive ones get more room.
const (
	temperatureFloor = 0.3
	temperatureSpan  = 0.6
	temperatureCeil  = 0.9
)

func temperatureFor(voice models.VoiceProfile, bias float64) float64 {
	creativity := voice.Creativity
	if len(voice.Dimensions) > 0 {
		sum := voice.Dimensions["emotional_expressiveness"] +
			voice.Dimensions["humor_usage"] +
			voice.Dimensions["storytelling_style"]
		creativity = sum / 3
	}

	temp := temperatureFloor + creativity*temperatureSpan + bias
	if temp < temperatureFloor {
		return temperatureFloor
	}
	if temp > temperatureCeil {
		return temperatureCeil
	}
	return temp
}

func buildGenerationPrompt(req models.GenerateRequest, profile models.Profile) string {
	var b strings.Builder

	platform := req.Platform
	if platform == "" {
		platform = "linkedin"
	}
	fmt.Fprintf(&b, "Generate a %s %s about: %s\n", platform, contentTypeOrPost(req.ContentType), req.Topic)
	if req.Angle != "" {
		fmt.Fprintf(&b, "Angle: %s\n", req.Angle)
	}

	b.WriteString("\nVOICE PROFILE TO MATCH:\n")
	b.WriteString(describeVoice(profile.Voice))

	workshop := profile.Workshop
	if workshop.Industry != "" || workshop.Role != "" {
		b.WriteString("\nUSER CONTEXT:\n")
		if workshop.Industry != "" {
			fmt.Fprintf(&b, "Industry: %s\n", workshop.Industry)
		}
		if workshop.Role != "" {
			fmt.Fprintf(&b, "Role: %s\n", workshop.Role)
		}
		if workshop.Company != "" {
			fmt.Fprintf(&b, "Company: %s\n", workshop.Company)
		}
		if workshop.Audience != "" {
			fmt.Fprintf(&b, "Target audience: %s\n", workshop.Audience)
		}
	}

	b.WriteString("\nPLATFORM OPTIMIZATION:\n")
	b.WriteString("- Start with an engaging hook in the first line\n")
	b.WriteString("- Use line breaks for readability\n")
	b.WriteString("- Include 3-5 relevant hashtags\n")
	b.WriteString("- End with a call-to-action or question\n")

	b.WriteString("\nIMPORTANT INSTRUCTIONS:\n")
	b.WriteString("- Match the voice profile characteristics precisely\n")
	b.WriteString("- Keep the content authentic and genuine\n")
	b.WriteString("- Focus on providing value to the audience\n")

	return b.String()
}

// describeVoice turns dimension scores into prose the model can follow,
// with low/mid/high phrasing per dimension.
func describeVoice(voice models.VoiceProfile) string {
	var lines []string

	if voice.Tone != "" {
		lines = append(lines, fmt.Sprintf("- Overall tone: %s", voice.Tone))
	}
	if voice.Archetype != "" {
		lines = append(lines, fmt.Sprintf("- Brand archetype: %s", voice.Archetype))
	}

	dims := []struct {
		key            string
		low, mid, high string
	}{
		{"formality_level", "Casual and approachable tone", "Balanced professional tone", "Very formal and professional tone"},
		{"emotional_expressiveness", "Reserved and measured emotional expression", "Moderately expressive with emotional connection", "Highly expressive and emotionally engaging"},
		{"technical_depth", "Uses simple, accessible language", "Balances technical concepts with accessibility", "Uses technical language and industry expertise"},
		{"storytelling_style", "Direct and factual communication", "Incorporates some story elements", "Strong storytelling with narrative elements"},
		{"authority_tone", "Humble and questioning approach", "Balanced confidence and humility", "Confident and authoritative voice"},
		{"personal_experience_sharing", "Focuses on general insights rather than personal stories", "Occasionally includes personal anecdotes", "Frequently shares personal experiences and insights"},
	}
	for _, dim := range dims {
		value, ok := voice.Dimensions[dim.key]
		if !ok {
			continue
		}
		switch {
		case value > 0.6:
			lines = append(lines, "- "+dim.high)
		case value > 0.3:
			lines = append(lines, "- "+dim.mid)
		default:
			lines = append(lines, "- "+dim.low)
		}
	}

	if len(voice.SignaturePhrases) > 0 {
		lines = append(lines, fmt.Sprintf("- Signature phrases: %s", strings.Join(voice.SignaturePhrases, "; ")))
	}
	if voice.RhythmPattern != "" {
		lines = append(lines, fmt.Sprintf("- Sentence rhythm: %s", voice.RhythmPattern))
	}

	return strings.Join(lines, "\n") + "\n"
}

// buildRevisionPrompt enumerates blocking issues first so the model fixes
// what matters before polish.
func buildRevisionPrompt(draft models.Draft, report models.QualityReport) string {
	var b strings.Builder

	b.WriteString("Revise the following post. Fix every issue listed, in order.\n\n")
	b.WriteString("ORIGINAL POST:\n")
	b.WriteString(draft.Content)
	b.WriteString("\n\nISSUES TO FIX:\n")

	issues := append([]models.QualityIssue(nil), report.Issues...)
	sort.SliceStable(issues, func(i, j int) bool {
		return severityRank(issues[i].Severity) > severityRank(issues[j].Severity)
	})
	for i, issue := range issues {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, issue.Severity, issue.Description)
		if issue.Suggestion != "" {
			fmt.Fprintf(&b, " (suggestion: %s)", issue.Suggestion)
		}
		b.WriteString("\n")
	}

	if len(report.Suggestions) > 0 {
		b.WriteString("\nADDITIONAL SUGGESTIONS:\n")
		for _, s := range report.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString("\nREQUIREMENTS:\n")
	b.WriteString("- Preserve the author's voice and tone\n")
	b.WriteString("- Keep roughly the same length\n")
	b.WriteString("- Remove any inflammatory or absolute language\n")
	b.WriteString("- Do not introduce new claims\n")

	return b.String()
}

func buildVariationPrompt(content, style string) string {
	return fmt.Sprintf(
		"Rewrite the following post in a %s style.\n\nPOST:\n%s\n\n"+
			"Keep the core message, voice, and approximate length. "+
			"Offer a different perspective or framing.",
		style, content)
}

func severityRank(s models.Severity) int {
	switch s {
	case models.SeverityCritical:
		return 4
	case models.SeverityHigh:
		return 3
	case models.SeverityMedium:
		return 2
	case models.SeverityLow:
		return 1
	default:
		return 0
	}
}

func contentTypeOrPost(ct models.ContentType) models.ContentType {
	if ct == "" {
		return models.ContentPost
	}
	return ct
}
