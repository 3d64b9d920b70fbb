package publisher

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "…"

// Format fits content to a platform's character ceiling. Hashtags are
// lifted to the end, truncation prefers a sentence boundary and falls
// back to a word boundary, and truncated text always ends with the
// ellipsis marker, never mid-word.
func Format(content string, platform Platform) string {
	body, hashtags := splitHashtags(content)

	tagLine := strings.Join(hashtags, " ")
	budget := platform.MaxChars
	if tagLine != "" {
		budget -= utf8.RuneCountInString(tagLine) + 2 // blank line before tags
	}
	if budget < 0 {
		// Hashtags alone blow the ceiling; drop them.
		tagLine = ""
		budget = platform.MaxChars
	}

	body = truncate(body, budget)

	if tagLine == "" {
		return body
	}
	return body + "\n\n" + tagLine
}

// truncate shortens text to at most limit runes, cutting at the last
// sentence end that fits, else the last word boundary, appending the
// ellipsis marker in either case.
func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	budget := limit - utf8.RuneCountInString(ellipsis)
	if budget <= 0 {
		return ellipsis
	}

	runes := []rune(text)
	window := string(runes[:budget])

	if cut := lastSentenceEnd(window); cut > 0 {
		return strings.TrimSpace(window[:cut]) + ellipsis
	}
	if cut := strings.LastIndexAny(window, " \n"); cut > 0 {
		return strings.TrimSpace(window[:cut]) + ellipsis
	}
	return window + ellipsis
}

func lastSentenceEnd(s string) int {
	best := -1
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			best = i + 1
		}
	}
	// A boundary right at the start is useless.
	if best <= 1 {
		return -1
	}
	return best
}

// splitHashtags removes hashtag tokens from the body and returns them
// separately, preserving order and dropping duplicates.
func splitHashtags(content string) (string, []string) {
	var tags []string
	seen := make(map[string]bool)

	lines := strings.Split(content, "\n")
	for li, line := range lines {
		fields := strings.Fields(line)
		var kept []string
		for _, field := range fields {
			if strings.HasPrefix(field, "#") && len(field) > 1 {
				tag := strings.TrimRight(field, ".,!?")
				if !seen[strings.ToLower(tag)] {
					seen[strings.ToLower(tag)] = true
					tags = append(tags, tag)
				}
				continue
			}
			kept = append(kept, field)
		}
		lines[li] = strings.Join(kept, " ")
	}

	body := strings.Join(lines, "\n")
	// Collapse blank tails left by hashtag-only lines.
	body = strings.TrimRight(body, "\n ")
	return body, tags
}
