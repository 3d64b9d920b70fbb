package publisher

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFormatFitsEveryPlatformCeiling(t *testing.T) {
	long := strings.Repeat("This is a fairly normal sentence about shipping software. ", 100) +
		"#golang #shipping #startups"

	for _, name := range Platforms() {
		platform, err := PlatformFor(name)
		if err != nil {
			t.Fatalf("platform %s: %v", name, err)
		}
		out := Format(long, platform)
		if n := utf8.RuneCountInString(out); n > platform.MaxChars {
			t.Fatalf("%s output %d runes exceeds ceiling %d", name, n, platform.MaxChars)
		}
	}
}

func TestFormatTruncatesAtSentenceBoundary(t *testing.T) {
	content := "First sentence here. Second sentence follows. " + strings.Repeat("Then padding words flow onward without a break ", 20)
	platform := Platform{Name: "test", MaxChars: 60}

	out := Format(content, platform)
	if !strings.HasSuffix(out, ellipsis) {
		t.Fatalf("truncated output must end with the ellipsis marker: %q", out)
	}
	trimmed := strings.TrimSuffix(out, ellipsis)
	if !strings.HasSuffix(trimmed, ".") {
		t.Fatalf("expected sentence-boundary cut, got %q", out)
	}
}

func TestFormatFallsBackToWordBoundary(t *testing.T) {
	content := strings.Repeat("word ", 50) // no sentence punctuation at all
	platform := Platform{Name: "test", MaxChars: 40}

	out := Format(content, platform)
	if !strings.HasSuffix(out, ellipsis) {
		t.Fatalf("expected ellipsis marker, got %q", out)
	}
	body := strings.TrimSuffix(out, ellipsis)
	for _, field := range strings.Fields(body) {
		if field != "word" {
			t.Fatalf("mid-word cut detected: %q in %q", field, out)
		}
	}
}

func TestFormatPreservesRoomForHashtags(t *testing.T) {
	content := strings.Repeat("Sentence that fills space quickly and thoroughly. ", 10) +
		"#one #two"
	platform := Platform{Name: "test", MaxChars: 120}

	out := Format(content, platform)
	if utf8.RuneCountInString(out) > platform.MaxChars {
		t.Fatalf("output exceeds ceiling: %d", utf8.RuneCountInString(out))
	}
	if !strings.Contains(out, "#one") || !strings.Contains(out, "#two") {
		t.Fatalf("hashtags lost during truncation: %q", out)
	}
}

func TestFormatShortContentUntouched(t *testing.T) {
	content := "Short and sweet."
	platform, _ := PlatformFor("x")
	if out := Format(content, platform); out != content {
		t.Fatalf("short content should pass through, got %q", out)
	}
}
