package quality

import (
	"fmt"
	"strings"
	"unicode"

	"draftwire/internal/models"
)

// Issue types.
const (
	issueGrammar    = "grammar"
	issueFormatting = "formatting"
	issueFactCheck  = "fact_check"
	issueRisk       = "risk"
)

const (
	maxHashtags       = 5
	capsRatioCeiling  = 0.3
	minCapsRunLetters = 4
)

var inflammatoryTerms = []string{
	"destroy", "destroyed", "disaster", "catastrophe", "scam", "fraud",
	"corrupt", "idiots", "garbage", "worthless",
}

var unverifiedClaimPhrases = []string{
	"studies show", "research proves", "experts say", "everyone knows",
	"it's a fact", "science says", "statistics prove",
}

var absoluteClaimTerms = []string{
	"always", "never", "everyone", "no one", "nobody", "guaranteed", "all jobs",
}

var sensitiveTopicTerms = []string{
	"politics", "religion", "layoffs", "lawsuit", "abortion", "election",
}

// rule inspects a draft and returns zero or more issues. Rules are pure
// functions of the content so re-checking an unchanged draft always
// yields the same verdict.
type rule func(content string) []models.QualityIssue

var allRules = []rule{
	checkGrammar,
	checkCapitalization,
	checkUnverifiedClaims,
	checkHashtagCount,
	checkInflammatoryLanguage,
}

// Evaluate runs the full rule set and assembles the report. Approval
// requires zero high or critical issues.
func Evaluate(draft models.Draft) models.QualityReport {
	var issues []models.QualityIssue
	for _, r := range allRules {
		issues = append(issues, r(draft.Content)...)
	}

	approved := true
	for _, issue := range issues {
		if issue.Severity.Blocking() {
			approved = false
			break
		}
	}

	report := models.QualityReport{
		Approved:         approved,
		QualityScore:     scoreQuality(issues),
		RiskScore:        scoreRisk(draft.Content),
		BrandScore:       scoreBrand(draft.Content),
		FactCheckScore:   scoreFactCheck(issues),
		Issues:           issues,
		RequiresRevision: !approved,
	}
	if !approved {
		report.Suggestions = suggestionsFor(issues)
	}
	return report
}

func checkGrammar(content string) []models.QualityIssue {
	var issues []models.QualityIssue

	words := strings.Fields(strings.ToLower(content))
	for i := 1; i < len(words); i++ {
		if words[i] == words[i-1] && len(words[i]) > 2 && !strings.HasPrefix(words[i], "#") {
			issues = append(issues, models.QualityIssue{
				Type:        issueGrammar,
				Severity:    models.SeverityLow,
				Description: fmt.Sprintf("repeated word %q", words[i]),
				Suggestion:  "remove the duplicate word",
			})
			break
		}
	}

	if strings.Contains(content, "  ") {
		issues = append(issues, models.QualityIssue{
			Type:        issueGrammar,
			Severity:    models.SeverityLow,
			Description: "double spaces in content",
			Suggestion:  "collapse repeated whitespace",
		})
	}

	return issues
}

// checkCapitalization flags shouting: either a high overall uppercase
// ratio or any all-caps word run.
func checkCapitalization(content string) []models.QualityIssue {
	letters, uppers := 0, 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				uppers++
			}
		}
	}
	if letters == 0 {
		return nil
	}

	ratio := float64(uppers) / float64(letters)
	if ratio > capsRatioCeiling {
		return []models.QualityIssue{{
			Type:        issueFormatting,
			Severity:    models.SeverityHigh,
			Description: fmt.Sprintf("excessive capitalization (%.0f%% of letters)", ratio*100),
			Suggestion:  "use sentence case",
		}}
	}

	for _, word := range strings.Fields(content) {
		trimmed := strings.Trim(word, ".,!?#")
		if len(trimmed) >= minCapsRunLetters && trimmed == strings.ToUpper(trimmed) && hasLetter(trimmed) {
			return []models.QualityIssue{{
				Type:        issueFormatting,
				Severity:    models.SeverityMedium,
				Description: fmt.Sprintf("all-caps word %q reads as shouting", trimmed),
				Location:    trimmed,
				Suggestion:  "use sentence case for emphasis",
			}}
		}
	}
	return nil
}

func checkUnverifiedClaims(content string) []models.QualityIssue {
	lower := strings.ToLower(content)
	var issues []models.QualityIssue
	for _, phrase := range unverifiedClaimPhrases {
		if strings.Contains(lower, phrase) {
			issues = append(issues, models.QualityIssue{
				Type:        issueFactCheck,
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("unverified claim phrasing %q", phrase),
				Location:    phrase,
				Suggestion:  "cite a source or soften the claim",
			})
		}
	}
	return issues
}

func checkHashtagCount(content string) []models.QualityIssue {
	count := 0
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "#") && len(field) > 1 {
			count++
		}
	}
	if count > maxHashtags {
		return []models.QualityIssue{{
			Type:        issueFormatting,
			Severity:    models.SeverityMedium,
			Description: fmt.Sprintf("%d hashtags, more than %d reads as spam", count, maxHashtags),
			Suggestion:  "keep 3-5 focused hashtags",
		}}
	}
	return nil
}

func checkInflammatoryLanguage(content string) []models.QualityIssue {
	lower := strings.ToLower(content)
	var issues []models.QualityIssue
	for _, term := range inflammatoryTerms {
		if containsWord(lower, term) {
			issues = append(issues, models.QualityIssue{
				Type:        issueRisk,
				Severity:    models.SeverityHigh,
				Description: fmt.Sprintf("inflammatory term %q", term),
				Location:    term,
				Suggestion:  "replace with neutral language",
			})
		}
	}
	return issues
}

// scoreRisk mirrors the additive penalty model: inflammatory presence,
// absolute-language count, sensitive topics.
func scoreRisk(content string) float64 {
	lower := strings.ToLower(content)
	risk := 0.0

	for _, term := range inflammatoryTerms {
		if containsWord(lower, term) {
			risk += 0.3
			break
		}
	}

	hits := 0
	for _, term := range absoluteClaimTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}
	if hits > 3 {
		hits = 3
	}
	risk += float64(hits) * 0.1

	for _, term := range sensitiveTopicTerms {
		if strings.Contains(lower, term) {
			risk += 0.2
			break
		}
	}

	if risk > 1 {
		return 1
	}
	return risk
}

func scoreQuality(issues []models.QualityIssue) float64 {
	score := 1.0
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			score -= 0.4
		case models.SeverityHigh:
			score -= 0.25
		case models.SeverityMedium:
			score -= 0.1
		case models.SeverityLow:
			score -= 0.05
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

func scoreFactCheck(issues []models.QualityIssue) float64 {
	score := 1.0
	for _, issue := range issues {
		if issue.Type == issueFactCheck {
			score -= 0.3
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

// scoreBrand is a coarse professionalism measure: penalize shouting and
// profanity-adjacent inflammatory wording.
func scoreBrand(content string) float64 {
	score := 1.0
	if len(checkCapitalization(content)) > 0 {
		score -= 0.3
	}
	if len(checkInflammatoryLanguage(content)) > 0 {
		score -= 0.4
	}
	if score < 0 {
		return 0
	}
	return score
}

func suggestionsFor(issues []models.QualityIssue) []string {
	seen := make(map[string]bool)
	var suggestions []string
	for _, issue := range issues {
		if issue.Suggestion == "" || seen[issue.Suggestion] {
			continue
		}
		seen[issue.Suggestion] = true
		suggestions = append(suggestions, issue.Suggestion)
	}
	return suggestions
}

func containsWord(lower, term string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], term)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !unicode.IsLetter(rune(lower[i-1]))
		end := i + len(term)
		after := end >= len(lower) || !unicode.IsLetter(rune(lower[end]))
		if before && after {
			return true
		}
		idx = i + len(term)
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
