package models

import "time"

// ContentType is the kind of content being produced.
type ContentType string

const (
	ContentPost    ContentType = "post"
	ContentArticle ContentType = "article"
	ContentComment ContentType = "comment"
)

// DraftStatus tracks a draft through the pipeline. Transitions are
// monotonic except for the bounded draft/revised revision cycle.
type DraftStatus string

const (
	StatusDraft        DraftStatus = "draft"
	StatusRevised      DraftStatus = "revised"
	StatusApproved     DraftStatus = "approved"
	StatusScheduled    DraftStatus = "scheduled"
	StatusPublished    DraftStatus = "published"
	StatusFailed       DraftStatus = "failed"
	StatusManualReview DraftStatus = "needs_manual_review"
)

// Scores holds the three generator scores, each in [0,1].
type Scores struct {
	VoiceMatch float64 `json:"voice_match"`
	Quality    float64 `json:"quality"`
	Risk       float64 `json:"risk"`
}

// Variation is an alternative rendering of a draft in a named style.
type Variation struct {
	Style   string  `json:"style"`
	Content string  `json:"content"`
	Quality float64 `json:"quality"`
}

// DraftMetadata carries the structural annotations computed at generation.
type DraftMetadata struct {
	Topic          string   `json:"topic"`
	Pillar         string   `json:"pillar,omitempty"`
	Hook           string   `json:"hook,omitempty"`
	CallToAction   string   `json:"call_to_action,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`
	CharacterCount int      `json:"character_count"`
	Hashtags       []string `json:"hashtag_suggestions,omitempty"`
}

// Draft is the content artifact flowing through generate -> check -> publish.
// It is owned by its pipeline run until published or failed, after which it
// becomes an immutable historical record.
type Draft struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Content     string        `json:"content"`
	ContentType ContentType   `json:"content_type"`
	Angle       string        `json:"angle,omitempty"`
	Scores      Scores        `json:"scores"`
	Status      DraftStatus   `json:"status"`
	Revision    int           `json:"revision"`
	Variations  []Variation   `json:"variations,omitempty"`
	Metadata    DraftMetadata `json:"metadata"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Severity ranks quality issues. Approval requires the absence of high
// and critical issues.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Blocking reports whether an issue of this severity blocks approval.
func (s Severity) Blocking() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// QualityIssue is a single finding from the quality rule set.
type QualityIssue struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// QualityReport is the structured verdict for a draft.
type QualityReport struct {
	Approved         bool           `json:"approved"`
	QualityScore     float64        `json:"quality_score"`
	RiskScore        float64        `json:"risk_score"`
	BrandScore       float64        `json:"brand_score"`
	FactCheckScore   float64        `json:"fact_check_score"`
	Issues           []QualityIssue `json:"issues"`
	Suggestions      []string       `json:"suggestions,omitempty"`
	RequiresRevision bool           `json:"requires_revision"`
}
