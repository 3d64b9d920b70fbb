package models

// VoiceProfile describes how a user writes. The generator conditions its
// prompts on it and the scorer measures drafts against it.
type VoiceProfile struct {
	UserID           string             `json:"user_id"`
	Archetype        string             `json:"archetype"`
	Tone             string             `json:"tone"`
	RhythmPattern    string             `json:"rhythm_pattern"`
	SentenceStarters []string           `json:"sentence_starters,omitempty"`
	Transitions      []string           `json:"transitions,omitempty"`
	SignaturePhrases []string           `json:"signature_phrases,omitempty"`
	FillerPhrases    []string           `json:"filler_phrases,omitempty"`
	Dimensions       map[string]float64 `json:"dimensions,omitempty"`
	ContentPillars   []string           `json:"content_pillars,omitempty"`
	Creativity       float64            `json:"creativity"`
}

// WorkshopData is the user's brand context collected at onboarding.
type WorkshopData struct {
	UserID         string   `json:"user_id"`
	Industry       string   `json:"industry,omitempty"`
	Role           string   `json:"role,omitempty"`
	Company        string   `json:"company,omitempty"`
	Values         []string `json:"values,omitempty"`
	Audience       string   `json:"audience,omitempty"`
	Goals          []string `json:"goals,omitempty"`
	Expertise      []string `json:"expertise,omitempty"`
	Differentiator string   `json:"differentiator,omitempty"`
}

// Profile bundles everything the generator needs about a user.
type Profile struct {
	Voice    VoiceProfile `json:"voice"`
	Workshop WorkshopData `json:"workshop"`
}
