package models

import "time"

// Task payloads exchanged between agents. Field names follow the wire
// envelope convention: snake_case JSON, omitempty on optionals.

// GenerateRequest asks the generator for a fresh draft.
type GenerateRequest struct {
	UserID      string      `json:"user_id"`
	Topic       string      `json:"topic"`
	ContentType ContentType `json:"content_type,omitempty"`
	Angle       string      `json:"angle,omitempty"`
	Pillar      string      `json:"pillar,omitempty"`
	Platform    string      `json:"platform,omitempty"`
}

// ReviseRequest asks the generator to rework a draft against a report.
type ReviseRequest struct {
	Draft  Draft         `json:"draft"`
	Report QualityReport `json:"report"`
}

// CheckRequest asks the quality agent to evaluate a draft.
type CheckRequest struct {
	Draft Draft `json:"draft"`
}

// PublishRequest asks the publisher to deliver an approved draft now.
type PublishRequest struct {
	Draft    Draft  `json:"draft"`
	Platform string `json:"platform"`
}

// ScheduleRequest asks the publisher to persist a future publish. A zero
// At defers slot selection to the timing engine.
type ScheduleRequest struct {
	Draft       Draft               `json:"draft"`
	Platform    string              `json:"platform"`
	At          time.Time           `json:"at,omitempty"`
	Preferences SchedulePreferences `json:"preferences,omitempty"`
}

// TimingRequest asks the publisher for ranked publish slots.
type TimingRequest struct {
	UserID      string              `json:"user_id"`
	Platform    string              `json:"platform"`
	Count       int                 `json:"count,omitempty"`
	Preferences SchedulePreferences `json:"preferences,omitempty"`
}

// TimingSlot is one ranked recommendation from the timing engine.
type TimingSlot struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// CancelRequest cancels a scheduled entry that has not yet been published.
type CancelRequest struct {
	ScheduleID string `json:"schedule_id"`
	UserID     string `json:"user_id"`
}

// TrackingEvent reports a publish outcome to the learning agent.
type TrackingEvent struct {
	Result   PublishResult `json:"result"`
	Scores   Scores        `json:"scores"`
	Revision int           `json:"revision"`
}

// OptimizeRequest carries learned adjustments back to the generator.
type OptimizeRequest struct {
	UserID          string             `json:"user_id,omitempty"`
	TemperatureBias float64            `json:"temperature_bias,omitempty"`
	AngleWeights    map[string]float64 `json:"angle_weights,omitempty"`
}
