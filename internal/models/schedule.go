package models

import "time"

// ScheduleStatus tracks a scheduled publish through its lifetime.
type ScheduleStatus string

const (
	ScheduleScheduled ScheduleStatus = "scheduled"
	SchedulePublished ScheduleStatus = "published"
	ScheduleFailed    ScheduleStatus = "failed"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// ScheduleEntry is a persisted intent to publish a draft at a future time.
// Entries survive restarts; due entries are picked up by the scheduler loop.
type ScheduleEntry struct {
	ID           string         `json:"id"`
	ContentID    string         `json:"content_id"`
	UserID       string         `json:"user_id"`
	Platform     string         `json:"platform"`
	Content      string         `json:"content"`
	ScheduledFor time.Time      `json:"scheduled_for"`
	Status       ScheduleStatus `json:"status"`
	Attempts     int            `json:"attempts"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// SchedulePreferences constrain where the timing engine may place a slot.
type SchedulePreferences struct {
	Timezone        string        `json:"timezone,omitempty"`
	ExcludeWeekends bool          `json:"exclude_weekends"`
	MinInterval     time.Duration `json:"min_interval,omitempty"`
}

// TimingFactors are the observed signals the timing engine scores slots with.
// Activity and performance are indexed by weekday then hour, values in [0,1].
type TimingFactors struct {
	AudienceActivity      [7][24]float64 `json:"audience_activity"`
	HistoricalPerformance [7][24]float64 `json:"historical_performance"`
	PlatformTrends        [24]float64    `json:"platform_trends"`
	CompetitorActivity    [24]float64    `json:"competitor_activity"`
}

// PublishResult records the outcome of one delivery attempt.
type PublishResult struct {
	ContentID   string    `json:"content_id"`
	UserID      string    `json:"user_id"`
	Platform    string    `json:"platform"`
	ExternalID  string    `json:"external_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
