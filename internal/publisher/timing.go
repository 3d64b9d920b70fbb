package publisher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"draftwire/internal/models"
)

// Slot score weights. Competitor activity counts against a slot, so it
// enters inverted.
const (
	weightAudience   = 0.4
	weightHistory    = 0.3
	weightTrend      = 0.2
	weightCompetitor = 0.1
)

const (
	businessStartHour = 9
	businessEndHour   = 17 // exclusive
	candidateDays     = 7
	fallbackHour      = 10
	defaultSlotCount  = 3
)

// FactorSource supplies the observed timing signals for a user/platform.
type FactorSource interface {
	Factors(ctx context.Context, userID, platform string) (models.TimingFactors, error)
}

// ScheduleReader exposes the user's pending publish times so new slots
// keep their distance.
type ScheduleReader interface {
	UpcomingTimes(ctx context.Context, userID string) ([]time.Time, error)
}

// Engine picks publish slots by scoring every business-hour candidate in
// the coming week against the weighted timing factors.
type Engine struct {
	factors   FactorSource
	schedules ScheduleReader
	now       func() time.Time
}

func NewEngine(factors FactorSource, schedules ScheduleReader) *Engine {
	return &Engine{factors: factors, schedules: schedules, now: time.Now}
}

// SetClock overrides the engine's notion of now, for tests.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

// OptimalSlots returns ranked candidate slots, best first. When every
// candidate is excluded, it falls back to tomorrow at a fixed hour.
func (e *Engine) OptimalSlots(ctx context.Context, req models.TimingRequest) ([]models.TimingSlot, error) {
	factors, err := e.factors.Factors(ctx, req.UserID, req.Platform)
	if err != nil {
		return nil, fmt.Errorf("load timing factors: %w", err)
	}

	existing, err := e.schedules.UpcomingTimes(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load upcoming schedule: %w", err)
	}

	count := req.Count
	if count <= 0 {
		count = defaultSlotCount
	}

	now := e.now().UTC()
	start := now.Truncate(time.Hour).Add(time.Hour)

	var slots []models.TimingSlot
	for day := 0; day < candidateDays; day++ {
		for hour := businessStartHour; hour < businessEndHour; hour++ {
			candidate := time.Date(start.Year(), start.Month(), start.Day(), hour, 0, 0, 0, time.UTC).AddDate(0, 0, day)
			if !candidate.After(now) {
				continue
			}
			if req.Preferences.ExcludeWeekends && isWeekend(candidate) {
				continue
			}
			if tooClose(candidate, existing, req.Preferences.MinInterval) {
				continue
			}
			slots = append(slots, models.TimingSlot{
				At:    candidate,
				Score: scoreSlot(candidate, factors),
			})
		}
	}

	if len(slots) == 0 {
		return []models.TimingSlot{{At: fallbackSlot(now), Score: 0}}, nil
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Score > slots[j].Score })
	if len(slots) > count {
		slots = slots[:count]
	}
	return slots, nil
}

func scoreSlot(at time.Time, f models.TimingFactors) float64 {
	dow := int(at.Weekday())
	hour := at.Hour()

	return weightAudience*f.AudienceActivity[dow][hour] +
		weightHistory*f.HistoricalPerformance[dow][hour] +
		weightTrend*f.PlatformTrends[hour] +
		weightCompetitor*(1-clampUnit(f.CompetitorActivity[hour]))
}

func tooClose(candidate time.Time, existing []time.Time, minInterval time.Duration) bool {
	if minInterval <= 0 {
		return false
	}
	for _, t := range existing {
		delta := candidate.Sub(t)
		if delta < 0 {
			delta = -delta
		}
		if delta < minInterval {
			return true
		}
	}
	return false
}

func fallbackSlot(now time.Time) time.Time {
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), fallbackHour, 0, 0, 0, time.UTC)
}

func isWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
