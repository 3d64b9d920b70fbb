package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"draftwire/internal/models"
	"draftwire/pkg/database"
	"draftwire/pkg/logging"
)

const factorCacheTTL = 10 * time.Minute

// defaultActivityByHour is the baseline audience curve used until real
// observations accumulate: morning and lunchtime peaks on work days.
var defaultActivityByHour = [24]float64{
	0, 0, 0, 0, 0, 0.05, 0.15, 0.35, 0.6, 0.8, 0.7, 0.65,
	0.75, 0.7, 0.55, 0.5, 0.45, 0.4, 0.3, 0.2, 0.15, 0.1, 0.05, 0,
}

// ClickHouseFactorSource derives historical performance from past
// publish outcomes and layers it over the baseline curves. Results are
// cached per user/platform with a TTL.
type ClickHouseFactorSource struct {
	db     database.ClickHouseConn
	logger logging.Logger

	mu    sync.Mutex
	cache map[string]cachedFactors
}

type cachedFactors struct {
	factors   models.TimingFactors
	fetchedAt time.Time
}

func NewClickHouseFactorSource(db database.ClickHouseConn, logger logging.Logger) *ClickHouseFactorSource {
	return &ClickHouseFactorSource{
		db:     db,
		logger: logger,
		cache:  make(map[string]cachedFactors),
	}
}

func (s *ClickHouseFactorSource) Factors(ctx context.Context, userID, platform string) (models.TimingFactors, error) {
	key := userID + ":" + platform

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && time.Since(entry.fetchedAt) < factorCacheTTL {
		s.mu.Unlock()
		return entry.factors, nil
	}
	s.mu.Unlock()

	factors := baselineFactors()

	rows, err := s.db.QueryContext(ctx, `
		SELECT toDayOfWeek(published_at) - 1 AS dow,
		       toHour(published_at) AS hour,
		       countIf(status = 'published') / count() AS success_rate
		FROM content_publishes
		WHERE user_id = ? AND platform = ?
		GROUP BY dow, hour`, userID, platform)
	if err != nil {
		return models.TimingFactors{}, fmt.Errorf("query publish history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dow, hour uint8
		var rate float64
		if err := rows.Scan(&dow, &hour, &rate); err != nil {
			return models.TimingFactors{}, fmt.Errorf("scan publish history: %w", err)
		}
		// ClickHouse dow is Monday-based after the -1 shift; Go weekday
		// is Sunday-based.
		goDow := (int(dow) + 1) % 7
		if goDow < 7 && int(hour) < 24 {
			factors.HistoricalPerformance[goDow][hour] = rate
		}
	}
	if err := rows.Err(); err != nil {
		return models.TimingFactors{}, fmt.Errorf("iterate publish history: %w", err)
	}

	s.mu.Lock()
	s.cache[key] = cachedFactors{factors: factors, fetchedAt: time.Now()}
	s.mu.Unlock()

	return factors, nil
}

func baselineFactors() models.TimingFactors {
	var f models.TimingFactors
	for dow := 0; dow < 7; dow++ {
		weekdayWeight := 1.0
		if dow == 0 || dow == 6 {
			weekdayWeight = 0.4
		}
		for hour := 0; hour < 24; hour++ {
			f.AudienceActivity[dow][hour] = defaultActivityByHour[hour] * weekdayWeight
		}
	}
	f.PlatformTrends = defaultActivityByHour
	return f
}

// StaticFactorSource serves fixed factors, for tests and deployments
// without an analytics store.
type StaticFactorSource struct {
	Fixed models.TimingFactors
}

func (s StaticFactorSource) Factors(_ context.Context, _, _ string) (models.TimingFactors, error) {
	return s.Fixed, nil
}
