package learning

import (
	"context"
	"time"

	"draftwire/internal/models"
	"draftwire/pkg/bus"
	"draftwire/pkg/database"
	"draftwire/pkg/logging"
)

const (
	defaultOptimizeInterval = 6 * time.Hour
	optimizeMinSamples      = 5
	lookbackDays            = 30
)

// Temperature nudges. Users whose drafts keep missing their voice get a
// cooler temperature; consistently strong performers get more room.
const (
	coolBias = -0.1
	warmBias = 0.05
)

// Optimizer periodically distills publish history into per-user
// parameter updates for the generator.
type Optimizer struct {
	db       database.ClickHouseConn
	bus      bus.Bus
	logger   logging.Logger
	interval time.Duration
}

func NewOptimizer(db database.ClickHouseConn, b bus.Bus, logger logging.Logger, interval time.Duration) *Optimizer {
	if interval <= 0 {
		interval = defaultOptimizeInterval
	}
	return &Optimizer{db: db, bus: b, logger: logger, interval: interval}
}

func (o *Optimizer) Start(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runCycle(ctx)
		}
	}
}

func (o *Optimizer) runCycle(ctx context.Context) {
	updates, err := o.computeUpdates(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("Optimizer: failed to compute updates")
		return
	}

	for _, update := range updates {
		msg, err := bus.NewTask(bus.AgentLearning, bus.AgentGenerator, bus.TaskOptimizeAgent, update)
		if err != nil {
			o.logger.WithError(err).Warn("Optimizer: failed to build update message")
			continue
		}
		if err := o.bus.Publish(ctx, msg.WithPriority(bus.PriorityLow)); err != nil {
			o.logger.WithError(err).Warn("Optimizer: failed to publish update")
			continue
		}
		o.logger.WithFields(logging.Fields{
			"user_id":          update.UserID,
			"temperature_bias": update.TemperatureBias,
		}).Info("Optimizer: generation update emitted")
	}
}

func (o *Optimizer) computeUpdates(ctx context.Context) ([]models.OptimizeRequest, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT user_id,
		       avg(voice_match_score) AS avg_voice,
		       avg(quality_score) AS avg_quality,
		       count() AS samples
		FROM content_publishes
		WHERE status = 'published' AND published_at > now() - INTERVAL ? DAY
		GROUP BY user_id
		HAVING samples >= ?`, lookbackDays, optimizeMinSamples)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []models.OptimizeRequest
	for rows.Next() {
		var userID string
		var avgVoice, avgQuality float64
		var samples uint64
		if err := rows.Scan(&userID, &avgVoice, &avgQuality, &samples); err != nil {
			return nil, err
		}

		var bias float64
		switch {
		case avgVoice < 0.6:
			bias = coolBias
		case avgVoice > 0.8 && avgQuality > 0.7:
			bias = warmBias
		default:
			continue
		}
		updates = append(updates, models.OptimizeRequest{UserID: userID, TemperatureBias: bias})
	}
	return updates, rows.Err()
}
