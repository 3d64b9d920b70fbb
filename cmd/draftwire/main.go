package main

import (
	"context"
	"errors"
	"math/rand"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"draftwire/internal/agent"
	"draftwire/internal/api"
	"draftwire/internal/generator"
	"draftwire/internal/learning"
	"draftwire/internal/pipeline"
	"draftwire/internal/publisher"
	"draftwire/internal/quality"
	"draftwire/internal/voice"
	"draftwire/pkg/bus"
	"draftwire/pkg/config"
	"draftwire/pkg/database"
	"draftwire/pkg/llm"
	"draftwire/pkg/logging"
	"draftwire/pkg/monitoring"
	"draftwire/pkg/redis"
	"draftwire/pkg/server"
	"draftwire/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("draftwire")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Draftwire (content pipeline)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to Postgres (schedule entries)
	dbConfig := database.DefaultConfig()
	dbConfig.URL = config.RequireEnv("DATABASE_URL")
	db := database.MustConnect(dbConfig, logger)
	defer func() { _ = db.Close() }()
	if err := database.ApplySchema(ctx, db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	// Connect to ClickHouse (publish history for the learning loop)
	chConfig := database.ClickHouseConfig{
		Addr:     strings.Split(config.GetEnv("CLICKHOUSE_ADDR", "127.0.0.1:9000"), ","),
		Database: config.GetEnv("CLICKHOUSE_DATABASE", "default"),
		Username: config.GetEnv("CLICKHOUSE_USERNAME", "default"),
		Password: config.GetEnv("CLICKHOUSE_PASSWORD", ""),
	}
	ch := database.MustConnectClickHouse(chConfig, logger)
	defer func() { _ = ch.Close() }()
	if err := database.ApplyClickHouseSchema(ctx, ch, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply ClickHouse schema")
	}

	// Redis backs the publish rate limits. Without it counters live in
	// process memory and reset on restart.
	var redisClient goredis.UniversalClient
	var counters publisher.CounterStore
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		client, err := redis.NewClient(ctx, redis.Config{
			Addr:     addr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
			DB:       config.GetEnvInt("REDIS_DB", 0),
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		redisClient = client
		counters = publisher.NewRedisCounterStore(client)
		defer func() { _ = client.Close() }()
	} else {
		logger.Warn("REDIS_ADDR not set - rate limit counters are in-memory only")
		counters = publisher.NewMemoryCounterStore()
	}

	// Message bus between agents
	var agentBus bus.Bus
	var kafkaBus *bus.KafkaBus
	if brokers := config.GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		kb, err := bus.NewKafkaBus(bus.KafkaConfig{
			Brokers:  strings.Split(brokers, ","),
			GroupID:  config.GetEnv("KAFKA_GROUP_ID", "draftwire"),
			ClientID: "draftwire",
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Kafka")
		}
		kafkaBus = kb
		agentBus = kb
		defer func() { _ = kb.Close() }()
	} else {
		logger.Warn("KAFKA_BROKERS not set - using in-process message bus")
		agentBus = bus.NewMemoryBus(logger)
	}

	llmConfig := llm.LoadConfig()
	provider, err := llm.NewProvider(llmConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize LLM provider")
	}

	voiceURL := config.RequireEnv("VOICE_SERVICE_URL")
	profiles := voice.NewCache(
		voice.NewHTTPService(voiceURL, logger),
		config.GetEnvDuration("PROFILE_CACHE_TTL", 0),
		config.GetEnvInt("PROFILE_CACHE_ENTRIES", 0),
	)

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("draftwire", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("draftwire", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("clickhouse", monitoring.DatabaseHealthCheck(ch))
	if redisClient != nil {
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisClient))
	}
	if kafkaBus != nil {
		healthChecker.AddCheck("kafka", monitoring.PingerHealthCheck("kafka", kafkaBus.HealthClient()))
	}
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":      dbConfig.URL,
		"VOICE_SERVICE_URL": voiceURL,
		"LLM_API_KEY":       llmConfig.APIKey,
	}))

	tasks, taskDuration, inFlight := metricsCollector.CreateAgentMetrics()
	agentMetrics := agent.Metrics{Tasks: tasks, Duration: taskDuration, InFlight: inFlight}
	runs, revisions, publishes := metricsCollector.CreatePipelineMetrics()

	busMessages, busDuration := metricsCollector.CreateBusMetrics()
	busMetrics := bus.Metrics{Messages: busMessages, Duration: busDuration}
	if kafkaBus != nil {
		kafkaBus.SetMetrics(busMetrics)
	} else if memBus, ok := agentBus.(*bus.MemoryBus); ok {
		memBus.SetMetrics(busMetrics)
	}

	// Publisher stack
	scheduleStore := publisher.NewScheduleStore(db)
	limiter := publisher.NewLimiter(counters)
	engine := publisher.NewEngine(publisher.NewClickHouseFactorSource(ch, logger), scheduleStore)
	deliverer := publisher.NewDeliverer(
		publisher.NewHTTPPlatformClient(platformEndpoints(), platformCredentials()),
		logger,
	)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	workers := []agent.Worker{
		generator.NewWorker(profiles, provider, rng, logger),
		quality.NewWorker(logger),
		publisher.NewWorker(limiter, engine, scheduleStore, deliverer, agentBus, logger),
		learning.NewWorker(ch, logger),
	}

	g, runCtx := errgroup.WithContext(ctx)
	for _, w := range workers {
		runtime := agent.NewRuntime(agent.Config{
			Bus:     agentBus,
			Worker:  w,
			Logger:  logger,
			Metrics: agentMetrics,
		})
		g.Go(func() error { return runtime.Start(runCtx) })
	}

	scheduler := publisher.NewScheduler(scheduleStore, deliverer, limiter, agentBus, logger,
		config.GetEnvDuration("SCHEDULER_INTERVAL", 0))
	go scheduler.Start(runCtx)

	optimizer := learning.NewOptimizer(ch, agentBus, logger,
		config.GetEnvDuration("OPTIMIZE_INTERVAL", 0))
	go optimizer.Start(runCtx)

	orchestrator := pipeline.NewOrchestrator(agentBus, logger, pipeline.Metrics{
		Runs:      runs,
		Revisions: revisions,
		Publishes: publishes,
	})

	if kafkaBus != nil {
		g.Go(func() error { return kafkaBus.Start(runCtx) })
	}

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "draftwire", healthChecker, metricsCollector)
	api.RegisterRoutes(router, api.NewHandler(orchestrator, profiles, logger))

	serverConfig := server.DefaultConfig("draftwire", "18080")
	g.Go(func() error { return server.Start(runCtx, serverConfig, router, logger) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("Service exited with error")
	}
	logger.Info("Shutdown complete")
}

// platformEndpoints reads per-platform publish endpoints from the
// environment (LINKEDIN_API_URL, X_API_URL, THREADS_API_URL).
func platformEndpoints() map[string]string {
	endpoints := make(map[string]string)
	for _, name := range publisher.Platforms() {
		if url := config.GetEnv(strings.ToUpper(name)+"_API_URL", ""); url != "" {
			endpoints[name] = url
		}
	}
	return endpoints
}

// platformCredentials reads per-platform access tokens from the
// environment (LINKEDIN_ACCESS_TOKEN, X_ACCESS_TOKEN, ...).
func platformCredentials() publisher.StaticCredentials {
	credentials := publisher.StaticCredentials{}
	for _, name := range publisher.Platforms() {
		if token := config.GetEnv(strings.ToUpper(name)+"_ACCESS_TOKEN", ""); token != "" {
			credentials[name] = token
		}
	}
	return credentials
}
