package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	topicPrefix = "pipeline.tasks."
	dlqTopic    = "pipeline.tasks.dlq"

	publishMaxRetries = 3
	publishBaseDelay  = 100 * time.Millisecond
	publishMaxDelay   = 2 * time.Second
)

// TopicFor returns the Kafka topic carrying an agent's tasks.
func TopicFor(agent AgentType) string {
	return topicPrefix + string(agent)
}

// KafkaBus is the Kafka-backed transport. One producer client serves
// Publish; a consumer-group client serves the subscribed agents.
type KafkaBus struct {
	producer *kgo.Client
	consumer *kgo.Client
	logger   *logrus.Logger
	groupID  string
	metrics  Metrics

	mu       sync.RWMutex
	handlers map[string]Handler

	retry retrypolicy.RetryPolicy[any]
}

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	ClientID string
}

// NewKafkaBus creates the transport. A connection failure here is fatal
// for the agent process: the caller is expected to exit.
func NewKafkaBus(cfg KafkaConfig, logger *logrus.Logger) (*KafkaBus, error) {
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
	)
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := producer.Ping(ctx); err != nil {
		producer.Close()
		consumer.Close()
		return nil, fmt.Errorf("kafka unreachable: %w", err)
	}

	retry := retrypolicy.NewBuilder[any]().
		WithBackoff(publishBaseDelay, publishMaxDelay).
		WithMaxRetries(publishMaxRetries).
		WithJitterFactor(0.1).
		Build()

	return &KafkaBus{
		producer: producer,
		consumer: consumer,
		logger:   logger,
		groupID:  cfg.GroupID,
		handlers: make(map[string]Handler),
		retry:    retry,
	}, nil
}

// SetMetrics attaches instrumentation hooks. Call before traffic flows.
func (b *KafkaBus) SetMetrics(metrics Metrics) {
	b.metrics = metrics
}

// Publish delivers the message to its target agent's topic. Broker errors
// are retried with bounded backoff before being surfaced to the caller.
func (b *KafkaBus) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	record := &kgo.Record{
		Topic: TopicFor(msg.Target),
		Key:   []byte(msg.ID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "source", Value: []byte(msg.Source)},
			{Key: "type", Value: []byte(msg.Type)},
			{Key: "task", Value: []byte(msg.Task)},
		},
	}

	start := time.Now()
	err = failsafe.With(b.retry).WithContext(ctx).Run(func() error {
		produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := b.producer.ProduceSync(produceCtx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce to %s: %w", record.Topic, err)
		}
		return nil
	})
	b.metrics.observe("publish", start)
	if err != nil {
		b.metrics.count(msg, "publish_error")
		return err
	}
	b.metrics.count(msg, "published")
	return nil
}

// Subscribe registers a handler for an agent's topic. Safe to call on a
// running bus: the consumer picks the topic up on its next poll.
func (b *KafkaBus) Subscribe(agent AgentType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	topic := TopicFor(agent)
	b.handlers[topic] = handler
	b.consumer.AddConsumeTopics(topic)
}

// Start polls for messages until ctx is cancelled.
func (b *KafkaBus) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			fetches := b.consumer.PollFetches(ctx)
			if errs := fetches.Errors(); len(errs) > 0 {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				b.logger.Errorf("errors while polling: %v", errs)
				continue
			}

			iter := fetches.RecordIter()
			records := make([]*kgo.Record, 0)
			for !iter.Done() {
				records = append(records, iter.Next())
			}

			commitRecords := b.processRecords(ctx, records)
			if len(commitRecords) > 0 {
				if err := b.consumer.CommitRecords(ctx, commitRecords...); err != nil {
					b.logger.WithError(err).Error("failed to commit records")
				}
			}
		}
	}
}

func (b *KafkaBus) processRecords(ctx context.Context, records []*kgo.Record) []*kgo.Record {
	type topicPartition struct {
		topic     string
		partition int32
	}
	blocked := make(map[topicPartition]bool)
	lastSuccess := make(map[topicPartition]*kgo.Record)

	for _, record := range records {
		tp := topicPartition{topic: record.Topic, partition: record.Partition}
		if blocked[tp] {
			// A prior message in this topic/partition failed. We must not
			// process or commit later offsets, otherwise we'd skip the
			// failed message on restart.
			continue
		}

		b.mu.RLock()
		handler, exists := b.handlers[record.Topic]
		b.mu.RUnlock()

		if !exists {
			b.logger.WithField("topic", record.Topic).Warn("No handler registered for topic")
			lastSuccess[tp] = record
			continue
		}

		var msg Message
		if err := json.Unmarshal(record.Value, &msg); err != nil {
			// Undecodable messages would fail forever; park them on the
			// DLQ and move on.
			b.sendToDLQ(ctx, record, err)
			lastSuccess[tp] = record
			continue
		}

		start := time.Now()
		err := handler(ctx, msg)
		b.metrics.observe("handle", start)
		if err != nil {
			b.logger.WithError(err).WithFields(logrus.Fields{
				"topic":     record.Topic,
				"partition": record.Partition,
				"offset":    record.Offset,
				"message":   msg.ID,
			}).Error("Failed to handle message - will retry on restart")
			b.metrics.count(msg, "handler_error")
			blocked[tp] = true
			continue
		}

		b.metrics.count(msg, "handled")
		lastSuccess[tp] = record
	}

	if len(lastSuccess) == 0 {
		return nil
	}

	commitRecords := make([]*kgo.Record, 0, len(lastSuccess))
	for _, record := range lastSuccess {
		commitRecords = append(commitRecords, record)
	}
	return commitRecords
}

func (b *KafkaBus) sendToDLQ(ctx context.Context, record *kgo.Record, cause error) {
	payload, err := EncodeDLQRecord(record.Topic, record.Partition, record.Offset, record.Value, cause, b.groupID)
	if err != nil {
		b.logger.WithError(err).Error("failed to encode DLQ payload")
		return
	}

	dlqRecord := &kgo.Record{Topic: dlqTopic, Key: record.Key, Value: payload}
	produceCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := b.producer.ProduceSync(produceCtx, dlqRecord).FirstErr(); err != nil {
		b.logger.WithError(err).Error("failed to produce DLQ record")
	}
}

// HealthClient exposes the producer client for health checks.
func (b *KafkaBus) HealthClient() *kgo.Client {
	return b.producer
}

// Close closes both underlying clients.
func (b *KafkaBus) Close() error {
	b.producer.Close()
	b.consumer.Close()
	return nil
}
