package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"gtstats/internal/domain"
)

var (
	consumerLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_consumer",
			Name:      "lag",
			Help:      "Current consumer lag (difference between latest offset and committed offset)",
		},
		[]string{"topic", "partition"},
	)

	batchesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_consumer",
			Name:      "batches_processed_total",
			Help:      "Total number of checkpoint batches processed",
		},
		[]string{"status"},
	)

	checkpointsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_consumer",
			Name:      "checkpoints_consumed_total",
			Help:      "Total number of checkpoints consumed from Kafka",
		},
		[]string{"status"},
	)

	consumeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_consumer",
			Name:      "consume_duration_seconds",
			Help:      "Histogram of batch processing duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"operation"},
	)

	retriedCheckpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_consumer",
			Name:      "retry_checkpoints_total",
			Help:      "Total number of checkpoints sent to the retry topic",
		},
		[]string{"status"},
	)

	deadLetterCheckpoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_consumer",
			Name:      "dead_letter_checkpoints_total",
			Help:      "Total number of checkpoints sent to the dead letter topic",
		},
	)
)

// Repository defines the interface for batch checkpoint insertion.
type Repository interface {
	InsertBatch(ctx context.Context, checkpoints []*domain.Checkpoint) error
}

// MessageReader is the subset of *kafka.Reader used by the consumer.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
}

// BatchConsumer consumes checkpoints from Kafka and batch inserts them into ClickHouse.
type BatchConsumer struct {
	reader        MessageReader
	repository    Repository
	retryWriter   MessageWriter
	deadWriter    MessageWriter
	batchSize     int
	flushInterval time.Duration
	maxRetries    int
	logger        *slog.Logger

	batch     []*domain.Checkpoint
	messages  []kafka.Message
	batchLock sync.Mutex
	ticker    *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
}

// BatchConsumerConfig holds configuration for the batch consumer.
type BatchConsumerConfig struct {
	Reader        MessageReader
	Repository    Repository
	RetryWriter   MessageWriter
	DeadWriter    MessageWriter
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
	Logger        *slog.Logger
}

// NewBatchConsumer creates a new BatchConsumer instance.
func NewBatchConsumer(cfg BatchConsumerConfig) *BatchConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &BatchConsumer{
		reader:        cfg.Reader,
		repository:    cfg.Repository,
		retryWriter:   cfg.RetryWriter,
		deadWriter:    cfg.DeadWriter,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		maxRetries:    cfg.MaxRetries,
		logger:        cfg.Logger,
		batch:         make([]*domain.Checkpoint, 0, cfg.BatchSize),
		messages:      make([]kafka.Message, 0, cfg.BatchSize),
		done:          make(chan struct{}),
	}
}

// Start begins consuming messages from Kafka.
// This method blocks until Stop() is called or the context is cancelled.
func (c *BatchConsumer) Start(ctx context.Context) {
	c.logger.Info("starting batch consumer",
		slog.Int("batch_size", c.batchSize),
		slog.Duration("flush_interval", c.flushInterval),
	)

	c.ticker = time.NewTicker(c.flushInterval)
	defer c.ticker.Stop()

	c.wg.Add(1)
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context cancelled, flushing remaining batch")
			c.flushWithContext(context.Background())
			return

		case <-c.done:
			c.logger.Info("stop signal received, flushing remaining batch")
			c.flushWithContext(context.Background())
			return

		case <-c.ticker.C:
			c.flushWithContext(ctx)

		default:
			fetchCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			msg, err := c.reader.FetchMessage(fetchCtx)
			cancel()

			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				// Timeout is expected when no messages are available
				if fetchCtx.Err() == context.DeadlineExceeded {
					continue
				}
				c.logger.Error("failed to fetch message",
					slog.String("error", err.Error()),
				)
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// handleMessage parses one message and adds it to the batch, flushing when full.
func (c *BatchConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.updateLagMetric(msg)

	cp, err := domain.CheckpointFromKafkaMessage(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse checkpoint",
			slog.String("error", err.Error()),
			slog.Int64("offset", msg.Offset),
			slog.Int("partition", msg.Partition),
		)
		checkpointsConsumed.WithLabelValues("parse_error").Inc()
		// Unparseable messages are committed so they are not redelivered forever.
		if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
			c.logger.Error("failed to commit message after parse error",
				slog.String("error", commitErr.Error()),
			)
		}
		return
	}

	c.batchLock.Lock()
	c.batch = append(c.batch, cp)
	c.messages = append(c.messages, msg)
	batchLen := len(c.batch)
	c.batchLock.Unlock()

	c.logger.Debug("checkpoint added to batch",
		slog.String("event_id", cp.EventID.String()),
		slog.String("match_id", cp.MatchID),
		slog.Int("batch_size", batchLen),
	)

	if batchLen >= c.batchSize {
		c.flushWithContext(ctx)
	}
}

func (c *BatchConsumer) updateLagMetric(msg kafka.Message) {
	if c.reader == nil {
		return
	}
	stats := c.reader.Stats()
	consumerLag.WithLabelValues(
		stats.Topic,
		strconv.Itoa(msg.Partition),
	).Set(float64(stats.Lag))
}

// flushWithContext flushes the current batch to the repository.
func (c *BatchConsumer) flushWithContext(ctx context.Context) {
	c.batchLock.Lock()
	if len(c.batch) == 0 {
		c.batchLock.Unlock()
		return
	}

	checkpoints := c.batch
	messages := c.messages
	c.batch = make([]*domain.Checkpoint, 0, c.batchSize)
	c.messages = make([]kafka.Message, 0, c.batchSize)
	c.batchLock.Unlock()

	startTime := time.Now()
	err := c.repository.InsertBatch(ctx, checkpoints)
	duration := time.Since(startTime)
	consumeDuration.WithLabelValues("insert_batch").Observe(duration.Seconds())

	if err != nil {
		c.logger.Error("failed to insert batch",
			slog.Int("batch_size", len(checkpoints)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		batchesProcessed.WithLabelValues("error").Inc()
		c.sendToRetry(ctx, checkpoints, messages)
		return
	}

	c.commit(ctx, messages)

	c.logger.Info("batch flushed successfully",
		slog.Int("batch_size", len(checkpoints)),
		slog.Duration("duration", duration),
	)
	batchesProcessed.WithLabelValues("success").Inc()
	checkpointsConsumed.WithLabelValues("success").Add(float64(len(checkpoints)))
}

func (c *BatchConsumer) commit(ctx context.Context, messages []kafka.Message) {
	if len(messages) == 0 || c.reader == nil {
		return
	}
	if err := c.reader.CommitMessages(ctx, messages...); err != nil {
		c.logger.Error("failed to commit messages",
			slog.Int("message_count", len(messages)),
			slog.String("error", err.Error()),
		)
	}
}

// retryCount reads the retry counter a message carries from earlier attempts.
func retryCount(msg kafka.Message) int {
	for _, header := range msg.Headers {
		if header.Key == "retry_count" && len(header.Value) > 0 {
			if n, err := strconv.Atoi(string(header.Value)); err == nil {
				return n
			}
		}
	}
	return 0
}

// sendToRetry sends failed checkpoints to the retry topic, or to the dead
// letter topic once they have used up their retries.
func (c *BatchConsumer) sendToRetry(ctx context.Context, checkpoints []*domain.Checkpoint, originalMessages []kafka.Message) {
	if c.retryWriter == nil {
		c.logger.Warn("retry writer not configured, sending to dead letter",
			slog.Int("checkpoint_count", len(checkpoints)),
		)
		c.sendToDead(ctx, checkpoints, "retry_unavailable")
		c.commit(ctx, originalMessages)
		return
	}

	retryMessages := make([]kafka.Message, 0, len(checkpoints))
	for i, cp := range checkpoints {
		value, err := cp.ToKafkaMessage()
		if err != nil {
			c.logger.Warn("failed to serialize checkpoint for retry",
				slog.String("event_id", cp.EventID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		attempt := 1
		if i < len(originalMessages) {
			attempt = retryCount(originalMessages[i]) + 1
		}

		if attempt > c.maxRetries {
			c.logger.Warn("max retries exceeded, sending to dead letter",
				slog.String("event_id", cp.EventID.String()),
				slog.Int("retry_count", attempt),
			)
			c.sendSingleToDead(ctx, cp, "max_retries_exceeded")
			continue
		}

		msg := checkpointMessage(cp, value)
		msg.Headers = append(msg.Headers,
			kafka.Header{Key: "retry_count", Value: []byte(strconv.Itoa(attempt))},
			kafka.Header{Key: "original_timestamp", Value: []byte(cp.Timestamp.Format(time.RFC3339Nano))},
		)
		retryMessages = append(retryMessages, msg)
	}

	if len(retryMessages) > 0 {
		if err := c.retryWriter.WriteMessages(ctx, retryMessages...); err != nil {
			c.logger.Error("failed to write to retry topic, sending to dead letter",
				slog.Int("checkpoint_count", len(retryMessages)),
				slog.String("error", err.Error()),
			)
			retriedCheckpoints.WithLabelValues("error").Add(float64(len(retryMessages)))
			c.sendToDead(ctx, checkpoints, "retry_write_failed")
		} else {
			c.logger.Info("checkpoints sent to retry topic",
				slog.Int("checkpoint_count", len(retryMessages)),
			)
			retriedCheckpoints.WithLabelValues("success").Add(float64(len(retryMessages)))
		}
	}

	// The originals now live on in the retry or dead letter topic.
	c.commit(ctx, originalMessages)
}

func (c *BatchConsumer) sendToDead(ctx context.Context, checkpoints []*domain.Checkpoint, reason string) {
	for _, cp := range checkpoints {
		c.sendSingleToDead(ctx, cp, reason)
	}
}

// sendSingleToDead wraps a checkpoint with failure metadata and writes it to
// the dead letter topic.
func (c *BatchConsumer) sendSingleToDead(ctx context.Context, cp *domain.Checkpoint, reason string) {
	if c.deadWriter == nil {
		c.logger.Error("dead letter writer not configured, checkpoint lost",
			slog.String("event_id", cp.EventID.String()),
		)
		return
	}

	value, err := cp.ToKafkaMessage()
	if err != nil {
		c.logger.Error("failed to serialize checkpoint for dead letter",
			slog.String("event_id", cp.EventID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	failedAt := time.Now().Format(time.RFC3339Nano)
	deadValue, err := json.Marshal(map[string]interface{}{
		"checkpoint": json.RawMessage(value),
		"failed_at":  failedAt,
		"reason":     reason,
		"event_id":   cp.EventID.String(),
		"match_id":   cp.MatchID,
		"action":     string(cp.Action),
	})
	if err != nil {
		deadValue = value
	}

	msg := kafka.Message{
		Key:   []byte(cp.MatchID),
		Value: deadValue,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(cp.Action)},
			{Key: "event_id", Value: []byte(cp.EventID.String())},
			{Key: "failed_at", Value: []byte(failedAt)},
		},
	}

	if err := c.deadWriter.WriteMessages(ctx, msg); err != nil {
		c.logger.Error("failed to write to dead letter queue",
			slog.String("event_id", cp.EventID.String()),
			slog.String("error", err.Error()),
		)
		return
	}

	c.logger.Warn("checkpoint sent to dead letter queue",
		slog.String("event_id", cp.EventID.String()),
		slog.String("match_id", cp.MatchID),
		slog.String("reason", reason),
	)
	deadLetterCheckpoints.Inc()
}

// Stop signals the consumer to stop and waits for it to finish.
func (c *BatchConsumer) Stop() {
	c.logger.Info("stopping batch consumer")
	close(c.done)
	c.wg.Wait()
	c.logger.Info("batch consumer stopped")
}

// ReaderConfig holds configuration for Kafka reader.
type ReaderConfig struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	MaxWait        time.Duration
	CommitInterval time.Duration
	StartOffset    int64
}

// DefaultReaderConfig returns default configuration for the checkpoint topic consumer.
func DefaultReaderConfig(brokers []string, topic, groupID string, maxWait time.Duration) ReaderConfig {
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        maxWait,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	}
}

// NewReader creates a new Kafka reader from cfg.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		CommitInterval: cfg.CommitInterval,
		StartOffset:    cfg.StartOffset,
		Dialer: &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})
}
