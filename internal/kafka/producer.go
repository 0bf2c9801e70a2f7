package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	"gtstats/internal/domain"
)

var (
	checkpointsProduced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_producer",
			Name:      "checkpoints_produced_total",
			Help:      "Total number of match checkpoints produced to Kafka",
		},
		[]string{"topic", "status"},
	)

	produceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_producer",
			Name:      "produce_duration_seconds",
			Help:      "Histogram of Kafka produce latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"topic"},
	)

	checkpointSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gtstats",
			Subsystem: "kafka_producer",
			Name:      "checkpoint_size_bytes",
			Help:      "Histogram of checkpoint message sizes in bytes",
			Buckets:   []float64{500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"topic"},
	)
)

// ErrNilCheckpoint is returned when asked to produce a nil checkpoint.
var ErrNilCheckpoint = errors.New("checkpoint cannot be nil")

// MessageWriter is the subset of *kafka.Writer used by the producer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// CheckpointProducer writes match checkpoints to Kafka, one message per
// dispatched action, keyed by match ID so a match stays on one partition.
type CheckpointProducer struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewCheckpointProducer creates a new CheckpointProducer instance.
func NewCheckpointProducer(writer MessageWriter, topic string, logger *slog.Logger) *CheckpointProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckpointProducer{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// Checkpoint sends one checkpoint synchronously.
func (p *CheckpointProducer) Checkpoint(ctx context.Context, cp *domain.Checkpoint) error {
	if cp == nil {
		return ErrNilCheckpoint
	}

	startTime := time.Now()

	value, err := cp.ToKafkaMessage()
	if err != nil {
		p.logger.Error("failed to serialize checkpoint",
			slog.String("event_id", cp.EventID.String()),
			slog.String("match_id", cp.MatchID),
			slog.String("error", err.Error()),
		)
		checkpointsProduced.WithLabelValues(p.topic, "serialization_error").Inc()
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}

	err = p.writer.WriteMessages(ctx, checkpointMessage(cp, value))
	duration := time.Since(startTime)

	produceLatency.WithLabelValues(p.topic).Observe(duration.Seconds())
	checkpointSize.WithLabelValues(p.topic).Observe(float64(len(value)))

	if err != nil {
		p.logger.Error("failed to produce checkpoint",
			slog.String("event_id", cp.EventID.String()),
			slog.String("match_id", cp.MatchID),
			slog.String("action", string(cp.Action)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		checkpointsProduced.WithLabelValues(p.topic, "error").Inc()
		return fmt.Errorf("failed to produce checkpoint: %w", err)
	}

	p.logger.Debug("checkpoint produced",
		slog.String("event_id", cp.EventID.String()),
		slog.String("match_id", cp.MatchID),
		slog.String("action", string(cp.Action)),
		slog.Duration("duration", duration),
		slog.Int("message_size", len(value)),
	)
	checkpointsProduced.WithLabelValues(p.topic, "success").Inc()
	return nil
}

// Close closes the Kafka writer and releases resources.
func (p *CheckpointProducer) Close() error {
	if p.writer == nil {
		return nil
	}

	p.logger.Info("closing checkpoint producer")
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

func checkpointMessage(cp *domain.Checkpoint, value []byte) kafka.Message {
	return kafka.Message{
		Key:   []byte(cp.MatchID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(cp.Action)},
			{Key: "applied", Value: []byte(strconv.FormatBool(cp.Applied))},
			{Key: "event_id", Value: []byte(cp.EventID.String())},
		},
		Time: cp.Timestamp,
	}
}

// WriterConfig holds configuration for Kafka writer.
type WriterConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	MaxAttempts  int
	Async        bool
}

// DefaultWriterConfig returns the writer settings shared by the checkpoint,
// retry and dead letter topics.
func DefaultWriterConfig(brokers []string, topic string, writeTimeout time.Duration) WriterConfig {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
		MaxAttempts:  3,
		Async:        false,
	}
}

// NewWriter creates a Kafka writer that hashes on the message key, so all
// checkpoints of one match keep their order.
func NewWriter(cfg WriterConfig) *kafka.Writer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireAll,
		Async:        cfg.Async,
		Compression:  kafka.Snappy,
	}

	if cfg.MaxAttempts > 0 {
		w.MaxAttempts = cfg.MaxAttempts
	}

	return w
}
