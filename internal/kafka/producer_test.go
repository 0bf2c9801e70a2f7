package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"gtstats/internal/domain"
)

// mockWriter is a mock implementation of MessageWriter for testing.
type mockWriter struct {
	writeErr error
	closeErr error
	written  []kafka.Message
	closed   bool
	mu       sync.Mutex
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.written = append(m.written, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return m.closeErr
}

func (m *mockWriter) messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func createTestCheckpoint(action domain.Action) *domain.Checkpoint {
	state := domain.NewMatchState()
	state.Score.PointsWon = 2
	return domain.NewCheckpoint("match-123", action, true, state)
}

func TestNewCheckpointProducer(t *testing.T) {
	writer := &mockWriter{}

	producer := NewCheckpointProducer(writer, "gtstats.checkpoints", nil)
	if producer == nil {
		t.Fatal("expected non-nil producer")
	}
	if producer.writer != writer {
		t.Error("expected writer to be set")
	}
	if producer.logger == nil {
		t.Error("expected default logger to be set")
	}
}

func TestCheckpointProducer_Checkpoint(t *testing.T) {
	writer := &mockWriter{}
	producer := NewCheckpointProducer(writer, "gtstats.checkpoints", nil)
	cp := createTestCheckpoint(domain.ActionWinnerAce)

	if err := producer.Checkpoint(context.Background(), cp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := writer.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg := msgs[0]
	if string(msg.Key) != "match-123" {
		t.Errorf("expected key match-123, got %s", msg.Key)
	}
	if headerValue(msg, "action") != "winnerAce" || headerValue(msg, "applied") != "true" {
		t.Errorf("unexpected headers %+v", msg.Headers)
	}
	if headerValue(msg, "event_id") != cp.EventID.String() {
		t.Error("expected event id header")
	}

	decoded, err := domain.CheckpointFromKafkaMessage(msg.Value)
	if err != nil {
		t.Fatalf("failed to decode produced value: %v", err)
	}
	if decoded.Snapshot.Score.PointsWon != 2 {
		t.Errorf("expected snapshot to travel with the checkpoint, got %+v", decoded.Snapshot.Score)
	}
}

func TestCheckpointProducer_Checkpoint_Nil(t *testing.T) {
	producer := NewCheckpointProducer(&mockWriter{}, "topic", nil)

	err := producer.Checkpoint(context.Background(), nil)
	if !errors.Is(err, ErrNilCheckpoint) {
		t.Errorf("expected ErrNilCheckpoint, got %v", err)
	}
}

func TestCheckpointProducer_Checkpoint_WriteError(t *testing.T) {
	writer := &mockWriter{writeErr: errors.New("leader not available")}
	producer := NewCheckpointProducer(writer, "topic", nil)

	err := producer.Checkpoint(context.Background(), createTestCheckpoint(domain.ActionRally))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, writer.writeErr) {
		t.Errorf("expected wrapped write error, got %v", err)
	}
}

func TestCheckpointProducer_Close(t *testing.T) {
	t.Run("nil writer", func(t *testing.T) {
		producer := &CheckpointProducer{}
		if err := producer.Close(); err != nil {
			t.Errorf("expected nil error for nil writer, got: %v", err)
		}
	})

	t.Run("closes writer", func(t *testing.T) {
		writer := &mockWriter{}
		producer := NewCheckpointProducer(writer, "topic", nil)
		if err := producer.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !writer.closed {
			t.Error("expected writer to be closed")
		}
	})

	t.Run("close error", func(t *testing.T) {
		writer := &mockWriter{closeErr: errors.New("boom")}
		producer := NewCheckpointProducer(writer, "topic", nil)
		if err := producer.Close(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestDefaultWriterConfig(t *testing.T) {
	brokers := []string{"localhost:9092"}

	cfg := DefaultWriterConfig(brokers, "checkpoints", 0)

	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "localhost:9092" {
		t.Error("unexpected brokers")
	}
	if cfg.Topic != "checkpoints" {
		t.Errorf("expected topic checkpoints, got %s", cfg.Topic)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("expected batch size 100, got %d", cfg.BatchSize)
	}
	if cfg.BatchTimeout != 10*time.Millisecond {
		t.Errorf("expected batch timeout 10ms, got %v", cfg.BatchTimeout)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("expected default write timeout 10s, got %v", cfg.WriteTimeout)
	}
	if cfg.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.Async {
		t.Error("expected sync mode")
	}

	if got := DefaultWriterConfig(brokers, "t", 3*time.Second).WriteTimeout; got != 3*time.Second {
		t.Errorf("expected configured write timeout, got %v", got)
	}
}

func TestNewWriter(t *testing.T) {
	cfg := WriterConfig{
		Brokers:      []string{"localhost:9092", "localhost:9093"},
		Topic:        "custom-topic",
		BatchSize:    50,
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		MaxAttempts:  5,
		Async:        true,
	}

	writer := NewWriter(cfg)

	if writer == nil {
		t.Fatal("expected non-nil writer")
	}
	if writer.Topic != cfg.Topic {
		t.Errorf("expected topic %s, got %s", cfg.Topic, writer.Topic)
	}
	if writer.BatchSize != cfg.BatchSize {
		t.Errorf("expected batch size %d, got %d", cfg.BatchSize, writer.BatchSize)
	}
	if writer.MaxAttempts != cfg.MaxAttempts {
		t.Errorf("expected max attempts %d, got %d", cfg.MaxAttempts, writer.MaxAttempts)
	}
	if writer.RequiredAcks != kafka.RequireAll {
		t.Error("expected RequireAll acks")
	}
	if _, ok := writer.Balancer.(*kafka.Hash); !ok {
		t.Error("expected hash balancer")
	}
}

func BenchmarkCheckpointSerialization(b *testing.B) {
	cp := createTestCheckpoint(domain.ActionWinnerForehand)
	for i := 0; i < 200; i++ {
		cp.Snapshot.Logs = append(cp.Snapshot.Logs, domain.PointLogEntry{
			GameNumber: i / 6,
			Score:      "30-15",
			Shot:       i + 1,
			Outcome:    domain.OutcomeWon,
			Server:     "player",
			Winner:     "forehand",
		})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := cp.ToKafkaMessage(); err != nil {
			b.Fatal(err)
		}
	}
}
