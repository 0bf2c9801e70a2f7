package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is the persistence record emitted after every dispatched action.
// It carries the full snapshot so the latest checkpoint can restore a session.
type Checkpoint struct {
	EventID   uuid.UUID
	MatchID   string
	Action    Action
	Applied   bool
	Timestamp time.Time
	Snapshot  *MatchState
}

// NewCheckpoint stamps a checkpoint for action with a fresh event ID.
func NewCheckpoint(matchID string, action Action, applied bool, snapshot *MatchState) *Checkpoint {
	return &Checkpoint{
		EventID:   uuid.New(),
		MatchID:   matchID,
		Action:    action,
		Applied:   applied,
		Timestamp: time.Now().UTC(),
		Snapshot:  snapshot,
	}
}

// KafkaMessage represents the serialized form of a Checkpoint for Kafka.
type KafkaMessage struct {
	EventID   string      `json:"eventId"`
	MatchID   string      `json:"matchId"`
	Action    string      `json:"action"`
	Applied   bool        `json:"applied"`
	Timestamp string      `json:"timestamp"`
	Snapshot  *MatchState `json:"snapshot"`
}

// ToKafkaMessage converts a Checkpoint to a JSON byte slice for Kafka.
func (c *Checkpoint) ToKafkaMessage() ([]byte, error) {
	msg := KafkaMessage{
		EventID:   c.EventID.String(),
		MatchID:   c.MatchID,
		Action:    string(c.Action),
		Applied:   c.Applied,
		Timestamp: c.Timestamp.Format(time.RFC3339Nano),
		Snapshot:  c.Snapshot,
	}
	return json.Marshal(msg)
}

// CheckpointFromKafkaMessage deserializes a Kafka message into a Checkpoint.
func CheckpointFromKafkaMessage(data []byte) (*Checkpoint, error) {
	var msg KafkaMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	eventUUID, err := uuid.Parse(msg.EventID)
	if err != nil {
		return nil, err
	}

	if msg.MatchID == "" {
		return nil, errors.New("checkpoint has no matchId")
	}

	timestamp, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
	if err != nil {
		return nil, err
	}

	snapshot := msg.Snapshot
	if snapshot == nil {
		snapshot = NewMatchState()
	}

	return &Checkpoint{
		EventID:   eventUUID,
		MatchID:   msg.MatchID,
		Action:    Action(msg.Action),
		Applied:   msg.Applied,
		Timestamp: timestamp,
		Snapshot:  snapshot,
	}, nil
}

// ActionTally is the per-match action breakdown read back from the analytics store.
type ActionTally struct {
	MatchID       string           `json:"matchId"`
	TotalActions  int64            `json:"totalActions"`
	IgnoredCount  int64            `json:"ignoredActions"`
	ActionsByType map[string]int64 `json:"actionsByType"`
	FirstActionAt *time.Time       `json:"firstActionAt,omitempty"`
	LastActionAt  *time.Time       `json:"lastActionAt,omitempty"`

	// ResponseTimes covers action requests served by this process.
	ResponseTimes *ResponseTimePercentiles `json:"responseTimes,omitempty"`
}

// ResponseTimePercentiles holds action request latency percentiles in milliseconds.
type ResponseTimePercentiles struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// NewActionTally creates an ActionTally with an initialized map.
func NewActionTally(matchID string) *ActionTally {
	return &ActionTally{
		MatchID:       matchID,
		ActionsByType: make(map[string]int64),
	}
}
