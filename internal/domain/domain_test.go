package domain_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"gtstats/internal/domain"
)

// TestActionRequest_ToAction tests validation of action requests.
func TestActionRequest_ToAction(t *testing.T) {
	testCases := []struct {
		name      string
		input     string
		expected  domain.Action
		expectErr bool
	}{
		{"known action", "winnerAce", domain.ActionWinnerAce, false},
		{"surrounding whitespace", "  rally ", domain.ActionRally, false},
		{"unknown action passes through", "smash", domain.Action("smash"), false},
		{"empty", "", "", true},
		{"blank", "   ", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := &domain.ActionRequest{Action: tc.input}
			action, err := req.ToAction()
			if tc.expectErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				ve := domain.AsValidationError(err)
				if ve == nil || ve.Field != "action" {
					t.Errorf("expected validation error on field 'action', got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if action != tc.expected {
				t.Errorf("expected action '%s', got '%s'", tc.expected, action)
			}
		})
	}
}

// TestAction_Vocabulary tests the closed vocabulary and which actions score.
func TestAction_Vocabulary(t *testing.T) {
	if len(domain.KnownActions) != 20 {
		t.Errorf("expected 20 actions in the vocabulary, got %d", len(domain.KnownActions))
	}

	nonScoring := []domain.Action{
		domain.ActionRally,
		domain.ActionResetRally,
		domain.ActionFirstServeAttempt,
		domain.ActionSecondServeAttempt,
		domain.ActionFirstServeIn,
		domain.ActionSecondServeIn,
	}
	for _, a := range nonScoring {
		if !a.Known() {
			t.Errorf("expected %s to be known", a)
		}
		if a.Scoring() {
			t.Errorf("expected %s not to conclude a point", a)
		}
	}

	if !domain.ActionOpponentAce.Scoring() {
		t.Error("expected opponentAce to conclude a point")
	}
	if domain.Action("lob").Known() {
		t.Error("expected unknown action not to be known")
	}
}

// TestPointLogEntry_UnmarshalJSON tests both structured and legacy log entries.
func TestPointLogEntry_UnmarshalJSON(t *testing.T) {
	data := []byte(`[
		{"gameNumber": 2, "score": "30-15", "shot": 7, "rallyLength": 4, "outcome": "won", "server": "player", "winner": "forehand"},
		"10:21:03 · Forehand winner."
	]`)

	var entries []domain.PointLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].GameNumber != 2 || entries[0].Shot != 7 || entries[0].Winner != "forehand" {
		t.Errorf("unexpected structured entry: %+v", entries[0])
	}
	if !entries[0].Won() {
		t.Error("expected structured entry to be a won point")
	}

	if entries[1].Note != "10:21:03 · Forehand winner." {
		t.Errorf("expected legacy note to be preserved, got '%s'", entries[1].Note)
	}
	if entries[1].Won() {
		t.Error("expected legacy entry not to count as a won point")
	}
}

// TestPointLogEntry_UnmarshalJSON_Invalid tests that malformed entries are rejected.
func TestPointLogEntry_UnmarshalJSON_Invalid(t *testing.T) {
	var entry domain.PointLogEntry
	if err := json.Unmarshal([]byte(`{"gameNumber": "two"}`), &entry); err == nil {
		t.Error("expected error for mistyped field")
	}
}

// TestGameRecord_Label tests the history picker label fallbacks.
func TestGameRecord_Label(t *testing.T) {
	testCases := []struct {
		name     string
		record   domain.GameRecord
		expected string
	}{
		{"match date and opponent", domain.GameRecord{MatchDate: "2024-05-02", Opponent: "Sara"}, "2024-05-02 · Sara"},
		{"created at fallback", domain.GameRecord{CreatedAt: "2024-05-03T10:00:00.000Z"}, "2024-05-03 · Opponent"},
		{"nothing set", domain.GameRecord{}, " · Opponent"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.record.Label(); got != tc.expected {
				t.Errorf("expected label '%s', got '%s'", tc.expected, got)
			}
		})
	}
}

// TestGameRecord_LegacyDecode tests that older records decode without points or metrics.
func TestGameRecord_LegacyDecode(t *testing.T) {
	data := []byte(`{
		"id": "2024-01-01T10-00-00-000Z",
		"matchDate": "2024-01-01",
		"score": {"pointsWon": 2, "pointsLost": 1, "gamesWon": 3, "gamesLost": 4},
		"serve": {"firstAttempt": 5, "secondAttempt": 2},
		"winners": {"forehand": 2, "backhand": 1, "aces": 1},
		"special": {"doubleFault": 1, "opponentDoubleFault": 0, "opponentWinner": 3},
		"totals": {"winners": 4, "errors": 0},
		"logs": ["10:00 · Ace winner."]
	}`)

	var record domain.GameRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if record.Points != nil {
		t.Error("expected nil points for legacy record")
	}
	if record.Metrics != nil {
		t.Error("expected nil metrics for legacy record")
	}
	if record.Serve.FirstAttempt != 5 || record.Winners.Total() != 4 {
		t.Errorf("unexpected counters: %+v %+v", record.Serve, record.Winners)
	}
	if len(record.Logs) != 1 || record.Logs[0].Note == "" {
		t.Errorf("expected one legacy note entry, got %+v", record.Logs)
	}
}

// TestSaveRequest_Validate tests match date validation.
func TestSaveRequest_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		date      string
		expectErr bool
	}{
		{"valid date", "2024-06-01", false},
		{"empty date", "", false},
		{"padded date", " 2024-06-01 ", false},
		{"us format", "06/01/2024", true},
		{"rfc3339", "2024-06-01T00:00:00Z", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := &domain.SaveRequest{MatchDate: tc.date, Opponent: "  Sara "}
			err := req.Validate()
			if tc.expectErr {
				if !domain.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if req.Opponent != "Sara" {
				t.Errorf("expected trimmed opponent, got '%s'", req.Opponent)
			}
		})
	}
}

// TestMatchState_Clone tests that clones do not share the log slice.
func TestMatchState_Clone(t *testing.T) {
	state := domain.NewMatchState()
	state.Logs = append(state.Logs, domain.PointLogEntry{Shot: 1})

	clone := state.Clone()
	clone.Logs[0].Shot = 99
	clone.Score.PointsWon = 3

	if state.Logs[0].Shot != 1 {
		t.Error("expected original log to be unchanged")
	}
	if state.Score.PointsWon != 0 {
		t.Error("expected original score to be unchanged")
	}
}

// TestCheckpoint_KafkaSerialization tests round-trip serialization to/from Kafka.
func TestCheckpoint_KafkaSerialization(t *testing.T) {
	snapshot := domain.NewMatchState()
	snapshot.Score.PointsWon = 2
	snapshot.ShotCount = 2

	original := domain.NewCheckpoint("match-456", domain.ActionWinnerAce, true, snapshot)

	data, err := original.ToKafkaMessage()
	if err != nil {
		t.Fatalf("ToKafkaMessage failed: %v", err)
	}
	if !json.Valid(data) {
		t.Fatal("ToKafkaMessage did not produce valid JSON")
	}

	restored, err := domain.CheckpointFromKafkaMessage(data)
	if err != nil {
		t.Fatalf("CheckpointFromKafkaMessage failed: %v", err)
	}

	if restored.EventID != original.EventID {
		t.Errorf("EventID mismatch: expected %s, got %s", original.EventID, restored.EventID)
	}
	if restored.MatchID != original.MatchID {
		t.Errorf("MatchID mismatch: expected %s, got %s", original.MatchID, restored.MatchID)
	}
	if restored.Action != domain.ActionWinnerAce || !restored.Applied {
		t.Errorf("unexpected action %s applied=%v", restored.Action, restored.Applied)
	}
	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp mismatch: expected %v, got %v", original.Timestamp, restored.Timestamp)
	}
	if restored.Snapshot.Score.PointsWon != 2 || restored.Snapshot.ShotCount != 2 {
		t.Errorf("snapshot mismatch: %+v", restored.Snapshot.Score)
	}
}

// TestCheckpointFromKafkaMessage_Invalid tests deserialization failures.
func TestCheckpointFromKafkaMessage_Invalid(t *testing.T) {
	validUUID := uuid.New().String()
	testCases := []struct {
		name string
		data string
	}{
		{"invalid json", "not valid json"},
		{"invalid uuid", `{"eventId": "bad", "matchId": "m", "timestamp": "2024-01-01T12:00:00Z"}`},
		{"missing match", fmt.Sprintf(`{"eventId": "%s", "timestamp": "2024-01-01T12:00:00Z"}`, validUUID)},
		{"invalid timestamp", fmt.Sprintf(`{"eventId": "%s", "matchId": "m", "timestamp": "yesterday"}`, validUUID)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := domain.CheckpointFromKafkaMessage([]byte(tc.data)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

// TestCheckpointFromKafkaMessage_NilSnapshot tests that a missing snapshot becomes a fresh state.
func TestCheckpointFromKafkaMessage_NilSnapshot(t *testing.T) {
	data := fmt.Sprintf(`{"eventId": "%s", "matchId": "m", "action": "rally", "timestamp": "%s"}`,
		uuid.New().String(), time.Now().UTC().Format(time.RFC3339Nano))

	cp, err := domain.CheckpointFromKafkaMessage([]byte(data))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cp.Snapshot == nil || !cp.Snapshot.Serving {
		t.Error("expected fresh snapshot")
	}
}

// TestValidationError_Error tests the error message format.
func TestValidationError_Error(t *testing.T) {
	ve := domain.NewValidationError("fieldName", "error message")

	expectedMsg := "validation error: field 'fieldName' error message"
	if ve.Error() != expectedMsg {
		t.Errorf("expected error message '%s', got '%s'", expectedMsg, ve.Error())
	}
}

// TestIsValidationError tests the IsValidationError helper, including wrapped errors.
func TestIsValidationError(t *testing.T) {
	ve := domain.NewValidationError("field", "message")

	if !domain.IsValidationError(ve) {
		t.Error("expected IsValidationError to return true for ValidationError")
	}
	if !domain.IsValidationError(fmt.Errorf("decode: %w", ve)) {
		t.Error("expected IsValidationError to see through wrapping")
	}
	if domain.IsValidationError(errors.New("regular error")) {
		t.Error("expected IsValidationError to return false for regular error")
	}
}

// TestAsValidationError tests the AsValidationError helper.
func TestAsValidationError(t *testing.T) {
	ve := domain.NewValidationError("field", "message")

	extracted := domain.AsValidationError(ve)
	if extracted == nil {
		t.Fatal("expected AsValidationError to return non-nil for ValidationError")
	}
	if extracted.Field != "field" {
		t.Errorf("expected Field 'field', got '%s'", extracted.Field)
	}

	if domain.AsValidationError(errors.New("regular error")) != nil {
		t.Error("expected AsValidationError to return nil for regular error")
	}
}

func BenchmarkCheckpoint_ToKafkaMessage(b *testing.B) {
	snapshot := domain.NewMatchState()
	for i := 0; i < 30; i++ {
		snapshot.Logs = append(snapshot.Logs, domain.PointLogEntry{Shot: i + 1, Outcome: domain.OutcomeWon})
	}
	cp := domain.NewCheckpoint("match-123", domain.ActionWonPoint, true, snapshot)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = cp.ToKafkaMessage()
	}
}
