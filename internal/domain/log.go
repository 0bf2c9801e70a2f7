package domain

import (
	"bytes"
	"encoding/json"
)

// PointLogEntry records one concluded point. Entries are never modified
// after they are appended.
type PointLogEntry struct {
	GameNumber  int    `json:"gameNumber"`
	Score       string `json:"score"`
	Shot        int    `json:"shot"`
	RallyLength int    `json:"rallyLength"`
	Outcome     string `json:"outcome"`
	Miss        string `json:"miss,omitempty"`
	Serve       string `json:"serve,omitempty"`
	Server      string `json:"server"`
	Winner      string `json:"winner,omitempty"`
	DoubleFault string `json:"doubleFault,omitempty"`

	// Note carries free-text entries written by older app versions,
	// which stored the log as plain strings.
	Note string `json:"note,omitempty"`
}

// pointLogEntryJSON breaks the UnmarshalJSON recursion.
type pointLogEntryJSON PointLogEntry

// UnmarshalJSON accepts both the structured form and a bare string.
func (e *PointLogEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var note string
		if err := json.Unmarshal(trimmed, &note); err != nil {
			return err
		}
		*e = PointLogEntry{Note: note}
		return nil
	}

	var raw pointLogEntryJSON
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	*e = PointLogEntry(raw)
	return nil
}

// Won reports whether the entry records a point won by the tracked player.
func (e PointLogEntry) Won() bool {
	return e.Outcome == OutcomeWon
}
