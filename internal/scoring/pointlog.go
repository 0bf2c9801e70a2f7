package scoring

import "gtstats/internal/domain"

// LogPoint appends the entry for the point that just concluded and clears
// the per-point context and rally length. server is who served the point
// and game is the number of the game the point belonged to; both are taken
// before ScorePoint can roll the game over.
//
// Entries are prepended: Logs[0] is always the latest point.
func LogPoint(s *domain.MatchState, outcome string, server domain.Side, game int) {
	s.ShotCount++

	entry := domain.PointLogEntry{
		GameNumber:  game,
		Score:       ScoreLabel(s.Score),
		Shot:        s.ShotCount,
		RallyLength: s.RallyLength,
		Outcome:     outcome,
		Miss:        s.Context.Miss,
		Serve:       s.Context.Serve,
		Server:      string(server),
		Winner:      s.Context.Winner,
		DoubleFault: s.Context.DoubleFault,
	}

	logs := make([]domain.PointLogEntry, 0, len(s.Logs)+1)
	logs = append(logs, entry)
	s.Logs = append(logs, s.Logs...)

	s.RallyLength = 0
	s.Context = domain.PointContext{}
}
