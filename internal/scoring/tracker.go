package scoring

import "gtstats/internal/domain"

// RecordServeOutcome books a concluded serve point. It is a no-op unless the
// player is serving, and must run before the point context is cleared since
// it reads FirstServeMissed.
func RecordServeOutcome(s *domain.MatchState, side domain.Side) {
	if !s.Serving {
		return
	}
	s.Serve.ServePoints++
	if side != domain.SidePlayer {
		return
	}
	if s.Context.FirstServeMissed {
		s.Serve.SecondServeWon++
	} else {
		s.Serve.FirstServeWon++
	}
}

// recordPointWon splits a point won by the player into serve or return.
func recordPointWon(s *domain.MatchState) {
	if s.Serving {
		s.Points.ServeWon++
	} else {
		s.Points.ReturnWon++
	}
}

// IncrementRally counts one more shot in the open point.
func IncrementRally(s *domain.MatchState) {
	s.RallyLength++
}

// ResetRally zeroes the rally without concluding the point.
func ResetRally(s *domain.MatchState) {
	s.RallyLength = 0
}

// serveMissed records a missed first or second serve.
func serveMissed(s *domain.MatchState, second bool) {
	if second {
		if s.Serving {
			s.Serve.SecondAttempt++
		}
		s.Context.Serve = "2nd serve missed"
	} else {
		if s.Serving {
			s.Serve.FirstAttempt++
		}
		s.Context.Serve = "1st serve missed"
	}
	s.Context.FirstServeMissed = true
}

// serveIn records a first or second serve landing in.
func serveIn(s *domain.MatchState, second bool) {
	if second {
		if s.Serving {
			s.Serve.SecondServeIn++
		}
		s.Context.Serve = "2nd serve in"
		s.Context.FirstServeMissed = true
		return
	}
	if s.Serving {
		s.Serve.FirstServeIn++
	}
	s.Context.Serve = "1st serve in"
}
