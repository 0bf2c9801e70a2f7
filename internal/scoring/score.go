// Package scoring turns operator actions into a tennis score and an
// attributed point log. All mutation of a live match goes through Dispatcher.
package scoring

import (
	"fmt"

	"gtstats/internal/domain"
)

// Labels used by FormatScore once both sides reach 40.
const (
	AdvantageLabel    = "AD"
	DisadvantageLabel = ""
)

var pointLadder = [...]string{"0", "15", "30", "40"}

// ScorePoint credits one point to side and closes the game when a side has
// at least four points and leads by two. It reports whether a game ended.
func ScorePoint(s *domain.MatchState, side domain.Side) bool {
	if side == domain.SidePlayer {
		s.Score.PointsWon++
	} else {
		s.Score.PointsLost++
	}

	lead := s.Score.PointsWon - s.Score.PointsLost
	if s.Score.PointsWon < 4 && s.Score.PointsLost < 4 {
		return false
	}
	if lead < 2 && lead > -2 {
		return false
	}

	if lead > 0 {
		s.Score.GamesWon++
	} else {
		s.Score.GamesLost++
	}
	s.Score.PointsWon = 0
	s.Score.PointsLost = 0
	s.Serving = !s.Serving
	return true
}

// FormatScore renders one side's point count as seen on a scoreboard.
func FormatScore(pointsFor, pointsAgainst int) string {
	if pointsFor >= 3 && pointsAgainst >= 3 {
		switch pointsFor - pointsAgainst {
		case 0:
			return "40"
		case 1:
			return AdvantageLabel
		case -1:
			return DisadvantageLabel
		}
	}

	idx := pointsFor
	if idx > 3 {
		idx = 3
	}
	if idx < 0 {
		idx = 0
	}
	return pointLadder[idx]
}

// ScoreLabel renders the score of the current game from the player's side,
// e.g. "30-15" or "AD-40". A zeroed game after a concluded point shows the
// new game tally instead.
func ScoreLabel(score domain.Score) string {
	if score.PointsWon == 0 && score.PointsLost == 0 && score.GamesWon+score.GamesLost > 0 {
		return fmt.Sprintf("Game %d-%d", score.GamesWon, score.GamesLost)
	}
	return sideLabel(score.PointsWon, score.PointsLost) + "-" + sideLabel(score.PointsLost, score.PointsWon)
}

func sideLabel(pointsFor, pointsAgainst int) string {
	label := FormatScore(pointsFor, pointsAgainst)
	if label == DisadvantageLabel {
		return "40"
	}
	return label
}
