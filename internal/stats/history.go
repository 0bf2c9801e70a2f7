package stats

import (
	"sort"
	"strconv"

	"gtstats/internal/domain"
)

// SortByRecency orders records newest first by match date, then creation
// time. Records without a match date fall back to their creation date.
// The store gives no ordering guarantee, so callers sort before picking
// the latest record or building history views.
func SortByRecency(records []*domain.GameRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := records[i].DisplayDate(), records[j].DisplayDate()
		if di != dj {
			return di > dj
		}
		return records[i].CreatedAt > records[j].CreatedAt
	})
}

// Latest returns the most recent record, or nil for an empty history.
func Latest(records []*domain.GameRecord) *domain.GameRecord {
	if len(records) == 0 {
		return nil
	}
	sorted := make([]*domain.GameRecord, len(records))
	copy(sorted, records)
	SortByRecency(sorted)
	return sorted[0]
}

// HistorySummary aggregates resolved metrics across saved matches.
type HistorySummary struct {
	Matches int `json:"matches"`

	GamesWon       int `json:"gamesWon"`
	GamesLost      int `json:"gamesLost"`
	GameWinPercent int `json:"gameWinPercent"`

	PointsWon        int `json:"pointsWon"`
	PointsLost       int `json:"pointsLost"`
	PercentPointsWon int `json:"percentPointsWon"`

	Winners      int `json:"winners"`
	Errors       int `json:"errors"`
	Aces         int `json:"aces"`
	DoubleFaults int `json:"doubleFaults"`

	ServePoints           int `json:"servePoints"`
	FirstServeInPercent   int `json:"firstServeInPercent"`
	SecondServeInPercent  int `json:"secondServeInPercent"`
	FirstServeWonPercent  int `json:"firstServeWonPercent"`
	SecondServeWonPercent int `json:"secondServeWonPercent"`
}

// Summarize totals the history. Each record contributes its stored metrics
// when present, so older matches keep the numbers they were saved with.
func Summarize(records []*domain.GameRecord) HistorySummary {
	var sum HistorySummary
	var firstIn, secondIn, firstWon, secondWon int

	for _, r := range records {
		m := Resolve(r)
		sum.Matches++
		sum.GamesWon += m.GamesWon
		sum.GamesLost += m.GamesLost
		sum.PointsWon += m.PointsWon
		sum.PointsLost += m.PointsLost
		sum.Winners += m.Winners
		sum.Errors += m.Errors
		sum.Aces += m.Aces
		sum.DoubleFaults += m.DoubleFaults
		sum.ServePoints += m.ServePoints
		firstIn += m.FirstServeIn
		secondIn += m.SecondServeIn
		firstWon += m.FirstServeWon
		secondWon += m.SecondServeWon
	}

	sum.GameWinPercent = Percent(sum.GamesWon, sum.GamesWon+sum.GamesLost)
	sum.PercentPointsWon = Percent(sum.PointsWon, sum.PointsWon+sum.PointsLost)
	sum.FirstServeInPercent = Percent(firstIn, sum.ServePoints)
	sum.SecondServeInPercent = Percent(secondIn, sum.ServePoints)
	sum.FirstServeWonPercent = Percent(firstWon, sum.ServePoints)
	sum.SecondServeWonPercent = Percent(secondWon, sum.ServePoints)
	return sum
}

// SeriesPoint is one match in the history charts.
type SeriesPoint struct {
	ID           string `json:"id,omitempty"`
	Label        string `json:"label"`
	PointsWon    int    `json:"pointsWon"`
	PointsLost   int    `json:"pointsLost"`
	Winners      int    `json:"winners"`
	Errors       int    `json:"errors"`
	Aces         int    `json:"aces"`
	DoubleFaults int    `json:"doubleFaults"`
}

// Series returns chart data for records in the order given.
func Series(records []*domain.GameRecord) []SeriesPoint {
	series := make([]SeriesPoint, 0, len(records))
	for _, r := range records {
		points := PointBreakdown(r)
		series = append(series, SeriesPoint{
			ID:           r.ID,
			Label:        r.DisplayDate(),
			PointsWon:    points.Won,
			PointsLost:   points.Lost,
			Winners:      r.Totals.Winners,
			Errors:       r.Totals.Errors,
			Aces:         r.Winners.Aces,
			DoubleFaults: r.Special.DoubleFault,
		})
	}
	return series
}

// Card is one labelled figure on the match snapshot panel.
type Card struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Cards returns the snapshot panel for a single record.
func Cards(r *domain.GameRecord) []Card {
	itoa := strconv.Itoa
	return []Card{
		{Label: "Final Score", Value: FinalPointScore(r.Score)},
		{Label: "Games Won", Value: itoa(r.Score.GamesWon)},
		{Label: "Games Lost", Value: itoa(r.Score.GamesLost)},
		{Label: "Winners", Value: itoa(r.Totals.Winners)},
		{Label: "Errors", Value: itoa(r.Totals.Errors)},
		{Label: "Aces", Value: itoa(r.Winners.Aces)},
		{Label: "Double Faults", Value: itoa(r.Special.DoubleFault)},
		{Label: "Opponent Winners", Value: itoa(r.Special.OpponentWinner)},
	}
}
