package rules

import "TripleTriad/internal/game/table"

// Score counts owned cells per player.
type Score struct {
	P1 int `json:"score1"`
	P2 int `json:"score2"`
}

// ScoreBoard counts the cells owned by each player. Empty cells count for nobody.
func ScoreBoard(b table.Board) Score {
	var sc Score
	for _, c := range b {
		switch c.Owner {
		case table.P1:
			sc.P1++
		case table.P2:
			sc.P2++
		}
	}
	return sc
}

// Winner compares the two counts; equal counts are a draw.
func (sc Score) Winner() table.Winner {
	switch {
	case sc.P1 > sc.P2:
		return table.WinnerP1
	case sc.P2 > sc.P1:
		return table.WinnerP2
	default:
		return table.Draw
	}
}
