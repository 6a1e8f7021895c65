// Package rules implements the Triple Triad placement, capture and scoring rules.
// Every function is pure: inputs are never modified and a rejected move leaves
// nothing half applied.
package rules

import (
	"errors"
	"fmt"

	"TripleTriad/internal/game/table"
)

const (
	HandSize    = 5
	TurnSeconds = 30
)

var (
	ErrInvalidMove    = errors.New("invalid move")
	ErrMatchOver      = fmt.Errorf("%w: match already finished", ErrInvalidMove)
	ErrNotYourTurn    = fmt.Errorf("%w: not your turn", ErrInvalidMove)
	ErrCellOutOfRange = fmt.Errorf("%w: cell out of range", ErrInvalidMove)
	ErrCellOccupied   = fmt.Errorf("%w: cell occupied", ErrInvalidMove)
	ErrBadHandIndex   = fmt.Errorf("%w: no card at hand index", ErrInvalidMove)
	ErrBadState       = fmt.Errorf("%w: match state has no valid current player", ErrInvalidMove)
)

// neighbor of a cell across one of its edges
type neighbor struct {
	cell int
	side table.Side
}

func neighbors(cell int) []neighbor {
	row, col := cell/3, cell%3
	out := make([]neighbor, 0, 4)
	if row > 0 {
		out = append(out, neighbor{cell - 3, table.Top})
	}
	if row < 2 {
		out = append(out, neighbor{cell + 3, table.Bottom})
	}
	if col > 0 {
		out = append(out, neighbor{cell - 1, table.Left})
	}
	if col < 2 {
		out = append(out, neighbor{cell + 1, table.Right})
	}
	return out
}

// NewMatch deals the opening hands from two ordered pools. A pool shorter than
// HandSize is padded by cycling through it from the start. The second result lists
// the players whose pool was empty; their hand stays empty.
func NewMatch(pool1, pool2 []table.Card) (table.State, []table.Player) {
	var s table.State
	var empty []table.Player
	pools := [2][]table.Card{pool1, pool2}
	for i, pool := range pools {
		p := table.Player(i + 1)
		if len(pool) == 0 {
			empty = append(empty, p)
		}
		s.Hands.Set(p, dealHand(pool))
	}
	s.CurrentPlayer = table.P1
	s.Winner = table.Undecided
	s.SecondsLeft = TurnSeconds
	return s, empty
}

func dealHand(pool []table.Card) []table.Card {
	hand := make([]table.Card, 0, HandSize)
	if len(pool) == 0 {
		return hand
	}
	for i := 0; len(hand) < HandSize; i++ {
		hand = append(hand, pool[i%len(pool)])
	}
	return hand
}

// PlayMove places hand[handIdx] of actor into cellIdx and resolves captures.
func PlayMove(s table.State, actor table.Player, handIdx, cellIdx int) (table.State, error) {
	if s.Winner.Decided() {
		return s, ErrMatchOver
	}
	if !s.CurrentPlayer.Valid() {
		return s, ErrBadState
	}
	if !actor.Valid() || actor != s.CurrentPlayer {
		return s, ErrNotYourTurn
	}
	if cellIdx < 0 || cellIdx >= table.BoardSize {
		return s, ErrCellOutOfRange
	}
	if !s.Board[cellIdx].Empty() {
		return s, ErrCellOccupied
	}
	hand := s.Hands.Of(actor)
	if handIdx < 0 || handIdx >= len(hand) {
		return s, ErrBadHandIndex
	}

	next := s.Clone()
	placed := hand[handIdx]
	next.Board[cellIdx] = table.Cell{Card: &placed, Owner: actor}
	next.Hands.Set(actor, removeAt(hand, handIdx))

	// 所有翻面都按落子前的棋盘判断，不连锁
	for _, n := range captures(s.Board, placed, actor, cellIdx) {
		next.Board[n].Owner = actor
	}

	if next.Board.Full() || next.Hands.Total() == 0 {
		next.Winner = ScoreBoard(next.Board).Winner()
		return next, nil
	}
	next.CurrentPlayer = actor.Other()
	next.SecondsLeft = TurnSeconds
	return next, nil
}

// captures lists the neighbor cells of cell that placed takes from the opponent.
func captures(before table.Board, placed table.Card, owner table.Player, cell int) []int {
	var out []int
	for _, n := range neighbors(cell) {
		target := before[n.cell]
		if target.Empty() || target.Owner == owner {
			continue
		}
		if placed.Rank(n.side) > target.Card.Rank(n.side.Opposite()) {
			out = append(out, n.cell)
		}
	}
	return out
}

// removeAt returns a new slice without index i, keeping the order of the rest.
func removeAt(cards []table.Card, i int) []table.Card {
	out := make([]table.Card, 0, len(cards)-1)
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

// FirstEmptyCell returns the lowest empty cell index, or -1 on a full board.
func FirstEmptyCell(b table.Board) int {
	for i, c := range b {
		if c.Empty() {
			return i
		}
	}
	return -1
}

// AutoPlayOnTimeout resolves a turn whose clock ran out. With a card in hand and
// an empty cell the first card goes to the first empty cell exactly as PlayMove
// would place it. Otherwise the match ends if the opponent cannot move either,
// or the turn passes without a placement.
func AutoPlayOnTimeout(s table.State) (table.State, error) {
	if s.Winner.Decided() {
		return s, ErrMatchOver
	}
	if !s.CurrentPlayer.Valid() {
		return s, ErrBadState
	}
	active := s.CurrentPlayer
	cell := FirstEmptyCell(s.Board)
	if len(s.Hands.Of(active)) > 0 && cell >= 0 {
		return PlayMove(s, active, 0, cell)
	}

	next := s.Clone()
	if cell < 0 || len(s.Hands.Of(active.Other())) == 0 {
		next.Winner = ScoreBoard(next.Board).Winner()
		return next, nil
	}
	next.CurrentPlayer = active.Other()
	next.SecondsLeft = TurnSeconds
	return next, nil
}

// Finished reports whether the match has a result.
func Finished(s table.State) bool {
	return s.Winner.Decided()
}
