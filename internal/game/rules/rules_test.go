package rules

import (
	"encoding/json"
	"math/rand"
	"testing"

	"TripleTriad/internal/game/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(id string, top, right, bottom, left uint) table.Card {
	return table.Card{ID: id, Code: id, Name: id, Top: top, Right: right, Bottom: bottom, Left: left}
}

func pool(prefix string, n int) []table.Card {
	out := make([]table.Card, 0, n)
	for i := 0; i < n; i++ {
		r := uint(i%9 + 1)
		out = append(out, card(prefix+string(rune('a'+i)), r, 10-r, r, 10-r))
	}
	return out
}

func place(s *table.State, cell int, c table.Card, owner table.Player) {
	s.Board[cell] = table.Cell{Card: &c, Owner: owner}
}

// checkInvariants 每个可观察状态都必须满足
func checkInvariants(t *testing.T, s table.State, totalCards int) {
	t.Helper()
	assert.Equal(t, totalCards, s.Board.Occupied()+s.Hands.Total(), "cards on board + in hands")
	terminal := s.Board.Full() || s.Hands.Total() == 0
	assert.Equal(t, terminal, s.Winner.Decided(), "winner set iff board full or hands empty")
	for i, c := range s.Board {
		assert.Equal(t, c.Card == nil, c.Owner == table.NoPlayer, "cell %d owner/card", i)
	}
}

func TestNewMatch(t *testing.T) {
	s, empty := NewMatch(pool("a", 7), pool("b", 5))

	assert.Empty(t, empty)
	assert.Len(t, s.Hands.Of(table.P1), HandSize)
	assert.Len(t, s.Hands.Of(table.P2), HandSize)
	assert.Equal(t, "aa", s.Hands.Of(table.P1)[0].ID)
	assert.Equal(t, "ae", s.Hands.Of(table.P1)[4].ID)
	assert.Equal(t, table.P1, s.CurrentPlayer)
	assert.Equal(t, table.Undecided, s.Winner)
	assert.Equal(t, TurnSeconds, s.SecondsLeft)
	assert.Equal(t, 0, s.Board.Occupied())
	checkInvariants(t, s, 10)
}

func TestNewMatchPadsShortPool(t *testing.T) {
	s, empty := NewMatch(pool("a", 2), pool("b", 5))

	assert.Empty(t, empty)
	ids := []string{}
	for _, c := range s.Hands.Of(table.P1) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"aa", "ab", "aa", "ab", "aa"}, ids)
}

func TestNewMatchEmptyPoolIsFlagged(t *testing.T) {
	s, empty := NewMatch(pool("a", 5), nil)

	assert.Equal(t, []table.Player{table.P2}, empty)
	assert.Empty(t, s.Hands.Of(table.P2))
	assert.Len(t, s.Hands.Of(table.P1), HandSize)

	_, both := NewMatch(nil, nil)
	assert.Equal(t, []table.Player{table.P1, table.P2}, both)
}

func TestNewMatchIsDeterministic(t *testing.T) {
	a, _ := NewMatch(pool("a", 3), pool("b", 6))
	b, _ := NewMatch(pool("a", 3), pool("b", 6))
	assert.Equal(t, a, b)
}

func TestPlayMoveRejections(t *testing.T) {
	base, _ := NewMatch(pool("a", 5), pool("b", 5))
	occupied, err := PlayMove(base, table.P1, 0, 4)
	require.NoError(t, err)

	finished := occupied.Clone()
	finished.Winner = table.Draw

	tests := []struct {
		name    string
		state   table.State
		actor   table.Player
		hand    int
		cell    int
		wantErr error
	}{
		{"match over", finished, table.P2, 0, 0, ErrMatchOver},
		{"wrong player", base, table.P2, 0, 0, ErrNotYourTurn},
		{"cell occupied", occupied, table.P2, 0, 4, ErrCellOccupied},
		{"cell below range", base, table.P1, 0, -1, ErrCellOutOfRange},
		{"cell above range", base, table.P1, 0, 9, ErrCellOutOfRange},
		{"hand index too big", base, table.P1, 5, 0, ErrBadHandIndex},
		{"negative hand index", base, table.P1, -1, 0, ErrBadHandIndex},
		{"no actor", base, table.NoPlayer, 0, 0, ErrNotYourTurn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.state.Clone()
			got, err := PlayMove(tt.state, tt.actor, tt.hand, tt.cell)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidMove)
			assert.Equal(t, before, got)
			assert.Equal(t, before, tt.state)
		})
	}
}

func TestPlayMoveRemovesCardStably(t *testing.T) {
	s, _ := NewMatch(pool("a", 5), pool("b", 5))
	next, err := PlayMove(s, table.P1, 2, 0)
	require.NoError(t, err)

	ids := []string{}
	for _, c := range next.Hands.Of(table.P1) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"aa", "ab", "ad", "ae"}, ids)
	assert.Equal(t, "ac", next.Board[0].Card.ID)
	assert.Equal(t, table.P1, next.Board[0].Owner)

	// 原状态不被修改
	assert.Len(t, s.Hands.Of(table.P1), 5)
	assert.True(t, s.Board[0].Empty())
}

func TestTurnAlternation(t *testing.T) {
	s, _ := NewMatch(pool("a", 5), pool("b", 5))
	s.SecondsLeft = 3

	next, err := PlayMove(s, table.P1, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, table.P2, next.CurrentPlayer)
	assert.Equal(t, TurnSeconds, next.SecondsLeft)
	assert.False(t, next.Winner.Decided())

	next, err = PlayMove(next, table.P2, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, table.P1, next.CurrentPlayer)
}

// Scenario A / B：玩家 1 的卡 bottom=6 落在中心，正下方是玩家 2 的卡
func TestScenarioAandB(t *testing.T) {
	tests := []struct {
		name      string
		top       uint
		wantOwner table.Player
	}{
		{"A: 6 beats 3", 3, table.P1},
		{"B: 6 ties 6", 6, table.P2},
		{"weaker never flips", 8, table.P2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := NewMatch(nil, nil)
			s.Hands.Set(table.P1, []table.Card{card("filler", 1, 1, 1, 1), card("center", 1, 1, 6, 1)})
			s.Hands.Set(table.P2, []table.Card{card("below", tt.top, 1, 1, 1), card("spare", 1, 1, 1, 1)})

			s, err := PlayMove(s, table.P1, 0, 0)
			require.NoError(t, err)
			s, err = PlayMove(s, table.P2, 0, 7)
			require.NoError(t, err)
			s, err = PlayMove(s, table.P1, 0, 4)
			require.NoError(t, err)

			assert.Equal(t, tt.wantOwner, s.Board[7].Owner)
			assert.Equal(t, "below", s.Board[7].Card.ID)
		})
	}
}

func TestCaptureEachDirection(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	place(&s, 1, card("up", 1, 1, 4, 1), table.P2)
	place(&s, 7, card("down", 4, 1, 1, 1), table.P2)
	place(&s, 3, card("left", 1, 4, 1, 1), table.P2)
	place(&s, 5, card("right", 1, 1, 1, 4), table.P2)
	s.Hands.Set(table.P1, []table.Card{card("all5", 5, 5, 5, 5)})
	s.Hands.Set(table.P2, []table.Card{card("spare", 1, 1, 1, 1)})

	next, err := PlayMove(s, table.P1, 0, 4)
	require.NoError(t, err)
	for _, cell := range []int{1, 3, 5, 7} {
		assert.Equal(t, table.P1, next.Board[cell].Owner, "cell %d", cell)
		assert.Equal(t, s.Board[cell].Card, next.Board[cell].Card, "card itself untouched")
	}
	assert.Equal(t, 5, ScoreBoard(next.Board).P1)
}

func TestCaptureSkipsOwnCardsAndEdges(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	place(&s, 0, card("mine", 1, 1, 1, 1), table.P1)
	// 2 与 0 不相邻（跨行边界不存在）
	place(&s, 2, card("wrap", 1, 1, 1, 1), table.P2)
	s.Hands.Set(table.P1, []table.Card{card("strong", 9, 9, 9, 9)})
	s.Hands.Set(table.P2, []table.Card{card("spare", 1, 1, 1, 1)})

	next, err := PlayMove(s, table.P1, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, table.P2, next.Board[2].Owner)
	assert.Equal(t, table.P1, next.Board[0].Owner)
}

func TestCapturesDoNotCascade(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	// 1 会被翻；若连锁，1 的 left=9 会继续吃掉 0（right=1）
	place(&s, 1, card("bridge", 1, 1, 2, 9), table.P2)
	place(&s, 0, card("corner", 1, 1, 1, 1), table.P2)
	s.Hands.Set(table.P1, []table.Card{card("center", 5, 1, 1, 1)})
	s.Hands.Set(table.P2, []table.Card{card("spare", 1, 1, 1, 1)})

	next, err := PlayMove(s, table.P1, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, table.P1, next.Board[1].Owner)
	assert.Equal(t, table.P2, next.Board[0].Owner)
}

func TestCapturesUsePreMoveOwnership(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P2
	place(&s, 3, card("left", 1, 2, 1, 1), table.P1)
	place(&s, 5, card("right", 1, 1, 1, 2), table.P1)
	s.Hands.Set(table.P1, []table.Card{card("spare", 1, 1, 1, 1)})
	s.Hands.Set(table.P2, []table.Card{card("both", 1, 3, 1, 3)})

	next, err := PlayMove(s, table.P2, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, table.P2, next.Board[3].Owner)
	assert.Equal(t, table.P2, next.Board[5].Owner)
	assert.Equal(t, Score{P1: 0, P2: 3}, ScoreBoard(next.Board))
}

// Scenario C：八格已满 4:4，玩家 1 下最后一格
func TestFinalMoveDecidesWinner(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	weak := card("w", 1, 1, 1, 1)
	for _, c := range []int{0, 1, 5, 7} {
		place(&s, c, weak, table.P1)
	}
	for _, c := range []int{2, 3, 4, 6} {
		place(&s, c, weak, table.P2)
	}
	s.Hands.Set(table.P1, []table.Card{card("last", 1, 1, 1, 1)})
	s.Hands.Set(table.P2, []table.Card{card("unused", 1, 1, 1, 1)})
	checkInvariants(t, s, 10)

	next, err := PlayMove(s, table.P1, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, Score{P1: 5, P2: 4}, ScoreBoard(next.Board))
	assert.Equal(t, table.WinnerP1, next.Winner)
	assert.Equal(t, table.P1, next.CurrentPlayer)
	checkInvariants(t, next, 10)

	_, err = PlayMove(next, table.P2, 0, 0)
	assert.ErrorIs(t, err, ErrMatchOver)
}

func TestDrawOnEqualScore(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P2
	weak := card("w", 1, 1, 1, 1)
	for _, c := range []int{0, 1, 2, 3} {
		place(&s, c, weak, table.P1)
	}
	for _, c := range []int{4, 5, 6} {
		place(&s, c, weak, table.P2)
	}
	s.Hands.Set(table.P2, []table.Card{weak})

	next, err := PlayMove(s, table.P2, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, table.Draw, next.Winner)
	assert.Equal(t, 8, next.Board.Occupied())
}

// Scenario D：手牌同时打空，棋盘还剩空格
func TestBothHandsEmptyEndsMatch(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	weak := card("w", 1, 1, 1, 1)
	for _, c := range []int{0, 1, 2} {
		place(&s, c, weak, table.P1)
	}
	for _, c := range []int{3, 4, 5, 6} {
		place(&s, c, weak, table.P2)
	}
	s.Hands.Set(table.P1, []table.Card{weak})
	s.Hands.Set(table.P2, nil)

	next, err := PlayMove(s, table.P1, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, 8, next.Board.Occupied())
	assert.Equal(t, 8, FirstEmptyCell(next.Board))
	assert.Equal(t, table.Draw, next.Winner)

	_, err = AutoPlayOnTimeout(next)
	assert.ErrorIs(t, err, ErrMatchOver)
}

// Scenario E：超时自动出第一张到最小空格
func TestAutoPlayMatchesManualMove(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P2
	weak := card("w", 1, 1, 1, 1)
	for _, c := range []int{0, 1, 3, 4, 6, 8} {
		place(&s, c, weak, table.Player(c%2+1))
	}
	s.Hands.Set(table.P1, []table.Card{weak, weak})
	s.Hands.Set(table.P2, []table.Card{card("first", 9, 9, 9, 9), card("second", 2, 2, 2, 2)})
	s.SecondsLeft = 0

	auto, err := AutoPlayOnTimeout(s)
	require.NoError(t, err)
	manual, err := PlayMove(s, table.P2, 0, 2)
	require.NoError(t, err)

	assert.Equal(t, manual, auto)
	assert.Equal(t, "first", auto.Board[2].Card.ID)
	assert.Equal(t, table.P1, auto.CurrentPlayer)
	assert.Equal(t, TurnSeconds, auto.SecondsLeft)
}

func TestAutoPlayPassesWithEmptyHand(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P2
	weak := card("w", 1, 1, 1, 1)
	place(&s, 0, weak, table.P1)
	s.Hands.Set(table.P1, []table.Card{weak, weak})
	s.SecondsLeft = 0

	next, err := AutoPlayOnTimeout(s)
	require.NoError(t, err)
	assert.Equal(t, table.P1, next.CurrentPlayer)
	assert.Equal(t, TurnSeconds, next.SecondsLeft)
	assert.False(t, next.Winner.Decided())
	assert.Equal(t, s.Board, next.Board)
}

func TestAutoPlayFinishesWhenNobodyCanMove(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	weak := card("w", 1, 1, 1, 1)
	place(&s, 0, weak, table.P2)
	place(&s, 1, weak, table.P2)
	place(&s, 2, weak, table.P1)

	next, err := AutoPlayOnTimeout(s)
	require.NoError(t, err)
	assert.Equal(t, table.WinnerP2, next.Winner)
	assert.Equal(t, table.P1, next.CurrentPlayer)
}

// 棋盘已满但仍有手牌：只能由填充手牌的异常路径到达
func TestAutoPlayFullBoardWithCardsInHand(t *testing.T) {
	var s table.State
	s.CurrentPlayer = table.P1
	weak := card("w", 1, 1, 1, 1)
	for c := 0; c < table.BoardSize; c++ {
		owner := table.P1
		if c < 4 {
			owner = table.P2
		}
		place(&s, c, weak, owner)
	}
	s.Hands.Set(table.P1, []table.Card{weak})
	s.Hands.Set(table.P2, []table.Card{weak})

	next, err := AutoPlayOnTimeout(s)
	require.NoError(t, err)
	assert.Equal(t, table.WinnerP1, next.Winner)
	assert.Equal(t, s.Hands, next.Hands)
}

func TestPlayMoveIsDeterministic(t *testing.T) {
	s, _ := NewMatch(pool("a", 5), pool("b", 5))
	a, errA := PlayMove(s, table.P1, 1, 4)
	b, errB := PlayMove(s, table.P1, 1, 4)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
	assert.NotSame(t, a.Board[4].Card, b.Board[4].Card)
}

func TestRandomPlaythroughKeepsInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for game := 0; game < 50; game++ {
		s, _ := NewMatch(pool("a", 1+rnd.Intn(8)), pool("b", 1+rnd.Intn(8)))
		checkInvariants(t, s, 10)
		for turn := 0; !Finished(s); turn++ {
			require.Less(t, turn, 20, "match must end")
			var err error
			if rnd.Intn(4) == 0 || len(s.Hands.Of(s.CurrentPlayer)) == 0 {
				s, err = AutoPlayOnTimeout(s)
			} else {
				hand := s.Hands.Of(s.CurrentPlayer)
				empty := []int{}
				for i, c := range s.Board {
					if c.Empty() {
						empty = append(empty, i)
					}
				}
				s, err = PlayMove(s, s.CurrentPlayer, rnd.Intn(len(hand)), empty[rnd.Intn(len(empty))])
			}
			require.NoError(t, err)
			checkInvariants(t, s, 10)
		}
		sc := ScoreBoard(s.Board)
		assert.Equal(t, 9, sc.P1+sc.P2)
		assert.Equal(t, sc.Winner(), s.Winner)
	}
}

func TestScoreBoard(t *testing.T) {
	var b table.Board
	assert.Equal(t, Score{}, ScoreBoard(b))
	assert.Equal(t, table.Draw, ScoreBoard(b).Winner())

	w := card("w", 1, 1, 1, 1)
	b[0] = table.Cell{Card: &w, Owner: table.P2}
	b[8] = table.Cell{Card: &w, Owner: table.P2}
	b[4] = table.Cell{Card: &w, Owner: table.P1}
	assert.Equal(t, Score{P1: 1, P2: 2}, ScoreBoard(b))
	assert.Equal(t, table.WinnerP2, ScoreBoard(b).Winner())
}

// 存储里的坏状态（currentPlayer 为 null）必须被拒绝，不能 panic
func TestNullCurrentPlayerIsRejected(t *testing.T) {
	raw := `{
		"board": [{"card":null,"owner":null},{"card":null,"owner":null},{"card":null,"owner":null},
		          {"card":null,"owner":null},{"card":null,"owner":null},{"card":null,"owner":null},
		          {"card":null,"owner":null},{"card":null,"owner":null},{"card":null,"owner":null}],
		"hands": {"1": [{"id":"a","value_top":5,"value_right":5,"value_bottom":5,"value_left":5}], "2": []},
		"currentPlayer": null,
		"winner": null,
		"secondsLeft": 30
	}`
	var s table.State
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.Equal(t, table.NoPlayer, s.CurrentPlayer)

	got, err := AutoPlayOnTimeout(s)
	assert.ErrorIs(t, err, ErrBadState)
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, s, got)

	for _, actor := range []table.Player{table.NoPlayer, table.P1, table.P2} {
		_, err = PlayMove(s, actor, 0, 0)
		assert.ErrorIs(t, err, ErrBadState, "actor %d", actor)
	}

	assert.Nil(t, s.Hands.Of(table.NoPlayer))
}
