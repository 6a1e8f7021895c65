package table

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Player 只有两个座位：1 和 2，零值表示“无人”
type Player int

const (
	NoPlayer Player = 0
	P1       Player = 1
	P2       Player = 2
)

// Other returns the opponent seat.
func (p Player) Other() Player {
	if p == P1 {
		return P2
	}
	return P1
}

func (p Player) Valid() bool {
	return p == P1 || p == P2
}

// MarshalJSON encodes NoPlayer as null so cells keep the stored shape {"owner": null}.
func (p Player) MarshalJSON() ([]byte, error) {
	if p == NoPlayer {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("%d", int(p))), nil
}

func (p *Player) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*p = NoPlayer
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	if n != int(P1) && n != int(P2) {
		return fmt.Errorf("player: invalid seat %d", n)
	}
	*p = Player(n)
	return nil
}

// Card 卡牌目录条目，对局中只读
type Card struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Level     int     `json:"level"`
	Cost      int     `json:"cost"`
	Top       uint    `json:"value_top"`
	Right     uint    `json:"value_right"`
	Bottom    uint    `json:"value_bottom"`
	Left      uint    `json:"value_left"`
	ImageName *string `json:"image_name"`
}

func (c Card) String() string {
	return fmtCard(c)
}

func fmtCard(c Card) string {
	name := c.Name
	if name == "" {
		name = c.Code
	}
	return fmt.Sprintf("%s[%d/%d/%d/%d]", name, c.Top, c.Right, c.Bottom, c.Left)
}

// Side is one of the four edges of a card.
type Side int

const (
	Top Side = iota
	Right
	Bottom
	Left
)

// Opposite returns the edge that faces this one on an adjacent card.
func (s Side) Opposite() Side {
	return (s + 2) % 4
}

// Rank returns the capture rank printed on the given edge.
func (c Card) Rank(s Side) uint {
	switch s {
	case Top:
		return c.Top
	case Right:
		return c.Right
	case Bottom:
		return c.Bottom
	default:
		return c.Left
	}
}

// Cell 棋盘格：Card 与 Owner 同时为空或同时非空
type Cell struct {
	Card  *Card  `json:"card"`
	Owner Player `json:"owner"`
}

func (c Cell) Empty() bool {
	return c.Card == nil
}

const BoardSize = 9

// Board 3x3，行优先：0 左上，8 右下
type Board [BoardSize]Cell

// Hands 每位玩家剩余手牌；JSON 形如 {"1": [...], "2": [...]}
type Hands [2][]Card

// Of returns the hand of p; NoPlayer has no hand.
func (h Hands) Of(p Player) []Card {
	if !p.Valid() {
		return nil
	}
	return h[p-1]
}

func (h *Hands) Set(p Player, cards []Card) {
	if p.Valid() {
		h[p-1] = cards
	}
}

// Total counts the cards still held by both players.
func (h Hands) Total() int {
	return len(h[0]) + len(h[1])
}

type handsJSON struct {
	One []Card `json:"1"`
	Two []Card `json:"2"`
}

func (h Hands) MarshalJSON() ([]byte, error) {
	one, two := h[0], h[1]
	if one == nil {
		one = []Card{}
	}
	if two == nil {
		two = []Card{}
	}
	return json.Marshal(handsJSON{One: one, Two: two})
}

func (h *Hands) UnmarshalJSON(b []byte) error {
	var v handsJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	h[0], h[1] = v.One, v.Two
	return nil
}

// Winner 终局标记
type Winner int

const (
	Undecided Winner = iota
	WinnerP1
	WinnerP2
	Draw
)

// WinnerOf maps a seat to its winning result.
func WinnerOf(p Player) Winner {
	if p == P1 {
		return WinnerP1
	}
	return WinnerP2
}

func (w Winner) Decided() bool {
	return w != Undecided
}

func (w Winner) String() string {
	switch w {
	case WinnerP1:
		return "1"
	case WinnerP2:
		return "2"
	case Draw:
		return "draw"
	default:
		return "none"
	}
}

func (w Winner) MarshalJSON() ([]byte, error) {
	switch w {
	case WinnerP1:
		return []byte("1"), nil
	case WinnerP2:
		return []byte("2"), nil
	case Draw:
		return []byte(`"draw"`), nil
	default:
		return []byte("null"), nil
	}
}

func (w *Winner) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "null":
		*w = Undecided
	case "1":
		*w = WinnerP1
	case "2":
		*w = WinnerP2
	case `"draw"`:
		*w = Draw
	default:
		return fmt.Errorf("winner: unexpected value %s", b)
	}
	return nil
}

// State 一局游戏的完整状态，持久化时保持此结构
type State struct {
	Board         Board  `json:"board"`
	Hands         Hands  `json:"hands"`
	CurrentPlayer Player `json:"currentPlayer"`
	Winner        Winner `json:"winner"`
	SecondsLeft   int    `json:"secondsLeft"`
}

// Clone returns a copy that shares no slices with s. Cards are shared, they are immutable.
func (s State) Clone() State {
	out := s
	for i := range s.Hands {
		if s.Hands[i] != nil {
			out.Hands[i] = append(make([]Card, 0, len(s.Hands[i])), s.Hands[i]...)
		}
	}
	return out
}

// Occupied counts the cells holding a card.
func (b Board) Occupied() int {
	n := 0
	for _, c := range b {
		if !c.Empty() {
			n++
		}
	}
	return n
}

func (b Board) Full() bool {
	return b.Occupied() == BoardSize
}
