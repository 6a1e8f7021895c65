package lobby

import (
	"TripleTriad/internal/game/rules"
	"TripleTriad/internal/matchstore"
)

// CreateRequest 创建对局：房主选择自己的牌组
type CreateRequest struct {
	DeckID string `json:"deckId" binding:"required"`
}

// JoinRequest 加入对局：第二位玩家选择牌组
type JoinRequest struct {
	DeckID string `json:"deckId" binding:"required"`
}

// MoveRequest 出牌；指针用于区分 0 与缺省
type MoveRequest struct {
	Hand *int `json:"hand" binding:"required"`
	Cell *int `json:"cell" binding:"required"`
}

// GameView 返回给前端的对局信息，附带当前比分
type GameView struct {
	*matchstore.Record
	Score *rules.Score `json:"score,omitempty"`
}

func viewOf(rec *matchstore.Record) GameView {
	v := GameView{Record: rec}
	if rec.State != nil {
		sc := rules.ScoreBoard(rec.State.Board)
		v.Score = &sc
	}
	return v
}
