package websocket

import "encoding/json"

// 事件名
const (
	EventMatched    = "matched"
	EventMatchState = "match_state"
	EventError      = "error"
	EventChat       = "chat"
	EventPlayMove   = "play_move"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// IncomingMessage 客户端上行消息；From 由服务端根据连接身份填写
type IncomingMessage struct {
	From  string          `json:"from"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// PlayMoveData is the payload of a play_move event.
type PlayMoveData struct {
	MatchID string `json:"matchId"`
	Hand    int    `json:"hand"`
	Cell    int    `json:"cell"`
}

type ChatData struct {
	MatchID string `json:"matchId"`
	Text    string `json:"text"`
}
