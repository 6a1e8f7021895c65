package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"TripleTriad/internal/game/engine"
	"TripleTriad/internal/matchstore"
	"TripleTriad/internal/utils"
	"TripleTriad/internal/websocket"
)

// GameManager 管理本进程内运行的所有对局引擎
type GameManager struct {
	mu            sync.RWMutex
	engines       map[string]*engine.Engine // matchID → engine
	playerToMatch map[string]string         // player address（小写）→ matchID
	players       map[string][]string       // matchID → 双方地址
	store         matchstore.Store
	hub           websocket.HubInterface
	turnTimeout   time.Duration
}

func NewGameManager(store matchstore.Store, hub websocket.HubInterface, turnTimeout time.Duration) *GameManager {
	return &GameManager{
		engines:       make(map[string]*engine.Engine),
		playerToMatch: make(map[string]string),
		players:       make(map[string][]string),
		store:         store,
		hub:           hub,
		turnTimeout:   turnTimeout,
	}
}

// StartMatch 为一局已开始的对局创建并启动 engine
func (m *GameManager) StartMatch(rec *matchstore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.engines[rec.ID]; ok {
		return fmt.Errorf("engine for match %s exists", rec.ID)
	}

	eng := engine.NewEngine(rec.ID, m.store, m.hub, m.turnTimeout)
	eng.OnFinished = m.remove
	if err := eng.Start(context.Background()); err != nil {
		return err
	}
	m.engines[rec.ID] = eng
	m.players[rec.ID] = rec.Players()

	// ⭐ 建立玩家地址 → 对局 ID 映射
	for _, p := range rec.Players() {
		m.playerToMatch[strings.ToLower(p)] = rec.ID
	}
	utils.Print.Info("match engine started", "match", rec.ID, "players", rec.Players())
	return nil
}

func (m *GameManager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.engines, id)
	delete(m.players, id)
	for p, mid := range m.playerToMatch {
		if mid == id {
			delete(m.playerToMatch, p)
		}
	}
	utils.Print.Info("match engine removed", "match", id)
}

// engineFor 优先使用消息里的 matchId，否则用玩家最近的对局
func (m *GameManager) engineFor(matchID, player string) (*engine.Engine, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if matchID == "" {
		matchID = m.playerToMatch[strings.ToLower(player)]
	}
	return m.engines[matchID], matchID
}

// HandlePlayerMessage 统一入口（来自 Hub.OnIncoming）
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	switch msg.Event {

	case websocket.EventPlayMove:
		var data websocket.PlayMoveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			m.replyError(msg.From, "", fmt.Errorf("bad play_move payload: %w", err))
			return
		}
		eng, id := m.engineFor(data.MatchID, msg.From)
		if eng == nil {
			m.replyError(msg.From, id, fmt.Errorf("no running match"))
			return
		}
		// 交给 Engine 串行处理
		eng.EnqueueAction(msg.From, data.Hand, data.Cell)

	case websocket.EventChat:
		var data websocket.ChatData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Text == "" {
			return
		}
		// 在 Hub 协程里执行：只查内存，不访问存储
		_, id := m.engineFor(data.MatchID, msg.From)
		players := m.playersOf(id)
		if !contains(players, msg.From) {
			return
		}
		// 对局内聊天广播
		m.hub.BroadcastToPlayers(players, websocket.OutgoingMessage{
			Event: websocket.EventChat,
			Data: map[string]any{
				"matchId": id,
				"from":    msg.From,
				"text":    data.Text,
			},
		})

	default:
		utils.Print.Debug("ignored message", "from", msg.From, "event", msg.Event)
	}
}

func (m *GameManager) playersOf(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.players[id]
}

func contains(addrs []string, addr string) bool {
	for _, a := range addrs {
		if strings.EqualFold(a, addr) {
			return true
		}
	}
	return false
}

// Submit 走 HTTP 的出牌；本进程没有该对局的 engine 时直接写存储
func (m *GameManager) Submit(ctx context.Context, id, address string, hand, cell int) (*matchstore.Record, error) {
	m.mu.RLock()
	eng := m.engines[id]
	m.mu.RUnlock()
	if eng != nil {
		return eng.Play(ctx, address, hand, cell)
	}
	return engine.ApplyMove(ctx, m.store, id, address, hand, cell)
}

func (m *GameManager) replyError(to, matchID string, err error) {
	m.hub.SendToPlayer(to, websocket.OutgoingMessage{
		Event: websocket.EventError,
		Data:  map[string]any{"matchId": matchID, "error": err.Error()},
	})
}

// Running reports how many engines are alive in this process.
func (m *GameManager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.engines)
}

// Close stops every engine.
func (m *GameManager) Close() {
	m.mu.Lock()
	engines := make([]*engine.Engine, 0, len(m.engines))
	for _, e := range m.engines {
		engines = append(engines, e)
	}
	m.engines = make(map[string]*engine.Engine)
	m.playerToMatch = make(map[string]string)
	m.players = make(map[string][]string)
	m.mu.Unlock()
	for _, e := range engines {
		e.Stop()
	}
}
