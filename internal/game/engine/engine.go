package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"TripleTriad/internal/game/rules"
	"TripleTriad/internal/game/table"
	"TripleTriad/internal/matchstore"
	"TripleTriad/internal/utils"
	"TripleTriad/internal/websocket"
)

var (
	ErrNotInMatch = errors.New("player is not part of this match")
	ErrNotStarted = errors.New("match has not started")
	ErrStopped    = errors.New("engine stopped")
)

// ---------------------
//   ACTION DEFINITION
// ---------------------

type actionKind int

const (
	actPlay     actionKind = iota // 玩家出牌
	actTimeout                    // 回合超时（带版本号）
	actObserved                   // 存储层通知的新记录
)

type Action struct {
	kind    actionKind
	Player  string
	Hand    int
	Cell    int
	version int64
	record  *matchstore.Record
	reply   chan moveResult
}

type moveResult struct {
	rec *matchstore.Record
	err error
}

// StateView match_state 事件的负载
type StateView struct {
	MatchID    string            `json:"matchId"`
	Version    int64             `json:"version"`
	Status     matchstore.Status `json:"status"`
	Players    []string          `json:"players"`
	State      *table.State      `json:"state"`
	Score      rules.Score       `json:"score"`
	TurnEndsAt int64             `json:"turnEndsAt,omitempty"` // unix ms
}

// ---------------------
//       ENGINE
// ---------------------

// Engine 每个进行中的对局一个：串行处理出牌、超时与外部变更
type Engine struct {
	ID          string
	Store       matchstore.Store
	Hub         websocket.HubInterface
	TurnTimeout time.Duration
	OnFinished  func(id string)

	actionChan  chan Action
	stop        chan struct{}
	stopOnce    sync.Once
	unsubscribe func()

	// 以下字段只在 actionLoop 中访问
	lastVersion int64
	players     []string
	finished    bool
	finishing   bool
	timer       *time.Timer
	now         func() time.Time
}

func NewEngine(id string, store matchstore.Store, hub websocket.HubInterface, turnTimeout time.Duration) *Engine {
	if turnTimeout <= 0 {
		turnTimeout = rules.TurnSeconds * time.Second
	}
	return &Engine{
		ID:          id,
		Store:       store,
		Hub:         hub,
		TurnTimeout: turnTimeout,
		actionChan:  make(chan Action, 32), // 防止死锁
		stop:        make(chan struct{}),
		now:         time.Now,
	}
}

// Start 订阅变更、推送当前状态并启动 action loop
func (e *Engine) Start(ctx context.Context) error {
	changes, cancel, err := e.Store.Subscribe(ctx, e.ID)
	if err != nil {
		return err
	}
	rec, err := e.Store.Load(ctx, e.ID)
	if err != nil {
		cancel()
		return err
	}
	e.unsubscribe = cancel

	go e.forward(changes)
	go e.actionLoop()
	e.enqueue(Action{kind: actObserved, record: rec})
	return nil
}

// 订阅通道 -> action 队列
func (e *Engine) forward(changes <-chan *matchstore.Record) {
	for {
		select {
		case rec, ok := <-changes:
			if !ok {
				return
			}
			e.enqueue(Action{kind: actObserved, record: rec})
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) enqueue(a Action) bool {
	if e.Stopped() {
		return false
	}
	select {
	case e.actionChan <- a:
		return true
	case <-e.stop:
		return false
	}
}

// 动作循环：所有状态变更都在这里串行执行
func (e *Engine) actionLoop() {
	defer func() {
		if e.timer != nil {
			e.timer.Stop()
		}
	}()
	for {
		select {
		case a := <-e.actionChan:
			e.handleAction(a)
		case <-e.stop:
			return
		}
	}
}

func (e *Engine) handleAction(a Action) {
	ctx := context.Background()
	defer func() {
		// 回复发出之后再停止引擎
		if e.finished && !e.finishing {
			e.finishing = true
			go e.finish()
		}
	}()
	switch a.kind {
	case actObserved:
		e.observe(a.record)

	case actPlay:
		rec, err := ApplyMove(ctx, e.Store, e.ID, a.Player, a.Hand, a.Cell)
		if err == nil {
			e.observe(rec)
		} else {
			utils.Print.Debug("move rejected", "match", e.ID, "player", a.Player, "err", err)
			e.sendError(a.Player, err)
		}
		if a.reply != nil {
			a.reply <- moveResult{rec: rec, err: err}
		}

	case actTimeout:
		rec, err := applyTimeout(ctx, e.Store, e.ID, a.version)
		switch {
		case err == nil && rec != nil:
			utils.Print.Info("turn timed out, auto play", "match", e.ID, "version", a.version)
			e.observe(rec)
		case errors.Is(err, matchstore.ErrVersionConflict):
			// 期间已有出牌，新的计时器会接管
		case err != nil:
			utils.Print.Error("timeout handling failed", "match", e.ID, "err", err)
		}
	}
}

// observe 处理一个新版本：推送给双方并重置回合计时；旧版本忽略
func (e *Engine) observe(rec *matchstore.Record) {
	if rec == nil || rec.Version <= e.lastVersion {
		return
	}
	e.lastVersion = rec.Version
	e.players = rec.Players()

	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}

	view := StateView{
		MatchID: rec.ID,
		Version: rec.Version,
		Status:  rec.Status,
		Players: e.players,
		State:   rec.State,
	}
	if rec.State != nil {
		view.Score = rules.ScoreBoard(rec.State.Board)
	}

	if rec.Status == matchstore.StatusActive && rec.State != nil && !rules.Finished(*rec.State) {
		version := rec.Version
		view.TurnEndsAt = e.now().Add(e.TurnTimeout).UnixMilli()
		e.timer = time.AfterFunc(e.TurnTimeout, func() {
			e.enqueue(Action{kind: actTimeout, version: version})
		})
	}

	e.Hub.BroadcastToPlayers(e.players, websocket.OutgoingMessage{
		Event: websocket.EventMatchState,
		Data:  view,
	})

	if rec.Status == matchstore.StatusFinished {
		utils.Print.Info("match finished", "match", rec.ID, "winner", rec.State.Winner.String(),
			"score1", view.Score.P1, "score2", view.Score.P2)
		e.finished = true
	}
}

func (e *Engine) finish() {
	e.Stop()
	if e.OnFinished != nil {
		e.OnFinished(e.ID)
	}
}

func (e *Engine) sendError(player string, err error) {
	e.Hub.SendToPlayer(player, websocket.OutgoingMessage{
		Event: websocket.EventError,
		Data: map[string]any{
			"matchId": e.ID,
			"error":   err.Error(),
		},
	})
}

// 玩家动作入口（GameManager 调用），结果通过 Hub 推送
func (e *Engine) EnqueueAction(player string, hand, cell int) {
	e.enqueue(Action{kind: actPlay, Player: player, Hand: hand, Cell: cell})
}

// Play 同步出牌，供 HTTP 调用
func (e *Engine) Play(ctx context.Context, player string, hand, cell int) (*matchstore.Record, error) {
	reply := make(chan moveResult, 1)
	if !e.enqueue(Action{kind: actPlay, Player: player, Hand: hand, Cell: cell, reply: reply}) {
		return nil, ErrStopped
	}
	select {
	case r := <-reply:
		return r.rec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.stop:
		select {
		case r := <-reply:
			return r.rec, r.err
		default:
			return nil, ErrStopped
		}
	}
}

func (e *Engine) Stopped() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

// Stop 结束引擎；可重复调用
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stop)
		if e.unsubscribe != nil {
			e.unsubscribe()
		}
	})
}

// --------------------------
//      存储层上的规则应用
// --------------------------

// ApplyMove loads the match, applies one move for address and saves it. Any
// process may call it; the store's version check lets exactly one writer win.
func ApplyMove(ctx context.Context, store matchstore.Store, id, address string, hand, cell int) (*matchstore.Record, error) {
	rec, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	seat := rec.PlayerOf(address)
	if seat == table.NoPlayer {
		return nil, ErrNotInMatch
	}
	if rec.State == nil {
		return nil, ErrNotStarted
	}
	next, err := rules.PlayMove(*rec.State, seat, hand, cell)
	if err != nil {
		return nil, err
	}
	return commit(ctx, store, rec, next)
}

// applyTimeout 仅当记录仍是计时器启动时的版本才执行自动出牌；否则返回 (nil, nil)
func applyTimeout(ctx context.Context, store matchstore.Store, id string, version int64) (*matchstore.Record, error) {
	rec, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Version != version || rec.Status != matchstore.StatusActive || rec.State == nil {
		return nil, nil
	}
	next, err := rules.AutoPlayOnTimeout(*rec.State)
	if err != nil {
		return nil, err
	}
	return commit(ctx, store, rec, next)
}

func commit(ctx context.Context, store matchstore.Store, rec *matchstore.Record, next table.State) (*matchstore.Record, error) {
	rec.State = &next
	if rules.Finished(next) {
		rec.Status = matchstore.StatusFinished
	}
	if err := store.Save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}
