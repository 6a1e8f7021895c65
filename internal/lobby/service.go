package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"TripleTriad/internal/catalog"
	"TripleTriad/internal/game/rules"
	"TripleTriad/internal/game/table"
	"TripleTriad/internal/matchstore"
	"TripleTriad/internal/utils"
	"TripleTriad/internal/websocket"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrAlreadyStarted = errors.New("game already started")
	ErrSamePlayer     = errors.New("cannot join your own game")
)

// DeckSource 牌组查询 + 牌组 -> 有序卡池（catalog.Repo 实现）
type DeckSource interface {
	Deck(ctx context.Context, id string) (*catalog.Deck, error)
	DeckCards(ctx context.Context, deckID string) ([]table.Card, error)
}

type HubBroadcaster interface {
	BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage)
}

type Service struct {
	store        matchstore.Store
	decks        DeckSource
	hub          HubBroadcaster
	OnMatchReady func(*matchstore.Record) // ✅ 双方到齐时调用
}

func NewService(store matchstore.Store, decks DeckSource, hub HubBroadcaster) *Service {
	return &Service{store: store, decks: decks, hub: hub}
}

// Create 房主建局，状态为 waiting，等待第二位玩家
func (s *Service) Create(ctx context.Context, address, deckID string) (*matchstore.Record, error) {
	// 只确认牌组存在；发牌（及洗牌）留到 Join
	if _, err := s.decks.Deck(ctx, deckID); err != nil {
		return nil, err
	}
	rec := &matchstore.Record{
		ID:       uuid.NewString(),
		DeckP1:   deckID,
		PlayerP1: address,
		Status:   matchstore.StatusWaiting,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}
	utils.Print.Info("game created", "match", rec.ID, "player", address, "deck", deckID)
	return rec, nil
}

// Join 第二位玩家入局：两副牌组发牌，对局进入 active
func (s *Service) Join(ctx context.Context, id, address, deckID string) (*matchstore.Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != matchstore.StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if strings.EqualFold(rec.PlayerP1, address) {
		return nil, ErrSamePlayer
	}

	pool1, err := s.decks.DeckCards(ctx, rec.DeckP1)
	if err != nil {
		return nil, fmt.Errorf("deck of player 1: %w", err)
	}
	pool2, err := s.decks.DeckCards(ctx, deckID)
	if err != nil {
		return nil, err
	}

	st, empty := rules.NewMatch(pool1, pool2)
	for _, p := range empty {
		utils.Print.Warn("empty deck, player starts without cards", "match", id, "player", int(p))
	}

	rec.PlayerP2 = address
	rec.DeckP2 = deckID
	rec.Status = matchstore.StatusActive
	rec.State = &st
	if err := s.store.Save(ctx, rec); err != nil {
		if errors.Is(err, matchstore.ErrVersionConflict) {
			// 另一位玩家抢先加入
			return nil, ErrAlreadyStarted
		}
		return nil, err
	}
	utils.Print.Info("game started", "match", id, "p1", rec.PlayerP1, "p2", rec.PlayerP2)

	s.hub.BroadcastToPlayers(rec.Players(), websocket.OutgoingMessage{
		Event: websocket.EventMatched,
		Data: map[string]any{
			"matchId": rec.ID,
			"players": rec.Players(),
			"state":   rec.State,
		},
	})

	// ✅ 启动对局引擎
	if s.OnMatchReady != nil {
		go s.OnMatchReady(rec.Clone())
	}
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id string) (*matchstore.Record, error) {
	rec, err := s.store.Load(ctx, id)
	if errors.Is(err, matchstore.ErrNotFound) {
		return nil, ErrGameNotFound
	}
	return rec, err
}
