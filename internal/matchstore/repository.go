package matchstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"TripleTriad/internal/game/table"
)

var (
	ErrNotFound        = errors.New("match not found")
	ErrExists          = errors.New("match already exists")
	ErrVersionConflict = errors.New("match was updated by someone else")
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Record 一局游戏的持久化记录：双方牌组、座位地址与当前状态
type Record struct {
	ID        string       `json:"id"`
	DeckP1    string       `json:"deck_id_p1"`
	DeckP2    string       `json:"deck_id_p2,omitempty"`
	PlayerP1  string       `json:"player_p1"`
	PlayerP2  string       `json:"player_p2,omitempty"`
	Status    Status       `json:"status"`
	State     *table.State `json:"state"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PlayerOf returns the seat held by address, or NoPlayer.
func (r *Record) PlayerOf(address string) table.Player {
	switch {
	case address == "":
		return table.NoPlayer
	case strings.EqualFold(address, r.PlayerP1):
		return table.P1
	case strings.EqualFold(address, r.PlayerP2):
		return table.P2
	}
	return table.NoPlayer
}

// Players returns both seat addresses, P1 first.
func (r *Record) Players() []string {
	out := []string{r.PlayerP1}
	if r.PlayerP2 != "" {
		out = append(out, r.PlayerP2)
	}
	return out
}

// Clone copies the record including its state so callers may modify it freely.
func (r *Record) Clone() *Record {
	out := *r
	if r.State != nil {
		st := r.State.Clone()
		out.State = &st
	}
	return &out
}

// Store 对局记录的抽象：读取、带版本的写入、变更订阅
type Store interface {
	// Create 写入新记录；id 已存在时返回 ErrExists
	Create(ctx context.Context, rec *Record) error
	// Load 读取记录；不存在时返回 ErrNotFound
	Load(ctx context.Context, id string) (*Record, error)
	// Save 仅当 rec.Version 与存储中的版本一致时写入，成功后 rec.Version+1 并通知订阅者
	Save(ctx context.Context, rec *Record) error
	// Subscribe 返回该对局后续每次成功 Save 的记录，调用 cancel 结束订阅。
	// 通知尽力而为：消费太慢的订阅者会丢失通知，包括对局结束的最后一条，
	// 丢失后只能用 Load 取最新状态。引擎自己写入的版本不依赖通知。
	Subscribe(ctx context.Context, id string) (<-chan *Record, func(), error)
}
