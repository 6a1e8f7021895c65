package matchstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"TripleTriad/internal/utils"
)

type redisRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisRepo stores each match as one JSON value; ttl 0 keeps records forever.
func NewRedisRepo(rdb *redis.Client, ttl time.Duration) Store {
	return &redisRepo{rdb: rdb, ttl: ttl}
}

// key 约定：
//
//	kv     : tt:match:{id}          -> Record JSON
//	channel: tt:match:{id}:changes  -> 每次 Save 成功后发布的 Record JSON
func matchKey(id string) string {
	return fmt.Sprintf("tt:match:%s", id)
}

func changesChannel(id string) string {
	return fmt.Sprintf("tt:match:%s:changes", id)
}

func (r *redisRepo) Create(ctx context.Context, rec *Record) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	rec.Version = 1
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, matchKey(rec.ID), data, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *redisRepo) Load(ctx context.Context, id string) (*Record, error) {
	raw, err := r.rdb.Get(ctx, matchKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode match %s: %w", id, err)
	}
	return &rec, nil
}

// Save 用 WATCH/MULTI 做乐观锁：先到先得，后写者得到 ErrVersionConflict
func (r *redisRepo) Save(ctx context.Context, rec *Record) error {
	key := matchKey(rec.ID)
	next := rec.Clone()
	next.Version = rec.Version + 1
	next.UpdatedAt = time.Now()
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Record
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("decode match %s: %w", rec.ID, err)
		}
		if cur.Version != rec.Version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	if err := r.rdb.Watch(ctx, txf, key); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return ErrVersionConflict
		}
		return err
	}

	rec.Version = next.Version
	rec.UpdatedAt = next.UpdatedAt
	if err := r.rdb.Publish(ctx, changesChannel(rec.ID), data).Err(); err != nil {
		// 写入已成功，通知失败只影响实时推送
		utils.Print.Warn("publish match change failed", "match", rec.ID, "err", err)
	}
	return nil
}

func (r *redisRepo) Subscribe(ctx context.Context, id string) (<-chan *Record, func(), error) {
	ps := r.rdb.Subscribe(ctx, changesChannel(id))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan *Record, 16)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = ps.Close()
		})
	}

	go func() {
		defer close(out)
		msgs := ps.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var rec Record
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					utils.Print.Warn("bad match change payload", "match", id, "err", err)
					continue
				}
				select {
				case out <- &rec:
				case <-done:
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	return out, cancel, nil
}
