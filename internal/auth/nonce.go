package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// NonceStore 一次性登录 nonce：Put 保存，Consume 取出并删除（防重放）
type NonceStore interface {
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	Consume(ctx context.Context, nonce string) (bool, error)
}

// ---------- Redis ----------

type redisNonceStore struct {
	rdb *redis.Client
}

func NewRedisNonceStore(rdb *redis.Client) NonceStore {
	return &redisNonceStore{rdb: rdb}
}

func nonceKey(nonce string) string {
	return fmt.Sprintf("tt:nonce:%s", nonce)
}

func (s *redisNonceStore) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.rdb.Set(ctx, nonceKey(nonce), 1, ttl).Err()
}

// Consume 用 DEL 的返回值判断：并发登录只有一个能拿到 1
func (s *redisNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	n, err := s.rdb.Del(ctx, nonceKey(nonce)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ---------- 内存 ----------

type memoryNonceStore struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce -> 过期时间
	now    func() time.Time
}

func NewMemoryNonceStore() NonceStore {
	return &memoryNonceStore{nonces: make(map[string]time.Time), now: time.Now}
}

func (s *memoryNonceStore) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[nonce] = s.now().Add(ttl)
	return nil
}

func (s *memoryNonceStore) Consume(ctx context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	if !ok {
		return false, nil
	}
	delete(s.nonces, nonce)
	return s.now().Before(exp), nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// GET|POST /auth/nonce
func (h *Handler) Nonce(c *gin.Context) {
	nonce, err := generateNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate nonce"})
		return
	}
	if err := h.nonces.Put(c.Request.Context(), nonce, h.nonceTTL); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store nonce"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": SignMessage(nonce)})
}
