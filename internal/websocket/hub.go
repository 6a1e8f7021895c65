package websocket

import (
	"strings"
	"sync"

	"TripleTriad/internal/utils"
)

type HubInterface interface {
	BroadcastToPlayers(addrs []string, msg OutgoingMessage)
	ClientByAddress(addr string) (*Client, bool)
	SendToPlayer(addr string, msg OutgoingMessage)
	Close()
}

// Hub 按地址管理连接（地址统一小写），同一地址重连时替换旧连接
type Hub struct {
	clients    map[string]*Client // address -> client
	register   chan *Client
	unregister chan *Client
	incoming   chan IncomingMessage
	OnIncoming func(IncomingMessage)
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan IncomingMessage, 64),
		quit:       make(chan struct{}),
	}
}

func addrKey(addr string) string {
	return strings.ToLower(addr)
}

func (h *Hub) Run() {
	utils.Print.Info("Hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			key := addrKey(c.Address)
			if old, ok := h.clients[key]; ok && old != c {
				close(old.Send)
			}
			h.clients[key] = c
			utils.Print.Info("Hub.register", "address", c.Address, "clients", len(h.clients))
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			key := addrKey(c.Address)
			// 只移除同一个连接；已被重连替换的旧连接忽略
			if cur, ok := h.clients[key]; ok && cur == c {
				delete(h.clients, key)
				close(c.Send)
				utils.Print.Info("Hub.unregister", "address", c.Address, "clients", len(h.clients))
			}
			h.mu.Unlock()

		case req := <-h.incoming:
			// 玩家消息统一转发给游戏层（GameManager）
			if h.OnIncoming != nil {
				h.OnIncoming(req)
			}

		case <-h.quit:
			h.mu.Lock()
			for key, c := range h.clients {
				close(c.Send)
				delete(h.clients, key)
			}
			h.mu.Unlock()
			utils.Print.Info("Hub stopped")
			return
		}
	}
}

// BroadcastToPlayers sends msg to every connected address; offline players are skipped.
func (h *Hub) BroadcastToPlayers(addrs []string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, addr := range addrs {
		if client, ok := h.clients[addrKey(addr)]; ok {
			h.deliver(client, msg)
		}
	}
}

// SendToPlayer sends to a single player (safe concurrent).
func (h *Hub) SendToPlayer(addr string, msg OutgoingMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[addrKey(addr)]; ok {
		h.deliver(client, msg)
	}
}

// 调用方持有读锁
func (h *Hub) deliver(c *Client, msg OutgoingMessage) {
	select {
	case c.Send <- msg:
	default:
		utils.Print.Warn("client send buffer full, dropping message", "address", c.Address, "event", msg.Event)
	}
}

func (h *Hub) ClientByAddress(addr string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[addrKey(addr)]
	return c, ok
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}
