package ws

import (
	"encoding/json"
	"sync"

	"directchat/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Hub 维护房间订阅组和当前进程内的全部连接，并发安全。
type Hub struct {
	mu       sync.RWMutex
	rooms    map[uuid.UUID]map[*Client]struct{}
	conns    map[string]*Client
	registry *Registry
}

func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[*Client]struct{}),
		conns:    make(map[string]*Client),
		registry: NewRegistry(),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// attach 记录一个新打开的连接，并以用户 id 登记到 Registry。
func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.registry.Register(c.userID.String(), c.id)
	metrics.WsConnections.Inc()
}

// detach 移除连接。若它是该身份在 Registry 中的登记连接，改由同一身份仍打开的其他连接接替。
func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	_, ok := h.conns[c.id]
	delete(h.conns, c.id)
	var survivor *Client
	for _, other := range h.conns {
		if other.userID == c.userID && other.State() != StateClosed {
			survivor = other
			break
		}
	}
	h.mu.Unlock()
	h.registry.Unregister(c.id)
	if survivor != nil && h.registry.Register(c.userID.String(), survivor.id) {
		// 接替者可能同时关闭，它的 detach 已执行过时在这里撤销登记
		h.mu.RLock()
		_, alive := h.conns[survivor.id]
		h.mu.RUnlock()
		if !alive {
			h.registry.Unregister(survivor.id)
		}
	}
	if ok {
		metrics.WsConnections.Dec()
	}
}

// Join 把连接加入房间订阅组，仅对 Opening 状态的连接生效。
func (h *Hub) Join(roomID uuid.UUID, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !c.subscribe(roomID) {
		return false
	}
	group := h.rooms[roomID]
	if group == nil {
		group = make(map[*Client]struct{})
		h.rooms[roomID] = group
	}
	group[c] = struct{}{}
	return true
}

// Leave 把连接移出房间订阅组，组为空时回收。
func (h *Hub) Leave(roomID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.rooms[roomID]
	if group == nil {
		return
	}
	delete(group, c)
	if len(group) == 0 {
		delete(h.rooms, roomID)
	}
}

// Online 返回房间当前订阅的连接数，供 REST 接口复用。
func (h *Hub) Online(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast 把事件编码一次后投递给房间内全部订阅者。
func (h *Hub) Broadcast(roomID uuid.UUID, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("encode broadcast")
		return
	}
	h.Deliver(roomID, b)
}

// Deliver 尽力投递，返回成功入队的连接数。发送队列已满或正在关闭的连接直接丢弃本条消息。
func (h *Hub) Deliver(roomID uuid.UUID, b []byte) int {
	h.mu.RLock()
	group := h.rooms[roomID]
	targets := make([]*Client, 0, len(group))
	for c := range group {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	n := 0
	for _, c := range targets {
		if c.deliver(b) {
			n++
		}
	}
	metrics.BroadcastDeliveriesTotal.WithLabelValues("delivered").Add(float64(n))
	if dropped := len(targets) - n; dropped > 0 {
		metrics.BroadcastDeliveriesTotal.WithLabelValues("dropped").Add(float64(dropped))
	}
	return n
}

// Notify 通过 Registry 找到身份对应的连接并推送事件，与房间订阅无关。
func (h *Hub) Notify(identity string, v any) bool {
	connID, ok := h.registry.Lookup(identity)
	if !ok {
		return false
	}
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("identity", identity).Msg("encode notification")
		return false
	}
	return c.deliver(b)
}
