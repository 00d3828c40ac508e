package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"directchat/internal/auth"
	"directchat/internal/config"
	"directchat/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
)

// State 是单个连接的生命周期状态，只能向前推进。
type State int32

const (
	StateOpening State = iota
	StateSubscribed
	StateUnsubscribed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateSubscribed:
		return "subscribed"
	case StateUnsubscribed:
		return "unsubscribed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Directory 提供建立连接时需要的用户与成员关系查询。
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// MessageSender 处理客户端经由连接发来的消息，写入仍然走聊天服务。
type MessageSender interface {
	Send(ctx context.Context, callerID, roomID uuid.UUID, content string) error
}

// SenderFunc 让普通函数满足 MessageSender。
type SenderFunc func(ctx context.Context, callerID, roomID uuid.UUID, content string) error

func (f SenderFunc) Send(ctx context.Context, callerID, roomID uuid.UUID, content string) error {
	return f(ctx, callerID, roomID, content)
}

type Client struct {
	id        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	userID    uuid.UUID
	uname     string
	roomID    uuid.UUID
	state     atomic.Int32
}

func newClient(h *Hub, conn *websocket.Conn, user *models.User, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		id:     uuid.NewString(),
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		userID: user.ID,
		uname:  user.Username,
	}
}

func (c *Client) ID() string   { return c.id }
func (c *Client) State() State { return State(c.state.Load()) }

// RoomID 返回已订阅的房间，未订阅时 ok 为 false。
func (c *Client) RoomID() (uuid.UUID, bool) {
	if c.State() != StateSubscribed {
		return uuid.Nil, false
	}
	return c.roomID, true
}

func (c *Client) subscribe(roomID uuid.UUID) bool {
	if !c.state.CompareAndSwap(int32(StateOpening), int32(StateSubscribed)) {
		return false
	}
	c.roomID = roomID
	return true
}

func (c *Client) stayUnsubscribed() bool {
	return c.state.CompareAndSwap(int32(StateOpening), int32(StateUnsubscribed))
}

// close 退出订阅组并注销连接，可重复调用。
func (c *Client) close() {
	c.closeOnce.Do(func() {
		prev := State(c.state.Swap(int32(StateClosed)))
		if prev == StateSubscribed {
			c.hub.Leave(c.roomID, c)
		}
		c.hub.detach(c)
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) deliver(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		log.Debug().Str("conn_id", c.id).Str("user_id", c.userID.String()).Msg("send buffer full, dropping event")
		return false
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type InboundMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Serve 负责鉴权、升级连接，并在调用者是房间成员时加入该房间的订阅组。
func Serve(h *Hub, dir Directory, sender MessageSender, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Token via Authorization header or token query param for WS
		token := c.Query("token")
		if authz := c.GetHeader("Authorization"); token == "" && len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseAccessToken(token, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		user, err := dir.GetUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		roomID, member := uuid.Nil, false
		if raw := c.Query("room_id"); raw != "" {
			if rid, err := uuid.Parse(raw); err == nil {
				ok, err := dir.IsMember(c.Request.Context(), rid, user.ID)
				if err != nil {
					log.Warn().Err(err).Str("room_id", raw).Str("user_id", user.ID.String()).Msg("ws membership lookup")
				}
				roomID, member = rid, ok && err == nil
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		client := newClient(h, conn, user, cfg.WsSendBuffer)
		h.attach(client)
		if member {
			h.Join(roomID, client)
		} else {
			client.stayUnsubscribed()
		}
		log.Debug().Str("conn_id", client.id).Str("user_id", user.ID.String()).Str("state", client.State().String()).Msg("ws open")

		go client.writePump()
		client.readPump(sender, cfg.RequestTimeout)
	}
}

func (c *Client) readPump(sender MessageSender, timeout time.Duration) {
	defer c.close()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ws read")
			}
			return
		}
		roomID, ok := c.RoomID()
		if !ok || sender == nil {
			continue
		}
		var in InboundMessage
		if err := json.Unmarshal(data, &in); err != nil || in.Type != "message" {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := sender.Send(ctx, c.userID, roomID, in.Content); err != nil {
			log.Debug().Err(err).Str("conn_id", c.id).Msg("ws send message")
		}
		cancel()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
