//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_push.go -package=mocks
package service

import (
	"context"
	"sync"
	"time"

	"directchat/internal/authz"
	"directchat/internal/models"
	"directchat/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Broadcaster 把事件推送给订阅了某个房间的全部连接。
type Broadcaster interface {
	Broadcast(roomID uuid.UUID, v any)
}

// Notifier 按身份向单个在线连接推送事件，身份不在线时返回 false。
type Notifier interface {
	Notify(identity string, v any) bool
}

// OnlineCounter 返回房间当前订阅的连接数。
type OnlineCounter interface {
	Online(roomID uuid.UUID) int
}

type nopPush struct{}

func (nopPush) Broadcast(uuid.UUID, any) {}
func (nopPush) Notify(string, any) bool  { return false }
func (nopPush) Online(uuid.UUID) int     { return 0 }

// ChatService 封装房间与消息的全部业务逻辑，所有读写都经过成员校验。
type ChatService struct {
	store       store.Store
	gate        authz.Gate
	broadcaster Broadcaster
	notifier    Notifier
	online      OnlineCounter
	clock       *clock
	validate    *validator.Validate
}

type Option func(*ChatService)

func WithBroadcaster(b Broadcaster) Option { return func(s *ChatService) { s.broadcaster = b } }
func WithNotifier(n Notifier) Option       { return func(s *ChatService) { s.notifier = n } }
func WithOnline(o OnlineCounter) Option    { return func(s *ChatService) { s.online = o } }

// WithClock 替换时间源，测试里用来构造固定或回拨的时间。
func WithClock(now func() time.Time) Option {
	return func(s *ChatService) { s.clock = &clock{now: now} }
}

// NewChatService 创建聊天服务。gate 为 nil 时使用基于存储的成员校验。
func NewChatService(st store.Store, gate authz.Gate, opts ...Option) *ChatService {
	if gate == nil {
		gate = authz.MemberGate(st)
	}
	s := &ChatService{
		store:       st,
		gate:        gate,
		broadcaster: nopPush{},
		notifier:    nopPush{},
		online:      nopPush{},
		clock:       &clock{now: time.Now},
		validate:    validator.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize 对房间做成员校验。校验本身出错时按拒绝处理。
func (s *ChatService) authorize(ctx context.Context, callerID uuid.UUID, room *models.Room) error {
	ok, err := s.gate.CanAccess(ctx, callerID, room)
	if err != nil {
		log.Warn().Err(err).Str("room_id", room.ID.String()).Str("user_id", callerID.String()).Msg("authorization check failed")
		return ErrInsufficientPermissions
	}
	if !ok {
		return ErrInsufficientPermissions
	}
	return nil
}

// clock 产生单调不减的 UTC 时间戳，保证同一进程内消息时间不会倒退。
type clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func (c *clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC().Truncate(time.Microsecond)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
