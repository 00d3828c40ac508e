// Package relay 在多个进程之间转发房间广播，本进程的订阅者直接投递，其他进程经 Redis pub/sub 收到。
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	channelPrefix  = "directchat:room:"
	publishTimeout = 2 * time.Second
)

// Deliverer 是本进程内的房间投递能力，由 ws.Hub 实现。
type Deliverer interface {
	Deliver(roomID uuid.UUID, b []byte) int
}

type envelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

type RedisRelay struct {
	client *redis.Client
	local  Deliverer
	origin string
}

// New 解析 REDIS_URL 并确认连接可用。
func New(ctx context.Context, redisURL string, local Deliverer) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewWithClient(client, local), nil
}

func NewWithClient(client *redis.Client, local Deliverer) *RedisRelay {
	return &RedisRelay{client: client, local: local, origin: uuid.NewString()}
}

func (r *RedisRelay) Close() error {
	return r.client.Close()
}

// Broadcast 先投递给本进程的订阅者，再发布给其他进程。发布失败只记录日志。
func (r *RedisRelay) Broadcast(roomID uuid.UUID, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("encode broadcast")
		return
	}
	r.local.Deliver(roomID, payload)

	b, err := json.Marshal(envelope{Origin: r.origin, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID.String()).Msg("encode relay envelope")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, channelFor(roomID), b).Err(); err != nil {
		log.Warn().Err(err).Str("room_id", roomID.String()).Msg("relay publish")
	}
}

// Run 订阅全部房间频道并把其他进程发布的事件投递给本进程，直到 ctx 结束。
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Info().Str("origin", r.origin).Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("relay subscription closed")
			}
			r.handle(msg)
		}
	}
}

func (r *RedisRelay) handle(msg *redis.Message) {
	roomID, ok := roomFromChannel(msg.Channel)
	if !ok {
		return
	}
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		log.Warn().Err(err).Str("channel", msg.Channel).Msg("relay decode")
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.local.Deliver(roomID, env.Payload)
}

func channelFor(roomID uuid.UUID) string {
	return channelPrefix + roomID.String()
}

func roomFromChannel(channel string) (uuid.UUID, bool) {
	raw, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
