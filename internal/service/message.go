package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"directchat/internal/metrics"
	"directchat/internal/models"
	"directchat/internal/store"

	"github.com/google/uuid"
)

const maxContentLength = 4000

// MessageDTO 是对外输出的消息数据，也是房间广播的事件格式。
type MessageDTO struct {
	Type      string    `json:"type"`
	ID        uuid.UUID `json:"id"`
	RoomID    uuid.UUID `json:"room_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type sendMessageInput struct {
	Content string `validate:"required,max=4000"`
}

// GetMessages 返回房间的历史消息，按时间升序。调用者必须是房间成员。
func (s *ChatService) GetMessages(ctx context.Context, callerID, roomID uuid.UUID, q store.MessageQuery) ([]MessageDTO, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, callerID, room); err != nil {
		return nil, err
	}
	if q.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}

	msgs, err := s.store.ListMessages(ctx, roomID, q)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: before_id is not a message of this room", ErrInvalidInput)
		}
		return nil, err
	}
	names := usernamesOf(room)
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageDTO(m, names))
	}
	return out, nil
}

// SendMessage 持久化一条消息并推送给房间的在线订阅者。
// 推送在写入提交之后进行，推送失败不影响写入结果。
func (s *ChatService) SendMessage(ctx context.Context, callerID, roomID uuid.UUID, content string) (*MessageDTO, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, callerID, room); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if err := s.validate.Struct(sendMessageInput{Content: content}); err != nil {
		return nil, fmt.Errorf("%w: content must be at most %d characters", ErrInvalidInput, maxContentLength)
	}

	msg := models.Message{
		ID:        uuid.Must(uuid.NewV7()),
		RoomID:    room.ID,
		AuthorID:  callerID,
		Content:   content,
		CreatedAt: s.clock.Next(),
	}
	if err := s.store.CreateMessage(ctx, &msg); err != nil {
		return nil, err
	}
	metrics.MessagesSentTotal.Inc()

	dto := messageDTO(msg, usernamesOf(room))
	s.broadcaster.Broadcast(room.ID, dto)
	return &dto, nil
}

// SendFromSocket 适配连接上发来的消息，结果只通过广播返回给发送者。
func (s *ChatService) SendFromSocket(ctx context.Context, callerID, roomID uuid.UUID, content string) error {
	_, err := s.SendMessage(ctx, callerID, roomID, content)
	return err
}

func messageDTO(m models.Message, names map[uuid.UUID]string) MessageDTO {
	return MessageDTO{
		Type:      "message",
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.AuthorID,
		Username:  names[m.AuthorID],
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
