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
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// UserDTO 是对外输出的成员信息。
type UserDTO struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// RoomDTO 是对外输出的房间数据，LastUpdated 取最近一条消息的时间。
type RoomDTO struct {
	ID          uuid.UUID   `json:"id"`
	Members     []UserDTO   `json:"members"`
	LastMessage *MessageDTO `json:"last_message"`
	LastUpdated *time.Time  `json:"last_updated"`
	CreatedAt   time.Time   `json:"created_at"`
	Online      int         `json:"online"`
}

// RoomCreatedEvent 在新房间创建后推送给其他在线成员。
type RoomCreatedEvent struct {
	Type string  `json:"type"`
	Room RoomDTO `json:"room"`
}

type createRoomInput struct {
	Usernames []string `validate:"required,min=1,dive,required,max=64"`
}

// GetOrCreateRoom 返回调用者与给定用户组成的房间，不存在则创建。
// 成员集合与顺序、重复无关，同一集合始终得到同一个房间。
func (s *ChatService) GetOrCreateRoom(ctx context.Context, callerID uuid.UUID, usernames []string) (*RoomDTO, error) {
	in := createRoomInput{Usernames: lo.Map(usernames, func(n string, _ int) string { return strings.TrimSpace(n) })}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	users, err := s.store.FindUsersByUsernames(ctx, in.Usernames)
	if err != nil {
		return nil, err
	}
	byKey := lo.KeyBy(users, func(u models.User) string { return u.UsernameKey })
	memberIDs := []uuid.UUID{callerID}
	for _, name := range in.Usernames {
		u, ok := byKey[models.NormalizeUsername(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown username %q", ErrInvalidInput, name)
		}
		memberIDs = append(memberIDs, u.ID)
	}
	memberIDs = lo.Uniq(memberIDs)
	if len(memberIDs) < 2 {
		return nil, fmt.Errorf("%w: a room needs at least one other member", ErrInvalidInput)
	}

	room, created, err := s.store.GetOrCreateRoom(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	dto, err := s.renderRoom(ctx, room)
	if err != nil {
		return nil, err
	}
	if created {
		metrics.RoomsCreatedTotal.Inc()
		log.Info().Str("room_id", room.ID.String()).Int("members", len(memberIDs)).Msg("room created")
		s.announceRoom(callerID, dto)
	}
	return dto, nil
}

// announceRoom 通知除创建者外的在线成员，离线成员下次拉取房间列表时可见。
func (s *ChatService) announceRoom(creatorID uuid.UUID, dto *RoomDTO) {
	evt := RoomCreatedEvent{Type: "room_created", Room: *dto}
	for _, m := range dto.Members {
		if m.ID == creatorID {
			continue
		}
		s.notifier.Notify(m.ID.String(), evt)
	}
}

// GetRoomByUsername 查找调用者与某个用户的一对一房间。
func (s *ChatService) GetRoomByUsername(ctx context.Context, callerID uuid.UUID, username string) (*RoomDTO, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	users, err := s.store.FindUsersByUsernames(ctx, []string{username})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: unknown username %q", ErrInvalidInput, username)
	}
	room, err := s.store.FindRoomByMembers(ctx, []uuid.UUID{callerID, users[0].ID})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.renderRoom(ctx, room)
}

// GetRoomByID 按 id 读取房间，非成员与房间不存在同样返回 NotFound。
func (s *ChatService) GetRoomByID(ctx context.Context, callerID, roomID uuid.UUID) (*RoomDTO, error) {
	room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, callerID, room); err != nil {
		return nil, ErrNotFound
	}
	return s.renderRoom(ctx, room)
}

// GetUserRooms 返回调用者所在的全部房间，最近有消息的排在前面，没有消息的房间排在最后。
func (s *ChatService) GetUserRooms(ctx context.Context, callerID uuid.UUID) ([]RoomDTO, error) {
	rooms, err := s.store.ListUserRooms(ctx, callerID)
	if err != nil {
		return nil, err
	}
	lastIDs := lo.FilterMap(rooms, func(r models.Room, _ int) (uuid.UUID, bool) {
		if r.LastMessageID == nil {
			return uuid.Nil, false
		}
		return *r.LastMessageID, true
	})
	lastMsgs, err := s.store.MessagesByIDs(ctx, lastIDs)
	if err != nil {
		return nil, err
	}

	out := make([]RoomDTO, 0, len(rooms))
	for i := range rooms {
		out = append(out, s.roomDTO(&rooms[i], lastMsgs))
	}
	return out, nil
}

func (s *ChatService) loadRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return room, nil
}

func (s *ChatService) renderRoom(ctx context.Context, room *models.Room) (*RoomDTO, error) {
	var lastMsgs map[uuid.UUID]models.Message
	if room.LastMessageID != nil {
		var err error
		lastMsgs, err = s.store.MessagesByIDs(ctx, []uuid.UUID{*room.LastMessageID})
		if err != nil {
			return nil, err
		}
	}
	dto := s.roomDTO(room, lastMsgs)
	return &dto, nil
}

func (s *ChatService) roomDTO(room *models.Room, lastMsgs map[uuid.UUID]models.Message) RoomDTO {
	members := lo.Map(room.Members, func(m models.RoomMember, _ int) UserDTO {
		return UserDTO{ID: m.UserID, Username: m.User.Username}
	})
	dto := RoomDTO{
		ID:          room.ID,
		Members:     members,
		LastUpdated: room.LastMessageAt,
		CreatedAt:   room.CreatedAt,
		Online:      s.online.Online(room.ID),
	}
	if room.LastMessageID != nil {
		if m, ok := lastMsgs[*room.LastMessageID]; ok {
			msg := messageDTO(m, usernamesOf(room))
			dto.LastMessage = &msg
		}
	}
	return dto
}

func usernamesOf(room *models.Room) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(room.Members))
	for _, m := range room.Members {
		out[m.UserID] = m.User.Username
	}
	return out
}
