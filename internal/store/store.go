package store

import (
	"context"
	"errors"

	"directchat/internal/models"

	"github.com/google/uuid"
)

// ErrNotFound 表示查询的记录不存在。
var ErrNotFound = errors.New("record not found")

// MessageQuery 控制历史消息的读取窗口，零值表示读取全部。
type MessageQuery struct {
	Limit    int
	BeforeID *uuid.UUID
}

// Store 定义聊天核心依赖的持久化契约。
type Store interface {
	Ping(ctx context.Context) error

	// User operations
	UpsertUser(ctx context.Context, username string, guest bool) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error)

	// Room operations
	GetOrCreateRoom(ctx context.Context, memberIDs []uuid.UUID) (room *models.Room, created bool, err error)
	FindRoomByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)

	// Message operations
	ListMessages(ctx context.Context, roomID uuid.UUID, q MessageQuery) ([]models.Message, error)
	MessagesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
}
