package store

import (
	"context"
	"errors"
	"strings"

	"directchat/internal/models"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore 基于 gorm 实现 Store，postgres 与 sqlite 共用。
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// UpsertUser 按大小写无关的用户名查找用户，不存在则创建。
func (s *GormStore) UpsertUser(ctx context.Context, username string, guest bool) (*models.User, error) {
	key := models.NormalizeUsername(username)
	if key == "" {
		return nil, errors.New("empty username")
	}
	user := models.User{ID: uuid.New(), Username: strings.TrimSpace(username), UsernameKey: key, Guest: guest}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username_key"}}, DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := s.db.WithContext(ctx).Where("username_key = ?", key).First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func (s *GormStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindUsersByUsernames 返回能解析到的用户，未命中的用户名直接忽略，由调用方比对。
func (s *GormStore) FindUsersByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	keys := lo.Uniq(lo.Map(usernames, func(n string, _ int) string { return models.NormalizeUsername(n) }))
	if len(keys) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("username_key IN ?", keys).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GetOrCreateRoom 依赖 member_key 唯一约束保证同一成员集合只有一个房间。
// 并发创建时后到者的 INSERT 不生效，随后读到先提交的房间。
func (s *GormStore) GetOrCreateRoom(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, bool, error) {
	key := models.MemberKey(memberIDs)
	room, err := s.roomByKey(ctx, key)
	if err == nil {
		return room, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	candidate := models.Room{ID: uuid.Must(uuid.NewV7()), MemberKey: key}
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "member_key"}}, DoNothing: true}).
			Create(&candidate)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		members := lo.Map(lo.Uniq(memberIDs), func(id uuid.UUID, _ int) models.RoomMember {
			return models.RoomMember{RoomID: candidate.ID, UserID: id}
		})
		if err := tx.Omit(clause.Associations).Create(&members).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	room, err = s.roomByKey(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return room, created, nil
}

func (s *GormStore) FindRoomByMembers(ctx context.Context, memberIDs []uuid.UUID) (*models.Room, error) {
	return s.roomByKey(ctx, models.MemberKey(memberIDs))
}

func (s *GormStore) roomByKey(ctx context.Context, key string) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).Preload("Members.User").Where("member_key = ?", key).First(&room).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

func (s *GormStore) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).Preload("Members.User").First(&room, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

// ListUserRooms 按最后活跃时间倒序返回用户所在房间，没有消息的房间排在最后。
func (s *GormStore) ListUserRooms(ctx context.Context, userID uuid.UUID) ([]models.Room, error) {
	sub := s.db.Model(&models.RoomMember{}).Select("room_id").Where("user_id = ?", userID)
	var rooms []models.Room
	err := s.db.WithContext(ctx).
		Preload("Members.User").
		Where("id IN (?)", sub).
		Order("last_message_at IS NULL, last_message_at DESC, created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *GormStore) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListMessages 按 (created_at, id) 升序返回消息，Limit 大于 0 时只取最近的 Limit 条。
// BeforeID 只返回排在该消息之前的记录，游标不属于该房间时返回 ErrNotFound。
func (s *GormStore) ListMessages(ctx context.Context, roomID uuid.UUID, q MessageQuery) ([]models.Message, error) {
	tx := s.db.WithContext(ctx).Where("room_id = ?", roomID)
	if q.BeforeID != nil {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Message{}).
			Where("id = ? AND room_id = ?", *q.BeforeID, roomID).Count(&n).Error; err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		cursor := s.db.Model(&models.Message{}).Select("created_at").Where("id = ?", *q.BeforeID)
		tx = tx.Where("(created_at < (?) OR (created_at = (?) AND id < ?))", cursor, cursor, *q.BeforeID)
	}
	var msgs []models.Message
	if q.Limit <= 0 {
		if err := tx.Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
			return nil, err
		}
		return msgs, nil
	}
	if err := tx.Order("created_at DESC, id DESC").Limit(q.Limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *GormStore) MessagesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	out := make(map[uuid.UUID]models.Message, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var msgs []models.Message
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for _, m := range msgs {
		out[m.ID] = m
	}
	return out, nil
}

// CreateMessage 在同一事务里写入消息并推进房间的 last_message 字段。
func (s *GormStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Room{}).
			Where("id = ?", msg.RoomID).
			Where("last_message_at IS NULL OR last_message_at <= ?", msg.CreatedAt).
			Updates(map[string]any{"last_message_id": msg.ID, "last_message_at": msg.CreatedAt})
		return res.Error
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
