package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// User 由外部身份系统签发，这里只保存聊天需要的展示信息。
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username    string    `gorm:"size:64;not null"`
	UsernameKey string    `gorm:"uniqueIndex;size:64;not null"`
	Guest       bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time
}

// Room 是一组固定成员的聊天上下文，MemberKey 由成员集合唯一确定。
type Room struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey"`
	MemberKey     string       `gorm:"uniqueIndex;size:64;not null"`
	LastMessageID *uuid.UUID   `gorm:"type:uuid"`
	LastMessageAt *time.Time   `gorm:"index"`
	CreatedAt     time.Time    `gorm:"index"`
	Members       []RoomMember `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	Messages      []Message    `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
}

type RoomMember struct {
	RoomID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	User   User      `gorm:"foreignKey:UserID"`
}

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RoomID    uuid.UUID `gorm:"type:uuid;index:idx_msg_room_created,priority:1;not null"`
	AuthorID  uuid.UUID `gorm:"type:uuid;index;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"index:idx_msg_room_created,priority:2;not null"`
}

// NormalizeUsername 返回用户名的大小写无关形式。
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MemberKey 对成员 id 去重排序后取 sha256，顺序无关。
func MemberKey(ids []uuid.UUID) string {
	parts := lo.Uniq(lo.Map(ids, func(id uuid.UUID, _ int) string { return id.String() }))
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// MemberIDs 返回房间成员 id。
func (r *Room) MemberIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.Members))
	for _, m := range r.Members {
		out = append(out, m.UserID)
	}
	return out
}

// HasMember 判断用户是否属于房间，要求 Members 已加载。
func (r *Room) HasMember(userID uuid.UUID) bool {
	for _, m := range r.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
