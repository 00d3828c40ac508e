//go:generate go run go.uber.org/mock/mockgen -source=gate.go -destination=../mocks/mock_gate.go -package=mocks
package authz

import (
	"context"

	"directchat/internal/models"

	"github.com/google/uuid"
)

// Gate 判断调用者能否读写某个房间的消息。
type Gate interface {
	CanAccess(ctx context.Context, callerID uuid.UUID, room *models.Room) (bool, error)
}

// GateFunc 让普通函数满足 Gate。
type GateFunc func(ctx context.Context, callerID uuid.UUID, room *models.Room) (bool, error)

func (f GateFunc) CanAccess(ctx context.Context, callerID uuid.UUID, room *models.Room) (bool, error) {
	return f(ctx, callerID, room)
}

// MembershipChecker 是 MemberGate 需要的最小存储能力。
type MembershipChecker interface {
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// MemberGate 只允许房间成员访问。Members 已加载时直接判断，否则查询存储。
func MemberGate(checker MembershipChecker) Gate {
	return GateFunc(func(ctx context.Context, callerID uuid.UUID, room *models.Room) (bool, error) {
		if room == nil {
			return false, nil
		}
		if len(room.Members) > 0 {
			return room.HasMember(callerID), nil
		}
		return checker.IsMember(ctx, room.ID, callerID)
	})
}

// All 组合多个 Gate，全部放行才放行，遇到第一个拒绝或错误即返回。
func All(gates ...Gate) Gate {
	return GateFunc(func(ctx context.Context, callerID uuid.UUID, room *models.Room) (bool, error) {
		for _, g := range gates {
			ok, err := g.CanAccess(ctx, callerID, room)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}
