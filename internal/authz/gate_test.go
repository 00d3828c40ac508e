package authz

import (
	"context"
	"errors"
	"testing"

	"directchat/internal/mocks"
	"directchat/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMemberGate(t *testing.T) {
	ctrl := gomock.NewController(t)
	checker := mocks.NewMockMembershipChecker(ctrl)
	gate := MemberGate(checker)
	ctx := context.Background()
	member, stranger := uuid.New(), uuid.New()

	t.Run("should decide from loaded members without touching the store", func(t *testing.T) {
		req := require.New(t)
		room := &models.Room{ID: uuid.New(), Members: []models.RoomMember{{UserID: member}, {UserID: uuid.New()}}}
		checker.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		ok, err := gate.CanAccess(ctx, member, room)
		req.NoError(err)
		req.True(ok)

		ok, err = gate.CanAccess(ctx, stranger, room)
		req.NoError(err)
		req.False(ok)
	})

	t.Run("should fall back to the store when members are not loaded", func(t *testing.T) {
		req := require.New(t)
		room := &models.Room{ID: uuid.New()}
		checker.EXPECT().IsMember(ctx, room.ID, member).Return(true, nil).Times(1)

		ok, err := gate.CanAccess(ctx, member, room)
		req.NoError(err)
		req.True(ok)
	})

	t.Run("should deny a nil room", func(t *testing.T) {
		req := require.New(t)
		ok, err := gate.CanAccess(ctx, member, nil)
		req.NoError(err)
		req.False(ok)
	})
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	caller := uuid.New()
	room := &models.Room{ID: uuid.New()}
	allow := GateFunc(func(context.Context, uuid.UUID, *models.Room) (bool, error) { return true, nil })
	deny := GateFunc(func(context.Context, uuid.UUID, *models.Room) (bool, error) { return false, nil })
	boom := errors.New("boom")
	broken := GateFunc(func(context.Context, uuid.UUID, *models.Room) (bool, error) { return true, boom })

	tests := []struct {
		name    string
		gates   []Gate
		want    bool
		wantErr error
	}{
		{"no gates", nil, true, nil},
		{"all allow", []Gate{allow, allow}, true, nil},
		{"one denies", []Gate{allow, deny}, false, nil},
		{"error denies", []Gate{broken, allow}, false, boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := All(tt.gates...).CanAccess(ctx, caller, room)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CanAccess() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}
