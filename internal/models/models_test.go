package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestMemberKey_OrderIndependent(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	k1 := MemberKey([]uuid.UUID{a, b, c})
	k2 := MemberKey([]uuid.UUID{c, a, b})
	k3 := MemberKey([]uuid.UUID{b, c, a, a})

	if k1 != k2 || k1 != k3 {
		t.Errorf("MemberKey() differs across permutations: %s %s %s", k1, k2, k3)
	}
	if len(k1) != 64 {
		t.Errorf("MemberKey() length = %d, want 64", len(k1))
	}
}

func TestMemberKey_DistinctSets(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	if MemberKey([]uuid.UUID{a, b}) == MemberKey([]uuid.UUID{a, b, c}) {
		t.Error("MemberKey() collided for different member sets")
	}
	if MemberKey([]uuid.UUID{a, b}) == MemberKey([]uuid.UUID{a, c}) {
		t.Error("MemberKey() collided for different member sets")
	}
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Alice", "alice"},
		{"  BOB ", "bob"},
		{"carol", "carol"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeUsername(tt.in); got != tt.want {
			t.Errorf("NormalizeUsername(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoom_HasMember(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	room := Room{ID: uuid.New(), Members: []RoomMember{{UserID: a}, {UserID: b}}}

	if !room.HasMember(a) || !room.HasMember(b) {
		t.Error("HasMember() = false for a member")
	}
	if room.HasMember(uuid.New()) {
		t.Error("HasMember() = true for a stranger")
	}
	if got := len(room.MemberIDs()); got != 2 {
		t.Errorf("MemberIDs() len = %d, want 2", got)
	}
}
