package db

import (
	"path/filepath"
	"testing"
)

func TestConnect_UnsupportedDriver(t *testing.T) {
	if _, err := Connect("mysql", "whatever"); err == nil {
		t.Error("Connect() should reject unknown drivers")
	}
}

func TestConnect_SQLiteMigrate(t *testing.T) {
	gdb, err := Connect(DriverSQLite, filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"users", "rooms", "room_members", "messages"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("table %s missing after Migrate()", table)
		}
	}
	if !gdb.Migrator().HasIndex("messages", "idx_msg_room_created") {
		t.Error("messages (room_id, created_at) index missing")
	}
}
