package services

import (
	"testing"

	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
	"github.com/wllfaria/felbot/internal/testutil"
)

func TestAuditLog(t *testing.T) {
	t.Run("records_entry", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuditService(db)

		svc.Log(42, 100, AuditAllowRole, "role", "role-1", "10.0.0.1", map[string]interface{}{"discord_role_id": "7"})

		var entries []models.AuditLog
		if err := db.Find(&entries).Error; err != nil {
			t.Fatalf("failed to load audit log: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}

		entry := entries[0]
		if entry.ActorID != 42 || entry.GuildID != 100 {
			t.Errorf("expected actor 42 in guild 100, got actor %d in guild %d", entry.ActorID, entry.GuildID)
		}
		if entry.Action != AuditAllowRole {
			t.Errorf("expected action %s, got %s", AuditAllowRole, entry.Action)
		}
		if entry.IPAddress != "10.0.0.1" {
			t.Errorf("expected ip 10.0.0.1, got %s", entry.IPAddress)
		}
		if entry.Changes != `{"discord_role_id":"7"}` {
			t.Errorf("unexpected changes: %s", entry.Changes)
		}
	})

	t.Run("unencodable_changes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAuditService(db)

		svc.Log(0, 100, AuditDeleteGuild, "guild", "g", "", map[string]interface{}{"bad": make(chan int)})

		var entry models.AuditLog
		if err := db.First(&entry).Error; err != nil {
			t.Fatalf("failed to load audit log: %v", err)
		}
		if entry.Changes != "{}" {
			t.Errorf("expected empty object for unencodable changes, got %s", entry.Changes)
		}
	})

	t.Run("write_failure_is_swallowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := NewAuditService(db)
		testutil.TeardownTestDB(t, db)

		svc.Log(1, 100, AuditPairGroup, "telegram_group", "x", "", nil)
	})
}

func TestAuditList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAuditService(db)

	svc.Log(1, 100, AuditAllowRole, "role", "a", "", nil)
	svc.Log(1, 100, AuditRemoveRole, "role", "a", "", nil)
	svc.Log(1, 200, AuditAllowRole, "role", "b", "", nil)

	result, err := svc.List(100, pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if result.TotalItems != 2 {
		t.Fatalf("expected 2 entries for guild 100, got %d", result.TotalItems)
	}
	for _, entry := range result.Data {
		if entry.GuildID != 100 {
			t.Errorf("entry from guild %d leaked into guild 100", entry.GuildID)
		}
	}

	empty, err := svc.List(999, pagination.PageRequest{})
	testutil.AssertNoError(t, err)
	if empty.TotalItems != 0 || len(empty.Data) != 0 {
		t.Errorf("expected no entries for unknown guild, got %d", empty.TotalItems)
	}
}
