package tenancy

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/wllfaria/felbot/internal/config"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/testutil"
	"github.com/wllfaria/felbot/internal/uuid"
)

func init() {
	logger.Init("test")
}

// Shapes of the tables between migrations 000002 and 000003: guild_id and
// owner exist but are still nullable.
type legacyGuild struct {
	ID             string `gorm:"primaryKey"`
	DiscordGuildID int64  `gorm:"not null;uniqueIndex"`
	Name           string `gorm:"not null"`
	Owner          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (legacyGuild) TableName() string { return "guilds" }

type legacyRole struct {
	ID            string `gorm:"primaryKey"`
	GuildID       *string
	DiscordRoleID int64  `gorm:"not null"`
	Name          string `gorm:"not null"`
	IsAdmin       bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (legacyRole) TableName() string { return "roles" }

type legacyChannel struct {
	ID               string `gorm:"primaryKey"`
	GuildID          *string
	DiscordChannelID int64  `gorm:"not null;uniqueIndex"`
	Name             string `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (legacyChannel) TableName() string { return "channels" }

func setupLegacyDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.OpenTestDB(t)
	if err := db.AutoMigrate(&legacyGuild{}, &legacyRole{}, &legacyChannel{}); err != nil {
		t.Fatalf("failed to migrate legacy schema: %v", err)
	}
	return db
}

func insertLegacyChannel(t *testing.T, db *gorm.DB, discordChannelID int64) {
	t.Helper()
	channel := &legacyChannel{ID: uuid.New(), DiscordChannelID: discordChannelID, Name: "channel"}
	if err := db.Create(channel).Error; err != nil {
		t.Fatalf("failed to insert legacy channel: %v", err)
	}
}

func insertLegacyRole(t *testing.T, db *gorm.DB, discordRoleID int64, isAdmin bool) {
	t.Helper()
	role := &legacyRole{ID: uuid.New(), DiscordRoleID: discordRoleID, Name: "role", IsAdmin: isAdmin}
	if err := db.Create(role).Error; err != nil {
		t.Fatalf("failed to insert legacy role: %v", err)
	}
}

func guildOf(t *testing.T, db *gorm.DB, discordGuildID int64) legacyGuild {
	t.Helper()
	var guild legacyGuild
	if err := db.Where("discord_guild_id = ?", discordGuildID).First(&guild).Error; err != nil {
		t.Fatalf("guild %d not found: %v", discordGuildID, err)
	}
	return guild
}

func testPlan() Plan {
	return Plan{
		PrimaryGuildID:   100,
		Guilds:           map[int64]string{100: "Main", 200: "Test"},
		ChannelOverrides: map[int64]int64{501: 200},
		RoleOverrides:    map[int64]int64{2: 200},
		DefaultOwner:     "felbot",
		OwnerOverrides:   map[int64]string{200: "tester"},
	}
}

func TestBackfill_ReattributesAndScopesEveryRow(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)

	insertLegacyChannel(t, db, 500)
	insertLegacyChannel(t, db, 501)
	insertLegacyRole(t, db, 1, true)
	insertLegacyRole(t, db, 2, false)

	report, err := Backfill(context.Background(), db, testPlan())
	testutil.AssertNoError(t, err)

	testutil.AssertCount(t, report.GuildsSeeded, 2, "seeded guilds")
	testutil.AssertCount(t, report.ChannelsDefaulted, 2, "defaulted channels")
	testutil.AssertCount(t, report.ChannelsReattributed, 1, "re-attributed channels")
	testutil.AssertCount(t, report.RolesDefaulted, 2, "defaulted roles")
	testutil.AssertCount(t, report.RolesReattributed, 1, "re-attributed roles")

	main := guildOf(t, db, 100)
	test := guildOf(t, db, 200)

	var count int64
	db.Model(&legacyChannel{}).Where("guild_id = ?", test.ID).Count(&count)
	testutil.AssertCount(t, count, 1, "channels in guild B")
	db.Model(&legacyChannel{}).Where("guild_id = ?", main.ID).Count(&count)
	testutil.AssertCount(t, count, 1, "channels in the primary guild")

	var moved legacyChannel
	db.Where("discord_channel_id = ?", 501).First(&moved)
	if moved.GuildID == nil || *moved.GuildID != test.ID {
		t.Errorf("expected channel 501 in guild B, got %v", moved.GuildID)
	}

	db.Model(&legacyChannel{}).Where("guild_id IS NULL").Count(&count)
	testutil.AssertCount(t, count, 0, "channels without guild")
	db.Model(&legacyRole{}).Where("guild_id IS NULL").Count(&count)
	testutil.AssertCount(t, count, 0, "roles without guild")

	if main.Owner == nil || *main.Owner != "felbot" {
		t.Errorf("expected primary owner felbot, got %v", main.Owner)
	}
	if test.Owner == nil || *test.Owner != "tester" {
		t.Errorf("expected test owner tester, got %v", test.Owner)
	}
}

func TestBackfill_Replay(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)

	insertLegacyChannel(t, db, 500)
	insertLegacyChannel(t, db, 501)

	_, err := Backfill(context.Background(), db, testPlan())
	testutil.AssertNoError(t, err)

	report, err := Backfill(context.Background(), db, testPlan())
	testutil.AssertNoError(t, err)

	testutil.AssertCount(t, report.GuildsSeeded, 0, "seeded guilds on replay")
	testutil.AssertCount(t, report.ChannelsDefaulted, 0, "defaulted channels on replay")
	testutil.AssertCount(t, report.ChannelsReattributed, 0, "re-attributed channels on replay")
	testutil.AssertCount(t, report.OwnersDefaulted, 0, "defaulted owners on replay")
	testutil.AssertCount(t, report.OwnersFixed, 0, "fixed owners on replay")

	test := guildOf(t, db, 200)
	var count int64
	db.Model(&legacyChannel{}).Where("guild_id = ?", test.ID).Count(&count)
	testutil.AssertCount(t, count, 1, "channels in guild B after replay")

	db.Model(&legacyGuild{}).Count(&count)
	testutil.AssertCount(t, count, 2, "guilds after replay")
}

func TestBackfill_NewRowsAfterFirstRun(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)

	insertLegacyChannel(t, db, 500)
	_, err := Backfill(context.Background(), db, testPlan())
	testutil.AssertNoError(t, err)

	// A row written without a guild during the rollout window
	insertLegacyChannel(t, db, 502)

	report, err := Backfill(context.Background(), db, testPlan())
	testutil.AssertNoError(t, err)
	testutil.AssertCount(t, report.ChannelsDefaulted, 1, "defaulted channels")

	main := guildOf(t, db, 100)
	var channel legacyChannel
	db.Where("discord_channel_id = ?", 502).First(&channel)
	if channel.GuildID == nil || *channel.GuildID != main.ID {
		t.Errorf("expected channel 502 in the primary guild, got %v", channel.GuildID)
	}
}

func TestBackfill_UnknownPrimaryGuildAborts(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)
	insertLegacyChannel(t, db, 500)

	plan := testPlan()
	plan.PrimaryGuildID = 999

	_, err := Backfill(context.Background(), db, plan)
	testutil.AssertAppError(t, err, "UNKNOWN_GUILD")

	var count int64
	db.Model(&legacyGuild{}).Count(&count)
	testutil.AssertCount(t, count, 0, "guilds after aborted backfill")
	db.Model(&legacyChannel{}).Where("guild_id IS NULL").Count(&count)
	testutil.AssertCount(t, count, 1, "unscoped channels after aborted backfill")
}

func TestBackfill_OverrideToUnknownGuildAborts(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)
	insertLegacyChannel(t, db, 500)

	plan := testPlan()
	plan.ChannelOverrides = map[int64]int64{500: 300}

	_, err := Backfill(context.Background(), db, plan)
	testutil.AssertAppError(t, err, "UNKNOWN_GUILD")

	var count int64
	db.Model(&legacyChannel{}).Where("guild_id IS NULL").Count(&count)
	testutil.AssertCount(t, count, 1, "unscoped channels after aborted backfill")
}

func TestBackfill_MissingOwnerAborts(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)

	plan := testPlan()
	plan.DefaultOwner = ""
	plan.OwnerOverrides = nil

	_, err := Backfill(context.Background(), db, plan)
	testutil.AssertAppError(t, err, "BACKFILL_INCOMPLETE")
}

func TestBackfill_RequiresPrimaryGuild(t *testing.T) {
	db := setupLegacyDB(t)
	defer testutil.TeardownTestDB(t, db)

	_, err := Backfill(context.Background(), db, Plan{})
	testutil.AssertAppError(t, err, "INVALID_INPUT")
}

func TestNewPlan(t *testing.T) {
	plan := NewPlan(config.BackfillConfig{
		PrimaryGuildID:   100,
		Guilds:           map[int64]string{100: "Main"},
		ChannelOverrides: map[int64]int64{501: 200},
		DefaultOwner:     "felbot",
	})

	if plan.PrimaryGuildID != 100 || plan.Guilds[100] != "Main" || plan.ChannelOverrides[501] != 200 || plan.DefaultOwner != "felbot" {
		t.Errorf("unexpected plan %+v", plan)
	}
}
