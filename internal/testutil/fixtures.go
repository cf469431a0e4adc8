package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/uuid"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

// NextID returns a fresh positive id, usable as any Discord or Telegram id.
func NextID() int64 {
	return 1_000_000 + counter.Add(1)
}

// CreateTestGuild creates a guild with a unique Discord id.
func CreateTestGuild(t *testing.T, db *gorm.DB) *models.Guild {
	t.Helper()
	return CreateTestGuildWithID(t, db, NextID())
}

// CreateTestGuildWithID creates a guild with the given Discord guild id.
func CreateTestGuildWithID(t *testing.T, db *gorm.DB, discordGuildID int64) *models.Guild {
	t.Helper()

	guild := &models.Guild{
		DiscordGuildID: discordGuildID,
		Name:           fmt.Sprintf("Test Guild %d", discordGuildID),
		Owner:          fmt.Sprintf("owner-%d", discordGuildID),
	}
	if err := db.Create(guild).Error; err != nil {
		t.Fatalf("failed to create test guild: %v", err)
	}
	return guild
}

// CreateTestRole allow-lists a role in the guild.
func CreateTestRole(t *testing.T, db *gorm.DB, guild *models.Guild, discordRoleID int64, isAdmin bool) *models.Role {
	t.Helper()

	role := &models.Role{
		GuildID:       guild.ID,
		DiscordRoleID: discordRoleID,
		Name:          fmt.Sprintf("Test Role %d", discordRoleID),
		IsAdmin:       isAdmin,
	}
	if err := db.Create(role).Error; err != nil {
		t.Fatalf("failed to create test role: %v", err)
	}
	return role
}

// CreateTestChannel allow-lists a channel in the guild.
func CreateTestChannel(t *testing.T, db *gorm.DB, guild *models.Guild, discordChannelID int64) *models.Channel {
	t.Helper()

	channel := &models.Channel{
		GuildID:          guild.ID,
		DiscordChannelID: discordChannelID,
		Name:             fmt.Sprintf("test-channel-%d", discordChannelID),
	}
	if err := db.Create(channel).Error; err != nil {
		t.Fatalf("failed to create test channel: %v", err)
	}
	return channel
}

// CreateTestGroup pairs a Telegram group with the guild under the given label.
func CreateTestGroup(t *testing.T, db *gorm.DB, guild *models.Guild, label string) *models.TelegramGroup {
	t.Helper()

	group := &models.TelegramGroup{
		GuildID:         guild.ID,
		TelegramGroupID: -NextID(),
		Owner:           label,
	}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed to create test telegram group: %v", err)
	}
	return group
}

// CreateTestLink links a fresh Discord id to a fresh Telegram id.
func CreateTestLink(t *testing.T, db *gorm.DB) *models.AccountLink {
	t.Helper()

	link := &models.AccountLink{
		DiscordID:  NextID(),
		TelegramID: NextID(),
	}
	if err := db.Create(link).Error; err != nil {
		t.Fatalf("failed to create test account link: %v", err)
	}
	return link
}

// CreateTestToken stores an unconsumed linking token expiring at expiresAt.
func CreateTestToken(t *testing.T, db *gorm.DB, telegramID int64, label string, expiresAt time.Time) *models.LinkingToken {
	t.Helper()

	token := &models.LinkingToken{
		Token:      uuid.NewToken(),
		TelegramID: telegramID,
		GroupLabel: label,
		ExpiresAt:  expiresAt.UTC(),
	}
	if err := db.Create(token).Error; err != nil {
		t.Fatalf("failed to create test linking token: %v", err)
	}
	return token
}
