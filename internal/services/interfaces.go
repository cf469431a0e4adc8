package services

import (
	"time"

	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
)

// CascadeResult reports how many dependents were removed with a guild.
type CascadeResult struct {
	GuildID  string `json:"guild_id"`
	Roles    int64  `json:"roles"`
	Channels int64  `json:"channels"`
	Groups   int64  `json:"telegram_groups"`
}

// GuildServicer defines the contract for the guild registry. Guilds are
// addressed by their Discord guild id everywhere except DeleteGuild, which
// takes the internal key returned by ResolveInternalID.
type GuildServicer interface {
	RegisterGuild(discordGuildID int64, name, owner string) (*models.Guild, error)
	ResolveInternalID(discordGuildID int64) (string, error)
	GetGuild(discordGuildID int64) (*models.Guild, error)
	ListGuilds(page pagination.PageRequest) (*pagination.PageResponse[models.Guild], error)
	AllowedGuildIDs() ([]int64, error)
	UpdateOwner(discordGuildID int64, owner string) (*models.Guild, error)
	DeleteGuild(internalID string) (*CascadeResult, error)
}

// PermissionServicer defines the contract for per-guild role and channel
// allow-lists. Every query is scoped to a single guild.
type PermissionServicer interface {
	AllowRole(discordGuildID, discordRoleID int64, name string, isAdmin bool) (*models.Role, error)
	RemoveRole(discordGuildID, discordRoleID int64) error
	ListRoles(discordGuildID int64) ([]models.Role, error)
	AllowChannel(discordGuildID, discordChannelID int64, name string) (*models.Channel, error)
	RemoveChannel(discordGuildID, discordChannelID int64) error
	ListChannels(discordGuildID int64) ([]models.Channel, error)
	IsAuthorized(discordGuildID, discordRoleID int64) (bool, error)
	IsAdminRole(discordGuildID, discordRoleID int64) (bool, error)
	IsChannelAllowed(discordChannelID int64) (*models.Guild, bool, error)
	IsChannelAllowedIn(discordGuildID, discordChannelID int64) (bool, error)
	IsSubscriber(discordGuildID int64, memberRoleIDs []int64) (bool, error)
	IsAdmin(discordGuildID int64, memberRoleIDs []int64) (bool, error)
}

// GroupServicer defines the contract for the Telegram group directory.
type GroupServicer interface {
	PairGroup(discordGuildID, telegramGroupID int64, owner string) (*models.TelegramGroup, error)
	GroupsForGuild(discordGuildID int64) ([]models.TelegramGroup, error)
	UnpairGroup(discordGuildID, telegramGroupID int64) error
	FindByLabel(label string) (*models.TelegramGroup, error)
}

// LinkServicer defines the contract for Discord to Telegram account links.
type LinkServicer interface {
	CreateLink(discordID, telegramID int64) (*models.AccountLink, error)
	LookupByDiscord(discordID int64) (*models.AccountLink, error)
	LookupByTelegram(telegramID int64) (*models.AccountLink, error)
	MarkJoinedGroup(discordID int64, at time.Time) (*models.AccountLink, error)
	RecordSubscriptionCheck(discordID int64, at time.Time) (*models.AccountLink, error)
	Unlink(discordID int64) error
	ListDueForCheck(before time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.AccountLink], error)
}

// RedeemedToken is what a successful redemption hands back to the caller.
type RedeemedToken struct {
	TelegramID int64  `json:"telegram_id,string"`
	GroupLabel string `json:"group_label"`
}

// CompletedLink is the outcome of redeeming a token into an account link.
type CompletedLink struct {
	Link  *models.AccountLink   `json:"link"`
	Group *models.TelegramGroup `json:"group"`
}

// LinkingServicer defines the contract for the single-use linking token flow.
type LinkingServicer interface {
	IssueToken(telegramID int64, groupLabel string) (*models.LinkingToken, error)
	RedeemToken(token string) (*RedeemedToken, error)
	CompleteLink(token string, discordID int64) (*CompletedLink, error)
	SweepExpired(before time.Time) (int64, error)
}

// AuditServicer records operator mutations and lists them per guild.
type AuditServicer interface {
	Log(actorID, discordGuildID int64, action, resourceType, resourceID, ipAddress string, changes map[string]interface{})
	List(discordGuildID int64, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}
