package models

// Guild is a Discord community acting as the tenant root. Roles, channels and
// Telegram groups all reference it; deleting a guild deletes them too.
type Guild struct {
	Base
	DiscordGuildID int64  `gorm:"not null;uniqueIndex" json:"discord_guild_id,string"`
	Name           string `gorm:"not null" json:"name"`
	Owner          string `gorm:"not null" json:"owner"`

	// Relationships
	Roles          []Role          `gorm:"foreignKey:GuildID;constraint:OnDelete:CASCADE" json:"roles,omitempty"`
	Channels       []Channel       `gorm:"foreignKey:GuildID;constraint:OnDelete:CASCADE" json:"channels,omitempty"`
	TelegramGroups []TelegramGroup `gorm:"foreignKey:GuildID;constraint:OnDelete:CASCADE" json:"telegram_groups,omitempty"`
}
