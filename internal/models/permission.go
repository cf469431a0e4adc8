package models

// Role is a Discord role allow-listed in exactly one guild. The same Discord
// role id may be allowed in several guilds, once per guild.
type Role struct {
	Base
	GuildID       string `gorm:"type:uuid;not null;uniqueIndex:idx_roles_guild_role,priority:1" json:"guild_id"`
	DiscordRoleID int64  `gorm:"not null;uniqueIndex:idx_roles_guild_role,priority:2" json:"discord_role_id,string"`
	Name          string `gorm:"not null" json:"name"`
	IsAdmin       bool   `gorm:"not null;default:false" json:"is_admin"`
}

// Channel is a Discord channel where bot commands are allowed. Channel ids
// are unique across all guilds.
type Channel struct {
	Base
	GuildID          string `gorm:"type:uuid;not null;index" json:"guild_id"`
	DiscordChannelID int64  `gorm:"not null;uniqueIndex" json:"discord_channel_id,string"`
	Name             string `gorm:"not null" json:"name"`
}
