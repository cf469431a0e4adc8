package models

// TelegramGroup is a Telegram group paired with a guild. Owner is the label
// linking tokens use to name their target group.
type TelegramGroup struct {
	Base
	GuildID         string `gorm:"type:uuid;not null;uniqueIndex:idx_telegram_groups_guild_group,priority:1" json:"guild_id"`
	TelegramGroupID int64  `gorm:"not null;uniqueIndex:idx_telegram_groups_guild_group,priority:2" json:"telegram_group_id,string"`
	Owner           string `gorm:"not null;index" json:"owner"`
}
