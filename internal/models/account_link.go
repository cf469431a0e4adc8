package models

import "time"

// AccountLink maps one Discord identity to one Telegram identity.
type AccountLink struct {
	Base
	DiscordID             int64      `gorm:"not null;uniqueIndex" json:"discord_id,string"`
	TelegramID            int64      `gorm:"not null;uniqueIndex" json:"telegram_id,string"`
	JoinedGroupAt         *time.Time `json:"joined_group_at,omitempty"`
	LastSubscriptionCheck *time.Time `gorm:"index" json:"last_subscription_check,omitempty"`
}
