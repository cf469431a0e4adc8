package models

// AuditLog records operator actions against a guild's permission scope.
type AuditLog struct {
	Base
	ActorID      int64  `gorm:"not null;index" json:"actor_id,string"`
	GuildID      int64  `gorm:"index" json:"guild_id,string"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}
