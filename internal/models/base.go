package models

import (
	"time"

	"github.com/wllfaria/felbot/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables
type Base struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}

// Touch stamps updated_at on a column update set. Every mutating update goes
// through it so conditional updates built from maps refresh the timestamp too.
func Touch(updates map[string]interface{}, now time.Time) map[string]interface{} {
	if updates == nil {
		updates = make(map[string]interface{}, 1)
	}
	updates["updated_at"] = now
	return updates
}
