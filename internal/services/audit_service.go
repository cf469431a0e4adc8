package services

import (
	"encoding/json"

	"gorm.io/gorm"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
)

// Audit actions recorded for operator mutations.
const (
	AuditAllowRole     = "ALLOW_ROLE"
	AuditRemoveRole    = "REMOVE_ROLE"
	AuditAllowChannel  = "ALLOW_CHANNEL"
	AuditRemoveChannel = "REMOVE_CHANNEL"
	AuditPairGroup     = "PAIR_GROUP"
	AuditUnpairGroup   = "UNPAIR_GROUP"
	AuditDeleteGuild   = "DELETE_GUILD"
)

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Write failures are logged and swallowed so an
// operator action never fails because its trail could not be stored.
func (s *auditService) Log(actorID, discordGuildID int64, action, resourceType, resourceID, ipAddress string, changes map[string]interface{}) {
	entry := &models.AuditLog{
		ActorID:      actorID,
		GuildID:      discordGuildID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(action, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor_id", actorID,
			"guild_id", discordGuildID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

// List returns a guild's audit trail, newest first. Entries outlive the
// guild itself, so an unregistered guild id is not an error.
func (s *auditService) List(discordGuildID int64, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	query := s.db.Model(&models.AuditLog{}).Where("guild_id = ?", discordGuildID)

	result, err := pagination.Query[models.AuditLog](query, page, "created_at DESC, id DESC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

func encodeChanges(action string, changes map[string]interface{}) string {
	if changes == nil {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		logger.Get().Errorw("failed to marshal audit log changes", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}
