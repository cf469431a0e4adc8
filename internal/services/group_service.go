package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/models"
)

// groupService handles the Telegram group directory.
type groupService struct {
	db *gorm.DB
}

// NewGroupService creates a new GroupServicer.
func NewGroupService(db *gorm.DB) GroupServicer {
	return &groupService{db: db}
}

// PairGroup pairs a Telegram group with a guild under an owner label.
func (s *groupService) PairGroup(discordGuildID, telegramGroupID int64, owner string) (*models.TelegramGroup, error) {
	owner = strings.TrimSpace(owner)
	if telegramGroupID == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "telegram group id is required")
	}
	if owner == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "group owner is required")
	}

	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.TelegramGroup{}).
		Where("guild_id = ? AND telegram_group_id = ?", guild.ID, telegramGroupID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicatePairing
	}

	group := &models.TelegramGroup{
		GuildID:         guild.ID,
		TelegramGroupID: telegramGroupID,
		Owner:           owner,
	}
	if err := s.db.Create(group).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, apperrors.ErrDuplicatePairing
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return nil, apperrors.ErrUnknownGuild
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return group, nil
}

// GroupsForGuild returns every Telegram group paired with the guild.
func (s *groupService) GroupsForGuild(discordGuildID int64) ([]models.TelegramGroup, error) {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	groups := []models.TelegramGroup{}
	if err := s.db.Where("guild_id = ?", guild.ID).Order("created_at ASC").Find(&groups).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return groups, nil
}

// UnpairGroup removes a pairing between a guild and a Telegram group.
func (s *groupService) UnpairGroup(discordGuildID, telegramGroupID int64) error {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return err
	}

	result := s.db.Where("guild_id = ? AND telegram_group_id = ?", guild.ID, telegramGroupID).Delete(&models.TelegramGroup{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrGroupNotFound
	}

	return nil
}

// FindByLabel returns the group a linking token label points at.
func (s *groupService) FindByLabel(label string) (*models.TelegramGroup, error) {
	return findGroupByLabel(s.db, label)
}

// findGroupByLabel resolves an owner label to a group. When several guilds
// paired groups under the same label, the oldest pairing wins.
func findGroupByLabel(tx *gorm.DB, label string) (*models.TelegramGroup, error) {
	var group models.TelegramGroup
	if err := tx.Where("owner = ?", strings.TrimSpace(label)).Order("created_at ASC").First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGroupNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &group, nil
}
