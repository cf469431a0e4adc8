package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
)

// guildService handles the guild registry.
type guildService struct {
	db *gorm.DB
}

// NewGuildService creates a new GuildServicer.
func NewGuildService(db *gorm.DB) GuildServicer {
	return &guildService{db: db}
}

// resolveGuild looks up a guild by its Discord id. It is the join-key
// translator every scoped operation goes through before touching a row.
func resolveGuild(tx *gorm.DB, discordGuildID int64) (*models.Guild, error) {
	var guild models.Guild
	if err := tx.Where("discord_guild_id = ?", discordGuildID).First(&guild).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnknownGuild
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &guild, nil
}

// RegisterGuild registers a new tenant.
func (s *guildService) RegisterGuild(discordGuildID int64, name, owner string) (*models.Guild, error) {
	name = strings.TrimSpace(name)
	owner = strings.TrimSpace(owner)
	if discordGuildID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "guild id must be positive")
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "guild name is required")
	}
	if owner == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "guild owner is required")
	}

	var count int64
	if err := s.db.Model(&models.Guild{}).
		Where("discord_guild_id = ?", discordGuildID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateGuild
	}

	guild := &models.Guild{
		DiscordGuildID: discordGuildID,
		Name:           name,
		Owner:          owner,
	}
	if err := s.db.Create(guild).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrDuplicateGuild
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Infow("guild registered", "guild_id", discordGuildID, "id", guild.ID)
	return guild, nil
}

// ResolveInternalID translates a Discord guild id into the internal key.
func (s *guildService) ResolveInternalID(discordGuildID int64) (string, error) {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return "", err
	}
	return guild.ID, nil
}

// GetGuild retrieves a guild by its Discord id.
func (s *guildService) GetGuild(discordGuildID int64) (*models.Guild, error) {
	return resolveGuild(s.db, discordGuildID)
}

// ListGuilds retrieves a paginated list of registered guilds.
func (s *guildService) ListGuilds(page pagination.PageRequest) (*pagination.PageResponse[models.Guild], error) {
	result, err := pagination.Query[models.Guild](s.db.Model(&models.Guild{}), page, "created_at ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return result, nil
}

// AllowedGuildIDs returns the Discord ids of every registered guild. The bot
// uses it to leave guilds nobody registered.
func (s *guildService) AllowedGuildIDs() ([]int64, error) {
	var ids []int64
	if err := s.db.Model(&models.Guild{}).Order("discord_guild_id ASC").Pluck("discord_guild_id", &ids).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return ids, nil
}

// UpdateOwner replaces the owner label of a guild.
func (s *guildService) UpdateOwner(discordGuildID int64, owner string) (*models.Guild, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "guild owner is required")
	}

	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	updates := models.Touch(map[string]interface{}{"owner": owner}, now)
	if err := s.db.Model(guild).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	guild.Owner = owner
	guild.UpdatedAt = now

	return guild, nil
}

// DeleteGuild deletes a guild together with its roles, channels and Telegram
// groups. This is destructive to every dependent row and runs as one
// transaction, so readers never observe a guild with half its scope gone.
func (s *guildService) DeleteGuild(internalID string) (*CascadeResult, error) {
	result := &CascadeResult{GuildID: internalID}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var guild models.Guild
		if err := tx.Where("id = ?", internalID).First(&guild).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrUnknownGuild
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		roles := tx.Where("guild_id = ?", guild.ID).Delete(&models.Role{})
		if roles.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, roles.Error)
		}
		result.Roles = roles.RowsAffected

		channels := tx.Where("guild_id = ?", guild.ID).Delete(&models.Channel{})
		if channels.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, channels.Error)
		}
		result.Channels = channels.RowsAffected

		groups := tx.Where("guild_id = ?", guild.ID).Delete(&models.TelegramGroup{})
		if groups.Error != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, groups.Error)
		}
		result.Groups = groups.RowsAffected

		if err := tx.Delete(&guild).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		logger.Get().Infow("guild deleted",
			"guild_id", guild.DiscordGuildID,
			"id", guild.ID,
			"roles", result.Roles,
			"channels", result.Channels,
			"telegram_groups", result.Groups,
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
