package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/models"
)

// permissionService handles per-guild role and channel allow-lists.
type permissionService struct {
	db *gorm.DB
}

// NewPermissionService creates a new PermissionServicer.
func NewPermissionService(db *gorm.DB) PermissionServicer {
	return &permissionService{db: db}
}

// AllowRole allow-lists a Discord role inside one guild.
func (s *permissionService) AllowRole(discordGuildID, discordRoleID int64, name string, isAdmin bool) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if discordRoleID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "role id must be positive")
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "role name is required")
	}

	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.Role{}).
		Where("guild_id = ? AND discord_role_id = ?", guild.ID, discordRoleID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateRole
	}

	role := &models.Role{
		GuildID:       guild.ID,
		DiscordRoleID: discordRoleID,
		Name:          name,
		IsAdmin:       isAdmin,
	}
	if err := s.db.Create(role).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, apperrors.ErrDuplicateRole
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return nil, apperrors.ErrUnknownGuild
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return role, nil
}

// RemoveRole removes a role from one guild's allow-list.
func (s *permissionService) RemoveRole(discordGuildID, discordRoleID int64) error {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return err
	}

	result := s.db.Where("guild_id = ? AND discord_role_id = ?", guild.ID, discordRoleID).Delete(&models.Role{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrRoleNotFound
	}

	return nil
}

// ListRoles returns the roles allowed in a guild.
func (s *permissionService) ListRoles(discordGuildID int64) ([]models.Role, error) {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	roles := []models.Role{}
	if err := s.db.Where("guild_id = ?", guild.ID).Order("discord_role_id ASC").Find(&roles).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return roles, nil
}

// AllowChannel allow-lists a channel for bot commands. Channel ids are unique
// across every guild, so reusing one fails even when the guild is the same.
func (s *permissionService) AllowChannel(discordGuildID, discordChannelID int64, name string) (*models.Channel, error) {
	name = strings.TrimSpace(name)
	if discordChannelID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "channel id must be positive")
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "channel name is required")
	}

	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.Model(&models.Channel{}).
		Where("discord_channel_id = ?", discordChannelID).
		Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateChannel
	}

	channel := &models.Channel{
		GuildID:          guild.ID,
		DiscordChannelID: discordChannelID,
		Name:             name,
	}
	if err := s.db.Create(channel).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, apperrors.ErrDuplicateChannel
		case errors.Is(err, gorm.ErrForeignKeyViolated):
			return nil, apperrors.ErrUnknownGuild
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return channel, nil
}

// RemoveChannel removes a channel from a guild's allow-list. A channel owned
// by another guild is reported as not found.
func (s *permissionService) RemoveChannel(discordGuildID, discordChannelID int64) error {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return err
	}

	result := s.db.Where("guild_id = ? AND discord_channel_id = ?", guild.ID, discordChannelID).Delete(&models.Channel{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrChannelNotFound
	}

	return nil
}

// ListChannels returns the channels allowed in a guild.
func (s *permissionService) ListChannels(discordGuildID int64) ([]models.Channel, error) {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return nil, err
	}

	channels := []models.Channel{}
	if err := s.db.Where("guild_id = ?", guild.ID).Order("discord_channel_id ASC").Find(&channels).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return channels, nil
}

// IsAuthorized reports whether the role is allowed in the given guild. The
// same role id allowed in a different guild never counts.
func (s *permissionService) IsAuthorized(discordGuildID, discordRoleID int64) (bool, error) {
	return s.anyRole(discordGuildID, []int64{discordRoleID}, false)
}

// IsAdminRole reports whether the role is an admin role in the given guild.
func (s *permissionService) IsAdminRole(discordGuildID, discordRoleID int64) (bool, error) {
	return s.anyRole(discordGuildID, []int64{discordRoleID}, true)
}

// IsSubscriber reports whether any of a member's roles is allowed in the guild.
func (s *permissionService) IsSubscriber(discordGuildID int64, memberRoleIDs []int64) (bool, error) {
	return s.anyRole(discordGuildID, memberRoleIDs, false)
}

// IsAdmin reports whether any of a member's roles is an admin role in the guild.
func (s *permissionService) IsAdmin(discordGuildID int64, memberRoleIDs []int64) (bool, error) {
	return s.anyRole(discordGuildID, memberRoleIDs, true)
}

func (s *permissionService) anyRole(discordGuildID int64, roleIDs []int64, adminOnly bool) (bool, error) {
	guild, err := resolveGuild(s.db, discordGuildID)
	if err != nil {
		return false, err
	}
	if len(roleIDs) == 0 {
		return false, nil
	}

	query := s.db.Model(&models.Role{}).Where("guild_id = ? AND discord_role_id IN ?", guild.ID, roleIDs)
	if adminOnly {
		query = query.Where("is_admin = ?", true)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return count > 0, nil
}

// IsChannelAllowed resolves a channel to the guild that allow-listed it. The
// caller must still compare the returned guild against its own context.
func (s *permissionService) IsChannelAllowed(discordChannelID int64) (*models.Guild, bool, error) {
	var channel models.Channel
	if err := s.db.Where("discord_channel_id = ?", discordChannelID).First(&channel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var guild models.Guild
	if err := s.db.Where("id = ?", channel.GuildID).First(&guild).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return &guild, true, nil
}

// IsChannelAllowedIn reports whether the channel is allowed and owned by the
// given guild.
func (s *permissionService) IsChannelAllowedIn(discordGuildID, discordChannelID int64) (bool, error) {
	if _, err := resolveGuild(s.db, discordGuildID); err != nil {
		return false, err
	}

	guild, ok, err := s.IsChannelAllowed(discordChannelID)
	if err != nil || !ok {
		return false, err
	}
	return guild.DiscordGuildID == discordGuildID, nil
}
