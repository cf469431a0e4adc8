package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/services"
)

// PermissionHandler manages the role and channel allow-lists of a guild.
// Guild admins reach it through OperatorAuthMiddleware; the bot reaches role
// creation through the internal API to seed the first admin role.
type PermissionHandler struct {
	permissionService services.PermissionServicer
	auditService      services.AuditServicer
}

// NewPermissionHandler creates a new PermissionHandler
func NewPermissionHandler(permissionService services.PermissionServicer, auditService services.AuditServicer) *PermissionHandler {
	return &PermissionHandler{permissionService: permissionService, auditService: auditService}
}

// AllowRoleRequest represents the request body for allow-listing a role
type AllowRoleRequest struct {
	DiscordRoleID int64  `json:"discord_role_id,string" binding:"required,snowflake"`
	Name          string `json:"name" binding:"required,max=100"`
	IsAdmin       bool   `json:"is_admin"`
}

// AllowChannelRequest represents the request body for allow-listing a channel
type AllowChannelRequest struct {
	DiscordChannelID int64  `json:"discord_channel_id,string" binding:"required,snowflake"`
	Name             string `json:"name" binding:"required,max=100"`
}

// ListRoles returns the allowed roles of a guild
// @Summary     List roles
// @Tags        permissions
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Success     200 {object} map[string]interface{} "Roles"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not an admin of this guild"
// @Router      /guilds/{guild_id}/roles [get]
func (h *PermissionHandler) ListRoles(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	roles, err := h.permissionService.ListRoles(guildID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

// AllowRole adds a role to the guild allow-list
// @Summary     Allow a role
// @Tags        permissions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       request body AllowRoleRequest true "Role data"
// @Success     201 {object} map[string]interface{} "Role allowed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not an admin of this guild"
// @Failure     409 {object} ErrorResponse "Role already allowed"
// @Router      /guilds/{guild_id}/roles [post]
func (h *PermissionHandler) AllowRole(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllowRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	role, err := h.permissionService.AllowRole(guildID, req.DiscordRoleID, req.Name, req.IsAdmin)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditAllowRole, "role", role.ID, c.ClientIP(), map[string]interface{}{
		"discord_role_id": strconv.FormatInt(req.DiscordRoleID, 10),
		"name":            req.Name,
		"is_admin":        req.IsAdmin,
	})

	c.JSON(http.StatusCreated, gin.H{"role": role})
}

// RemoveRole removes a role from the guild allow-list
// @Summary     Remove a role
// @Tags        permissions
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       role_id  path string true "Discord role id"
// @Success     200 {object} map[string]interface{} "Role removed"
// @Failure     403 {object} ErrorResponse "Not an admin of this guild"
// @Failure     404 {object} ErrorResponse "Role not allowed in this guild"
// @Router      /guilds/{guild_id}/roles/{role_id} [delete]
func (h *PermissionHandler) RemoveRole(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	roleID, err := parseSnowflakeParam(c, "role_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.permissionService.RemoveRole(guildID, roleID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditRemoveRole, "role", strconv.FormatInt(roleID, 10), c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Role removed"})
}

// ListChannels returns the allowed channels of a guild
// @Summary     List channels
// @Tags        permissions
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Success     200 {object} map[string]interface{} "Channels"
// @Failure     403 {object} ErrorResponse "Not an admin of this guild"
// @Router      /guilds/{guild_id}/channels [get]
func (h *PermissionHandler) ListChannels(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	channels, err := h.permissionService.ListChannels(guildID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// AllowChannel adds a channel to the guild allow-list
// @Summary     Allow a channel
// @Tags        permissions
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       request body AllowChannelRequest true "Channel data"
// @Success     201 {object} map[string]interface{} "Channel allowed"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Channel already allowed"
// @Router      /guilds/{guild_id}/channels [post]
func (h *PermissionHandler) AllowChannel(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req AllowChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	channel, err := h.permissionService.AllowChannel(guildID, req.DiscordChannelID, req.Name)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditAllowChannel, "channel", channel.ID, c.ClientIP(), map[string]interface{}{
		"discord_channel_id": strconv.FormatInt(req.DiscordChannelID, 10),
		"name":               req.Name,
	})

	c.JSON(http.StatusCreated, gin.H{"channel": channel})
}

// RemoveChannel removes a channel from the guild allow-list
// @Summary     Remove a channel
// @Tags        permissions
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id   path string true "Discord guild id"
// @Param       channel_id path string true "Discord channel id"
// @Success     200 {object} map[string]interface{} "Channel removed"
// @Failure     404 {object} ErrorResponse "Channel not allowed in this guild"
// @Router      /guilds/{guild_id}/channels/{channel_id} [delete]
func (h *PermissionHandler) RemoveChannel(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	channelID, err := parseSnowflakeParam(c, "channel_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.permissionService.RemoveChannel(guildID, channelID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditRemoveChannel, "channel", strconv.FormatInt(channelID, 10), c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Channel removed"})
}
