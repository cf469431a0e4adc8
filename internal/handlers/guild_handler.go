package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/pagination"
	"github.com/wllfaria/felbot/internal/services"
)

// GuildHandler serves the guild registry and the authorization queries the
// bot runtime asks before acting inside a guild.
type GuildHandler struct {
	guildService      services.GuildServicer
	permissionService services.PermissionServicer
	auditService      services.AuditServicer
}

// NewGuildHandler creates a new GuildHandler
func NewGuildHandler(guildService services.GuildServicer, permissionService services.PermissionServicer, auditService services.AuditServicer) *GuildHandler {
	return &GuildHandler{
		guildService:      guildService,
		permissionService: permissionService,
		auditService:      auditService,
	}
}

// RegisterGuildRequest represents the request body for registering a guild
type RegisterGuildRequest struct {
	DiscordGuildID int64  `json:"discord_guild_id,string" binding:"required,snowflake"`
	Name           string `json:"name" binding:"required,max=100"`
	Owner          string `json:"owner" binding:"required,group_label"`
}

// UpdateOwnerRequest represents the request body for changing a guild owner label
type UpdateOwnerRequest struct {
	Owner string `json:"owner" binding:"required,group_label"`
}

// AuthorizationResponse reports whether a member may use the bot in a guild
type AuthorizationResponse struct {
	GuildID    string `json:"guild_id"`
	Subscriber bool   `json:"subscriber"`
	Admin      bool   `json:"admin"`
}

// RegisterGuild handles guild registration
// @Summary     Register a guild
// @Description Register a Discord guild as a tenant
// @Tags        guilds
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body RegisterGuildRequest true "Guild data"
// @Success     201 {object} map[string]interface{} "Guild registered"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Guild already registered"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/guilds [post]
func (h *GuildHandler) RegisterGuild(c *gin.Context) {
	var req RegisterGuildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	guild, err := h.guildService.RegisterGuild(req.DiscordGuildID, req.Name, req.Owner)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"guild": guild})
}

// ListGuilds returns registered guilds
// @Summary     List guilds
// @Description Get a paginated list of registered guilds
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Items per page"
// @Success     200 {object} map[string]interface{} "Paginated guilds"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/guilds [get]
func (h *GuildHandler) ListGuilds(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.guildService.ListGuilds(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAudit returns the guild's audit trail
// @Summary     List audit entries
// @Description Get the guild's operator actions, newest first
// @Tags        guilds
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id  path  string true  "Discord guild id"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Items per page"
// @Success     200 {object} map[string]interface{} "Paginated audit entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Not a guild admin"
// @Router      /guilds/{guild_id}/audit [get]
func (h *GuildHandler) ListAudit(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.auditService.List(guildID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AllowedGuildIDs returns the Discord ids of every registered guild
// @Summary     List allowed guild ids
// @Description The bot leaves any guild not in this list
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Success     200 {object} map[string]interface{} "Guild ids"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/allowed-guilds [get]
func (h *GuildHandler) AllowedGuildIDs(c *gin.Context) {
	ids, err := h.guildService.AllowedGuildIDs()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"guild_ids": formatIDs(ids)})
}

// GetGuild returns a single guild
// @Summary     Get guild
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Param       guild_id path string true "Discord guild id"
// @Success     200 {object} map[string]interface{} "Guild"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown guild"
// @Router      /internal/guilds/{guild_id} [get]
func (h *GuildHandler) GetGuild(c *gin.Context) {
	guildID, err := parseSnowflakeParam(c, "guild_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	guild, err := h.guildService.GetGuild(guildID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"guild": guild})
}

// UpdateOwner changes the owner label of a guild
// @Summary     Update guild owner
// @Tags        guilds
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       request body UpdateOwnerRequest true "Owner label"
// @Success     200 {object} map[string]interface{} "Guild updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown guild"
// @Router      /internal/guilds/{guild_id}/owner [put]
func (h *GuildHandler) UpdateOwner(c *gin.Context) {
	guildID, err := parseSnowflakeParam(c, "guild_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	guild, err := h.guildService.UpdateOwner(guildID, req.Owner)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"guild": guild})
}

// DeleteGuild removes a guild together with its roles, channels and groups.
// The bot calls it when it is removed from a guild; operators call it
// through the operator API.
// @Summary     Delete guild
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Success     200 {object} services.CascadeResult "Removed rows"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     403 {object} ErrorResponse "Not an admin of this guild"
// @Failure     404 {object} ErrorResponse "Unknown guild"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /internal/guilds/{guild_id} [delete]
// @Router      /guilds/{guild_id} [delete]
func (h *GuildHandler) DeleteGuild(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	internalID, err := h.guildService.ResolveInternalID(guildID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.guildService.DeleteGuild(internalID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditDeleteGuild, "guild", internalID, c.ClientIP(), map[string]interface{}{
		"roles":           result.Roles,
		"channels":        result.Channels,
		"telegram_groups": result.Groups,
	})

	c.JSON(http.StatusOK, result)
}

// Authorize reports whether a member holding the given roles is a
// subscriber and an admin in the guild
// @Summary     Check member authorization
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Param       guild_id path  string   true "Discord guild id"
// @Param       role_id  query []string true "Role ids the member holds" collectionFormat(multi)
// @Success     200 {object} AuthorizationResponse "Authorization result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown guild"
// @Router      /internal/guilds/{guild_id}/authorize [get]
func (h *GuildHandler) Authorize(c *gin.Context) {
	guildID, err := parseSnowflakeParam(c, "guild_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	roleIDs, err := parseIDList(c.QueryArray("role_id"), "role_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	subscriber, err := h.permissionService.IsSubscriber(guildID, roleIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}
	admin, err := h.permissionService.IsAdmin(guildID, roleIDs)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthorizationResponse{
		GuildID:    strconv.FormatInt(guildID, 10),
		Subscriber: subscriber,
		Admin:      admin,
	})
}

// RoleStatus reports how a single role is allow-listed in the guild
// @Summary     Check a role
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       role_id  path string true "Discord role id"
// @Success     200 {object} map[string]interface{} "Role status"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown guild"
// @Router      /internal/guilds/{guild_id}/roles/{role_id} [get]
func (h *GuildHandler) RoleStatus(c *gin.Context) {
	guildID, err := parseSnowflakeParam(c, "guild_id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	roleID, err := parseSnowflakeParam(c, "role_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	authorized, err := h.permissionService.IsAuthorized(guildID, roleID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	admin, err := h.permissionService.IsAdminRole(guildID, roleID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"authorized": authorized, "admin": admin})
}

// ChannelStatus reports whether bot commands are allowed in a channel. With
// a guild_id query the channel must also belong to that guild.
// @Summary     Check a channel
// @Tags        guilds
// @Produce     json
// @Security    ApiKeyAuth
// @Param       channel_id path  string true  "Discord channel id"
// @Param       guild_id   query string false "Discord guild id the message came from"
// @Success     200 {object} map[string]interface{} "Channel status"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Unknown guild"
// @Router      /internal/channels/{channel_id} [get]
func (h *GuildHandler) ChannelStatus(c *gin.Context) {
	channelID, err := parseSnowflakeParam(c, "channel_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if raw := c.Query("guild_id"); raw != "" {
		guildID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || guildID <= 0 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid guild_id"))
			return
		}

		allowed, err := h.permissionService.IsChannelAllowedIn(guildID, channelID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"allowed": allowed})
		return
	}

	guild, allowed, err := h.permissionService.IsChannelAllowed(channelID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"allowed": allowed, "guild": guild})
}
