package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/services"
)

// GroupHandler manages the Telegram groups paired with a guild.
type GroupHandler struct {
	groupService services.GroupServicer
	auditService services.AuditServicer
}

// NewGroupHandler creates a new GroupHandler
func NewGroupHandler(groupService services.GroupServicer, auditService services.AuditServicer) *GroupHandler {
	return &GroupHandler{groupService: groupService, auditService: auditService}
}

// PairGroupRequest represents the request body for pairing a Telegram group
type PairGroupRequest struct {
	TelegramGroupID int64  `json:"telegram_group_id,string" binding:"required"`
	Owner           string `json:"owner" binding:"required,group_label"`
}

// ListGroups returns the Telegram groups paired with a guild
// @Summary     List Telegram groups
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Success     200 {object} map[string]interface{} "Groups"
// @Failure     403 {object} ErrorResponse "Not an admin of this guild"
// @Router      /guilds/{guild_id}/groups [get]
func (h *GroupHandler) ListGroups(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	groups, err := h.groupService.GroupsForGuild(guildID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// PairGroup pairs a Telegram group with a guild
// @Summary     Pair a Telegram group
// @Tags        groups
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       request body PairGroupRequest true "Group data"
// @Success     201 {object} map[string]interface{} "Group paired"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Group already paired"
// @Router      /guilds/{guild_id}/groups [post]
func (h *GroupHandler) PairGroup(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PairGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	group, err := h.groupService.PairGroup(guildID, req.TelegramGroupID, req.Owner)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditPairGroup, "telegram_group", group.ID, c.ClientIP(), map[string]interface{}{
		"telegram_group_id": strconv.FormatInt(req.TelegramGroupID, 10),
		"owner":             req.Owner,
	})

	c.JSON(http.StatusCreated, gin.H{"group": group})
}

// UnpairGroup removes a Telegram group from a guild
// @Summary     Unpair a Telegram group
// @Tags        groups
// @Produce     json
// @Security    BearerAuth
// @Param       guild_id path string true "Discord guild id"
// @Param       group_id path string true "Telegram group id"
// @Success     200 {object} map[string]interface{} "Group unpaired"
// @Failure     404 {object} ErrorResponse "Group not paired with this guild"
// @Router      /guilds/{guild_id}/groups/{group_id} [delete]
func (h *GroupHandler) UnpairGroup(c *gin.Context) {
	guildID, err := getGuildID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	groupID, err := parseChatIDParam(c, "group_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.groupService.UnpairGroup(guildID, groupID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(auditActor(c), guildID, services.AuditUnpairGroup, "telegram_group", strconv.FormatInt(groupID, 10), c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"message": "Group unpaired"})
}

// FindGroup returns the group a linking token label points at
// @Summary     Find a group by owner label
// @Tags        groups
// @Produce     json
// @Security    ApiKeyAuth
// @Param       label path string true "Owner label"
// @Success     200 {object} map[string]interface{} "Group"
// @Failure     404 {object} ErrorResponse "No group with this label"
// @Router      /internal/groups/{label} [get]
func (h *GroupHandler) FindGroup(c *gin.Context) {
	group, err := h.groupService.FindByLabel(c.Param("label"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"group": group})
}
