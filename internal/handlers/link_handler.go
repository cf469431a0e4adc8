package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
	"github.com/wllfaria/felbot/internal/services"
)

// LinkHandler exposes account links to the bot runtimes.
type LinkHandler struct {
	linkService   services.LinkServicer
	checkInterval time.Duration
	now           func() time.Time
}

// NewLinkHandler creates a new LinkHandler. checkInterval sets how old a
// subscription check may get before the link is due again.
func NewLinkHandler(linkService services.LinkServicer, checkInterval time.Duration) *LinkHandler {
	return &LinkHandler{linkService: linkService, checkInterval: checkInterval, now: time.Now}
}

// CreateLinkRequest represents the request body for linking two accounts directly
type CreateLinkRequest struct {
	DiscordID  int64 `json:"discord_id,string" binding:"required,snowflake"`
	TelegramID int64 `json:"telegram_id,string" binding:"required,snowflake"`
}

// CreateLink links a Discord account to a Telegram account
// @Summary     Create link
// @Description Link two accounts without a token. Linking the same pair again returns the existing link.
// @Tags        links
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body CreateLinkRequest true "Account ids"
// @Success     201 {object} map[string]interface{} "Link"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Either account is linked elsewhere"
// @Router      /internal/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	link, err := h.linkService.CreateLink(req.DiscordID, req.TelegramID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// GetByDiscord returns the link of a Discord account
// @Summary     Get link by Discord id
// @Tags        links
// @Produce     json
// @Security    ApiKeyAuth
// @Param       discord_id path string true "Discord user id"
// @Success     200 {object} map[string]interface{} "Link"
// @Failure     404 {object} ErrorResponse "Not linked"
// @Router      /internal/links/discord/{discord_id} [get]
func (h *LinkHandler) GetByDiscord(c *gin.Context) {
	discordID, err := parseSnowflakeParam(c, "discord_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	link, err := h.linkService.LookupByDiscord(discordID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

// GetByTelegram returns the link of a Telegram account
// @Summary     Get link by Telegram id
// @Tags        links
// @Produce     json
// @Security    ApiKeyAuth
// @Param       telegram_id path string true "Telegram user id"
// @Success     200 {object} map[string]interface{} "Link"
// @Failure     404 {object} ErrorResponse "Not linked"
// @Router      /internal/links/telegram/{telegram_id} [get]
func (h *LinkHandler) GetByTelegram(c *gin.Context) {
	telegramID, err := parseSnowflakeParam(c, "telegram_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	link, err := h.linkService.LookupByTelegram(telegramID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

// Unlink removes the link of a Discord account
// @Summary     Unlink
// @Tags        links
// @Produce     json
// @Security    ApiKeyAuth
// @Param       discord_id path string true "Discord user id"
// @Success     200 {object} map[string]interface{} "Unlinked"
// @Failure     404 {object} ErrorResponse "Not linked"
// @Router      /internal/links/discord/{discord_id} [delete]
func (h *LinkHandler) Unlink(c *gin.Context) {
	discordID, err := parseSnowflakeParam(c, "discord_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.linkService.Unlink(discordID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account unlinked"})
}

// MarkJoined records that the linked member joined the Telegram group
// @Summary     Mark group joined
// @Tags        links
// @Produce     json
// @Security    ApiKeyAuth
// @Param       discord_id path  string true  "Discord user id"
// @Param       at         query string false "RFC 3339 timestamp, defaults to now"
// @Success     200 {object} map[string]interface{} "Link"
// @Failure     404 {object} ErrorResponse "Not linked"
// @Router      /internal/links/discord/{discord_id}/joined [post]
func (h *LinkHandler) MarkJoined(c *gin.Context) {
	h.advance(c, h.linkService.MarkJoinedGroup)
}

// RecordCheck records a subscription check of the linked member
// @Summary     Record subscription check
// @Tags        links
// @Produce     json
// @Security    ApiKeyAuth
// @Param       discord_id path  string true  "Discord user id"
// @Param       at         query string false "RFC 3339 timestamp, defaults to now"
// @Success     200 {object} map[string]interface{} "Link"
// @Failure     404 {object} ErrorResponse "Not linked"
// @Router      /internal/links/discord/{discord_id}/checked [post]
func (h *LinkHandler) RecordCheck(c *gin.Context) {
	h.advance(c, h.linkService.RecordSubscriptionCheck)
}

func (h *LinkHandler) advance(c *gin.Context, update func(int64, time.Time) (*models.AccountLink, error)) {
	discordID, err := parseSnowflakeParam(c, "discord_id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	at, err := parseTimestamp(c.Query("at"), h.now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	link, err := update(discordID, at)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"link": link})
}

// ListDue returns links whose last subscription check is older than before
// @Summary     List links due for a subscription check
// @Tags        links
// @Produce     json
// @Security    ApiKeyAuth
// @Param       before    query string false "RFC 3339 cutoff, defaults to now minus the check interval"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Items per page"
// @Success     200 {object} map[string]interface{} "Paginated links"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /internal/links/due [get]
func (h *LinkHandler) ListDue(c *gin.Context) {
	before, err := parseTimestamp(c.Query("before"), h.now().Add(-h.checkInterval))
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.linkService.ListDueForCheck(before, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
