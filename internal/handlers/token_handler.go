package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/services"
)

// TokenHandler drives the linking token flow: the Telegram bot issues a
// token, the member opens it on the Discord side, which completes the link.
type TokenHandler struct {
	linkingService services.LinkingServicer
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(linkingService services.LinkingServicer) *TokenHandler {
	return &TokenHandler{linkingService: linkingService}
}

// IssueTokenRequest represents the request body for issuing a linking token
type IssueTokenRequest struct {
	TelegramID int64  `json:"telegram_id,string" binding:"required,snowflake"`
	GroupLabel string `json:"group_label" binding:"required,group_label"`
}

// RedeemTokenRequest represents the request body for redeeming a token
type RedeemTokenRequest struct {
	Token string `json:"token" binding:"required,max=64"`
}

// CompleteLinkRequest represents the request body for completing a link
type CompleteLinkRequest struct {
	Token     string `json:"token" binding:"required,max=64"`
	DiscordID int64  `json:"discord_id,string" binding:"required,snowflake"`
}

// IssueToken creates a linking token for a Telegram user
// @Summary     Issue linking token
// @Tags        tokens
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body IssueTokenRequest true "Token request"
// @Success     201 {object} map[string]interface{} "Token issued"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "No group with this label"
// @Failure     409 {object} ErrorResponse "Telegram account already linked"
// @Router      /internal/tokens [post]
func (h *TokenHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	token, err := h.linkingService.IssueToken(req.TelegramID, req.GroupLabel)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// RedeemToken consumes a token without creating a link
// @Summary     Redeem linking token
// @Tags        tokens
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body RedeemTokenRequest true "Token"
// @Success     200 {object} services.RedeemedToken "Token redeemed"
// @Failure     404 {object} ErrorResponse "Unknown token"
// @Failure     409 {object} ErrorResponse "Token already consumed"
// @Failure     410 {object} ErrorResponse "Token expired"
// @Router      /internal/tokens/redeem [post]
func (h *TokenHandler) RedeemToken(c *gin.Context) {
	var req RedeemTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	redeemed, err := h.linkingService.RedeemToken(req.Token)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, redeemed)
}

// CompleteLink redeems a token and links the Telegram account it was issued
// for to a Discord account
// @Summary     Complete link
// @Tags        tokens
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body CompleteLinkRequest true "Token and Discord id"
// @Success     201 {object} services.CompletedLink "Link created"
// @Failure     404 {object} ErrorResponse "Unknown token"
// @Failure     409 {object} ErrorResponse "Token consumed or account already linked"
// @Failure     410 {object} ErrorResponse "Token expired"
// @Router      /internal/tokens/complete [post]
func (h *TokenHandler) CompleteLink(c *gin.Context) {
	var req CompleteLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	completed, err := h.linkingService.CompleteLink(req.Token, req.DiscordID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, completed)
}
