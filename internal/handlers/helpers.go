package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/middleware"
)

// ErrorDetail represents the body of an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// getActorID extracts the authenticated operator's Discord id from the Gin
// context. Returns ErrUnauthorized if not present.
func getActorID(c *gin.Context) (int64, error) {
	actorID, exists := c.Get(middleware.DiscordIDKey)
	if !exists {
		return 0, apperrors.ErrUnauthorized
	}
	return actorID.(int64), nil
}

// auditActor returns the operator behind the request, or 0 for requests the
// bot runtime makes on the internal API.
func auditActor(c *gin.Context) int64 {
	actorID, err := getActorID(c)
	if err != nil {
		return 0
	}
	return actorID
}

// getGuildID returns the Discord guild id OperatorAuthMiddleware resolved
// from the path.
func getGuildID(c *gin.Context) (int64, error) {
	guildID, exists := c.Get(middleware.GuildIDKey)
	if !exists {
		return parseSnowflakeParam(c, "guild_id")
	}
	return guildID.(int64), nil
}

// parseSnowflakeParam parses a positive Discord or Telegram id path parameter.
// Returns ErrInvalidInput if the parameter is not a valid positive integer.
func parseSnowflakeParam(c *gin.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// parseTimestamp parses an optional RFC 3339 timestamp, falling back to now.
func parseTimestamp(raw string, now time.Time) (time.Time, error) {
	if raw == "" {
		return now.UTC(), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "Timestamps must be RFC 3339")
	}
	return at.UTC(), nil
}

// respondWithError writes a consistent JSON error response.
func respondWithError(c *gin.Context, err error) {
	middleware.WriteError(c, err)
}

// parseChatIDParam parses a Telegram chat id path parameter. Group chats
// have negative ids, so only zero is rejected.
func parseChatIDParam(c *gin.Context, param string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id == 0 {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// parseIDList parses repeated id query values such as ?role_id=1&role_id=2.
func parseIDList(values []string, name string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, raw := range values {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
