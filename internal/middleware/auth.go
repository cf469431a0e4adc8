package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/services"
)

// Context keys set by OperatorAuthMiddleware.
const (
	DiscordIDKey = "discordID"
	GuildIDKey   = "guildID"
)

const operatorTokenIssuer = "felbot-api"

// OperatorClaims represents the claims of an operator JWT. Discord ids are
// carried as strings since they do not fit a JSON number.
type OperatorClaims struct {
	DiscordID string   `json:"discord_id"`
	RoleIDs   []string `json:"role_ids"`
	jwt.RegisteredClaims
}

// GenerateOperatorToken signs a token for a Discord member holding roleIDs.
// The web runtime mints these after the member signs in with Discord.
func GenerateOperatorToken(secret string, discordID int64, roleIDs []int64, ttl time.Duration) (string, error) {
	roles := make([]string, len(roleIDs))
	for i, id := range roleIDs {
		roles[i] = strconv.FormatInt(id, 10)
	}

	now := time.Now()
	claims := &OperatorClaims{
		DiscordID: strconv.FormatInt(discordID, 10),
		RoleIDs:   roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    operatorTokenIssuer,
			Subject:   strconv.FormatInt(discordID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseOperatorToken validates a token and returns the member it names and
// the role ids it carries.
func ParseOperatorToken(secret, tokenString string) (int64, []int64, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(operatorTokenIssuer))
	if err != nil || !token.Valid {
		return 0, nil, fmt.Errorf("invalid operator token")
	}

	discordID, err := strconv.ParseInt(claims.DiscordID, 10, 64)
	if err != nil || discordID <= 0 {
		return 0, nil, fmt.Errorf("invalid discord id in operator token")
	}

	roleIDs := make([]int64, 0, len(claims.RoleIDs))
	for _, raw := range claims.RoleIDs {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("invalid role id %q in operator token", raw)
		}
		roleIDs = append(roleIDs, id)
	}

	return discordID, roleIDs, nil
}

// OperatorAuthMiddleware verifies the bearer token and requires one of its
// roles to be an admin role in the guild named by the :guild_id path
// parameter. Failures are attached with c.Error and rendered by ErrorHandler.
// Without a secret every request is refused.
func OperatorAuthMiddleware(secret string, permissions services.PermissionServicer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			abortWithError(c, apperrors.ErrOperatorAPINotConfigured)
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Authorization header is required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid authorization header format"))
			return
		}

		discordID, roleIDs, err := ParseOperatorToken(secret, parts[1])
		if err != nil {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrUnauthorized, "Invalid or expired token"))
			return
		}

		guildID, err := strconv.ParseInt(c.Param("guild_id"), 10, 64)
		if err != nil || guildID <= 0 {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid guild_id"))
			return
		}

		isAdmin, err := permissions.IsAdmin(guildID, roleIDs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !isAdmin {
			abortWithError(c, apperrors.WithMessage(apperrors.ErrForbidden, "An admin role in this guild is required"))
			return
		}

		c.Set(DiscordIDKey, discordID)
		c.Set(GuildIDKey, guildID)
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
