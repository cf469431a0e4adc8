package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/services"
)

const testSecret = "operator-test-secret"

// mockPermissions implements only the permission check the middleware uses.
type mockPermissions struct {
	services.PermissionServicer
	isAdminFn func(discordGuildID int64, memberRoleIDs []int64) (bool, error)
}

func (m *mockPermissions) IsAdmin(discordGuildID int64, memberRoleIDs []int64) (bool, error) {
	return m.isAdminFn(discordGuildID, memberRoleIDs)
}

// adminIn allows role 1 as admin in guild 100 only.
func adminIn() *mockPermissions {
	return &mockPermissions{
		isAdminFn: func(discordGuildID int64, memberRoleIDs []int64) (bool, error) {
			if discordGuildID != 100 {
				if discordGuildID == 404 {
					return false, apperrors.ErrUnknownGuild
				}
				return false, nil
			}
			for _, id := range memberRoleIDs {
				if id == 1 {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func setupOperatorRouter(perms services.PermissionServicer) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/guilds/:guild_id/roles", OperatorAuthMiddleware(testSecret, perms), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"discord_id": c.GetInt64(DiscordIDKey),
			"guild_id":   c.GetInt64(GuildIDKey),
		})
	})
	return r
}

func doBearerRequest(r *gin.Engine, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func mustToken(t *testing.T, secret string, discordID int64, roles []int64, ttl time.Duration) string {
	t.Helper()
	token, err := GenerateOperatorToken(secret, discordID, roles, ttl)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestOperatorAuthMiddleware(t *testing.T) {
	admin := mustToken(t, testSecret, 777, []int64{5, 1}, time.Hour)
	member := mustToken(t, testSecret, 778, []int64{5}, time.Hour)
	expired := mustToken(t, testSecret, 777, []int64{1}, -time.Minute)
	forged := mustToken(t, "someone-else", 777, []int64{1}, time.Hour)

	tests := []struct {
		name          string
		path          string
		header        string
		wantStatus    int
		wantErrorCode string
	}{
		{name: "admin_in_guild", path: "/guilds/100/roles", header: "Bearer " + admin, wantStatus: http.StatusOK},
		{name: "missing_header", path: "/guilds/100/roles", header: "", wantStatus: http.StatusUnauthorized, wantErrorCode: "UNAUTHORIZED"},
		{name: "bad_scheme", path: "/guilds/100/roles", header: "Token " + admin, wantStatus: http.StatusUnauthorized, wantErrorCode: "UNAUTHORIZED"},
		{name: "expired_token", path: "/guilds/100/roles", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized, wantErrorCode: "UNAUTHORIZED"},
		{name: "wrong_secret", path: "/guilds/100/roles", header: "Bearer " + forged, wantStatus: http.StatusUnauthorized, wantErrorCode: "UNAUTHORIZED"},
		{name: "non_admin_member", path: "/guilds/100/roles", header: "Bearer " + member, wantStatus: http.StatusForbidden, wantErrorCode: "FORBIDDEN"},
		{name: "admin_of_other_guild", path: "/guilds/200/roles", header: "Bearer " + admin, wantStatus: http.StatusForbidden, wantErrorCode: "FORBIDDEN"},
		{name: "unknown_guild", path: "/guilds/404/roles", header: "Bearer " + admin, wantStatus: http.StatusNotFound, wantErrorCode: "UNKNOWN_GUILD"},
		{name: "invalid_guild_id", path: "/guilds/abc/roles", header: "Bearer " + admin, wantStatus: http.StatusBadRequest, wantErrorCode: "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doBearerRequest(setupOperatorRouter(adminIn()), tt.path, tt.header)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}

			body := parseBody(t, rec)
			if tt.wantErrorCode != "" {
				errObj, ok := body["error"].(map[string]interface{})
				if !ok {
					t.Fatal("expected error object in response")
				}
				if code, _ := errObj["code"].(string); code != tt.wantErrorCode {
					t.Errorf("error code = %q, want %q", code, tt.wantErrorCode)
				}
				return
			}

			if id, _ := body["discord_id"].(float64); id != 777 {
				t.Errorf("expected discord id 777 in context, got %v", body["discord_id"])
			}
			if id, _ := body["guild_id"].(float64); id != 100 {
				t.Errorf("expected guild id 100 in context, got %v", body["guild_id"])
			}
		})
	}
}

func TestParseOperatorToken(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		token := mustToken(t, testSecret, 1090347281736908850, []int64{1090347281736908851}, time.Hour)

		discordID, roles, err := ParseOperatorToken(testSecret, token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if discordID != 1090347281736908850 {
			t.Errorf("snowflake lost precision: %d", discordID)
		}
		if len(roles) != 1 || roles[0] != 1090347281736908851 {
			t.Errorf("unexpected roles %v", roles)
		}
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		claims := &OperatorClaims{
			DiscordID: "777",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    "someone-else",
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}

		if _, _, err := ParseOperatorToken(testSecret, token); err == nil {
			t.Error("expected token from another issuer to be rejected")
		}
	})
}

func TestOperatorAuthMiddleware_NoSecret(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/guilds/:guild_id/roles", OperatorAuthMiddleware("", adminIn()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	rec := doBearerRequest(r, "/guilds/100/roles", "Bearer "+mustToken(t, "dev-secret", 777, []int64{1}, time.Hour))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	errObj, _ := parseBody(t, rec)["error"].(map[string]interface{})
	if code, _ := errObj["code"].(string); code != "OPERATOR_API_NOT_CONFIGURED" {
		t.Errorf("error code = %q, want OPERATOR_API_NOT_CONFIGURED", code)
	}
}
