package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/middleware"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/pagination"
	"github.com/wllfaria/felbot/internal/services"
	"github.com/wllfaria/felbot/internal/validator"
)

// --- mock services ---

type mockGuildService struct {
	registerGuildFn     func(discordGuildID int64, name, owner string) (*models.Guild, error)
	resolveInternalIDFn func(discordGuildID int64) (string, error)
	getGuildFn          func(discordGuildID int64) (*models.Guild, error)
	listGuildsFn        func(page pagination.PageRequest) (*pagination.PageResponse[models.Guild], error)
	allowedGuildIDsFn   func() ([]int64, error)
	updateOwnerFn       func(discordGuildID int64, owner string) (*models.Guild, error)
	deleteGuildFn       func(internalID string) (*services.CascadeResult, error)
}

var _ services.GuildServicer = (*mockGuildService)(nil)

func (m *mockGuildService) RegisterGuild(discordGuildID int64, name, owner string) (*models.Guild, error) {
	if m.registerGuildFn != nil {
		return m.registerGuildFn(discordGuildID, name, owner)
	}
	return &models.Guild{DiscordGuildID: discordGuildID, Name: name, Owner: owner}, nil
}

func (m *mockGuildService) ResolveInternalID(discordGuildID int64) (string, error) {
	if m.resolveInternalIDFn != nil {
		return m.resolveInternalIDFn(discordGuildID)
	}
	return "guild-uuid", nil
}

func (m *mockGuildService) GetGuild(discordGuildID int64) (*models.Guild, error) {
	if m.getGuildFn != nil {
		return m.getGuildFn(discordGuildID)
	}
	return &models.Guild{DiscordGuildID: discordGuildID}, nil
}

func (m *mockGuildService) ListGuilds(page pagination.PageRequest) (*pagination.PageResponse[models.Guild], error) {
	if m.listGuildsFn != nil {
		return m.listGuildsFn(page)
	}
	resp := pagination.NewPageResponse[models.Guild](nil, 1, 20, 0)
	return &resp, nil
}

func (m *mockGuildService) AllowedGuildIDs() ([]int64, error) {
	if m.allowedGuildIDsFn != nil {
		return m.allowedGuildIDsFn()
	}
	return nil, nil
}

func (m *mockGuildService) UpdateOwner(discordGuildID int64, owner string) (*models.Guild, error) {
	if m.updateOwnerFn != nil {
		return m.updateOwnerFn(discordGuildID, owner)
	}
	return &models.Guild{DiscordGuildID: discordGuildID, Owner: owner}, nil
}

func (m *mockGuildService) DeleteGuild(internalID string) (*services.CascadeResult, error) {
	if m.deleteGuildFn != nil {
		return m.deleteGuildFn(internalID)
	}
	return &services.CascadeResult{GuildID: internalID}, nil
}

type mockPermissionService struct {
	allowRoleFn          func(discordGuildID, discordRoleID int64, name string, isAdmin bool) (*models.Role, error)
	removeRoleFn         func(discordGuildID, discordRoleID int64) error
	listRolesFn          func(discordGuildID int64) ([]models.Role, error)
	allowChannelFn       func(discordGuildID, discordChannelID int64, name string) (*models.Channel, error)
	removeChannelFn      func(discordGuildID, discordChannelID int64) error
	listChannelsFn       func(discordGuildID int64) ([]models.Channel, error)
	isAuthorizedFn       func(discordGuildID, discordRoleID int64) (bool, error)
	isAdminRoleFn        func(discordGuildID, discordRoleID int64) (bool, error)
	isChannelAllowedFn   func(discordChannelID int64) (*models.Guild, bool, error)
	isChannelAllowedInFn func(discordGuildID, discordChannelID int64) (bool, error)
	isSubscriberFn       func(discordGuildID int64, memberRoleIDs []int64) (bool, error)
	isAdminFn            func(discordGuildID int64, memberRoleIDs []int64) (bool, error)
}

var _ services.PermissionServicer = (*mockPermissionService)(nil)

func (m *mockPermissionService) AllowRole(discordGuildID, discordRoleID int64, name string, isAdmin bool) (*models.Role, error) {
	if m.allowRoleFn != nil {
		return m.allowRoleFn(discordGuildID, discordRoleID, name, isAdmin)
	}
	return &models.Role{DiscordRoleID: discordRoleID, Name: name, IsAdmin: isAdmin}, nil
}

func (m *mockPermissionService) RemoveRole(discordGuildID, discordRoleID int64) error {
	if m.removeRoleFn != nil {
		return m.removeRoleFn(discordGuildID, discordRoleID)
	}
	return nil
}

func (m *mockPermissionService) ListRoles(discordGuildID int64) ([]models.Role, error) {
	if m.listRolesFn != nil {
		return m.listRolesFn(discordGuildID)
	}
	return []models.Role{}, nil
}

func (m *mockPermissionService) AllowChannel(discordGuildID, discordChannelID int64, name string) (*models.Channel, error) {
	if m.allowChannelFn != nil {
		return m.allowChannelFn(discordGuildID, discordChannelID, name)
	}
	return &models.Channel{DiscordChannelID: discordChannelID, Name: name}, nil
}

func (m *mockPermissionService) RemoveChannel(discordGuildID, discordChannelID int64) error {
	if m.removeChannelFn != nil {
		return m.removeChannelFn(discordGuildID, discordChannelID)
	}
	return nil
}

func (m *mockPermissionService) ListChannels(discordGuildID int64) ([]models.Channel, error) {
	if m.listChannelsFn != nil {
		return m.listChannelsFn(discordGuildID)
	}
	return []models.Channel{}, nil
}

func (m *mockPermissionService) IsAuthorized(discordGuildID, discordRoleID int64) (bool, error) {
	if m.isAuthorizedFn != nil {
		return m.isAuthorizedFn(discordGuildID, discordRoleID)
	}
	return false, nil
}

func (m *mockPermissionService) IsAdminRole(discordGuildID, discordRoleID int64) (bool, error) {
	if m.isAdminRoleFn != nil {
		return m.isAdminRoleFn(discordGuildID, discordRoleID)
	}
	return false, nil
}

func (m *mockPermissionService) IsChannelAllowed(discordChannelID int64) (*models.Guild, bool, error) {
	if m.isChannelAllowedFn != nil {
		return m.isChannelAllowedFn(discordChannelID)
	}
	return nil, false, nil
}

func (m *mockPermissionService) IsChannelAllowedIn(discordGuildID, discordChannelID int64) (bool, error) {
	if m.isChannelAllowedInFn != nil {
		return m.isChannelAllowedInFn(discordGuildID, discordChannelID)
	}
	return false, nil
}

func (m *mockPermissionService) IsSubscriber(discordGuildID int64, memberRoleIDs []int64) (bool, error) {
	if m.isSubscriberFn != nil {
		return m.isSubscriberFn(discordGuildID, memberRoleIDs)
	}
	return false, nil
}

func (m *mockPermissionService) IsAdmin(discordGuildID int64, memberRoleIDs []int64) (bool, error) {
	if m.isAdminFn != nil {
		return m.isAdminFn(discordGuildID, memberRoleIDs)
	}
	return false, nil
}

type mockGroupService struct {
	pairGroupFn      func(discordGuildID, telegramGroupID int64, owner string) (*models.TelegramGroup, error)
	groupsForGuildFn func(discordGuildID int64) ([]models.TelegramGroup, error)
	unpairGroupFn    func(discordGuildID, telegramGroupID int64) error
	findByLabelFn    func(label string) (*models.TelegramGroup, error)
}

var _ services.GroupServicer = (*mockGroupService)(nil)

func (m *mockGroupService) PairGroup(discordGuildID, telegramGroupID int64, owner string) (*models.TelegramGroup, error) {
	if m.pairGroupFn != nil {
		return m.pairGroupFn(discordGuildID, telegramGroupID, owner)
	}
	return &models.TelegramGroup{TelegramGroupID: telegramGroupID, Owner: owner}, nil
}

func (m *mockGroupService) GroupsForGuild(discordGuildID int64) ([]models.TelegramGroup, error) {
	if m.groupsForGuildFn != nil {
		return m.groupsForGuildFn(discordGuildID)
	}
	return []models.TelegramGroup{}, nil
}

func (m *mockGroupService) UnpairGroup(discordGuildID, telegramGroupID int64) error {
	if m.unpairGroupFn != nil {
		return m.unpairGroupFn(discordGuildID, telegramGroupID)
	}
	return nil
}

func (m *mockGroupService) FindByLabel(label string) (*models.TelegramGroup, error) {
	if m.findByLabelFn != nil {
		return m.findByLabelFn(label)
	}
	return &models.TelegramGroup{Owner: label}, nil
}

type mockLinkService struct {
	createLinkFn              func(discordID, telegramID int64) (*models.AccountLink, error)
	lookupByDiscordFn         func(discordID int64) (*models.AccountLink, error)
	lookupByTelegramFn        func(telegramID int64) (*models.AccountLink, error)
	markJoinedGroupFn         func(discordID int64, at time.Time) (*models.AccountLink, error)
	recordSubscriptionCheckFn func(discordID int64, at time.Time) (*models.AccountLink, error)
	unlinkFn                  func(discordID int64) error
	listDueForCheckFn         func(before time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.AccountLink], error)
}

var _ services.LinkServicer = (*mockLinkService)(nil)

func (m *mockLinkService) CreateLink(discordID, telegramID int64) (*models.AccountLink, error) {
	if m.createLinkFn != nil {
		return m.createLinkFn(discordID, telegramID)
	}
	return &models.AccountLink{DiscordID: discordID, TelegramID: telegramID}, nil
}

func (m *mockLinkService) LookupByDiscord(discordID int64) (*models.AccountLink, error) {
	if m.lookupByDiscordFn != nil {
		return m.lookupByDiscordFn(discordID)
	}
	return &models.AccountLink{DiscordID: discordID}, nil
}

func (m *mockLinkService) LookupByTelegram(telegramID int64) (*models.AccountLink, error) {
	if m.lookupByTelegramFn != nil {
		return m.lookupByTelegramFn(telegramID)
	}
	return &models.AccountLink{TelegramID: telegramID}, nil
}

func (m *mockLinkService) MarkJoinedGroup(discordID int64, at time.Time) (*models.AccountLink, error) {
	if m.markJoinedGroupFn != nil {
		return m.markJoinedGroupFn(discordID, at)
	}
	return &models.AccountLink{DiscordID: discordID, JoinedGroupAt: &at}, nil
}

func (m *mockLinkService) RecordSubscriptionCheck(discordID int64, at time.Time) (*models.AccountLink, error) {
	if m.recordSubscriptionCheckFn != nil {
		return m.recordSubscriptionCheckFn(discordID, at)
	}
	return &models.AccountLink{DiscordID: discordID, LastSubscriptionCheck: &at}, nil
}

func (m *mockLinkService) Unlink(discordID int64) error {
	if m.unlinkFn != nil {
		return m.unlinkFn(discordID)
	}
	return nil
}

func (m *mockLinkService) ListDueForCheck(before time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.AccountLink], error) {
	if m.listDueForCheckFn != nil {
		return m.listDueForCheckFn(before, page)
	}
	resp := pagination.NewPageResponse[models.AccountLink](nil, 1, 20, 0)
	return &resp, nil
}

type mockLinkingService struct {
	issueTokenFn   func(telegramID int64, groupLabel string) (*models.LinkingToken, error)
	redeemTokenFn  func(token string) (*services.RedeemedToken, error)
	completeLinkFn func(token string, discordID int64) (*services.CompletedLink, error)
	sweepExpiredFn func(before time.Time) (int64, error)
}

var _ services.LinkingServicer = (*mockLinkingService)(nil)

func (m *mockLinkingService) IssueToken(telegramID int64, groupLabel string) (*models.LinkingToken, error) {
	if m.issueTokenFn != nil {
		return m.issueTokenFn(telegramID, groupLabel)
	}
	return &models.LinkingToken{Token: "token", TelegramID: telegramID, GroupLabel: groupLabel}, nil
}

func (m *mockLinkingService) RedeemToken(token string) (*services.RedeemedToken, error) {
	if m.redeemTokenFn != nil {
		return m.redeemTokenFn(token)
	}
	return &services.RedeemedToken{}, nil
}

func (m *mockLinkingService) CompleteLink(token string, discordID int64) (*services.CompletedLink, error) {
	if m.completeLinkFn != nil {
		return m.completeLinkFn(token, discordID)
	}
	return &services.CompletedLink{Link: &models.AccountLink{DiscordID: discordID}}, nil
}

func (m *mockLinkingService) SweepExpired(before time.Time) (int64, error) {
	if m.sweepExpiredFn != nil {
		return m.sweepExpiredFn(before)
	}
	return 0, nil
}

type auditEntry struct {
	actorID      int64
	guildID      int64
	action       string
	resourceType string
	resourceID   string
}

type mockAuditService struct {
	entries []auditEntry
	listFn  func(discordGuildID int64, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error)
}

var _ services.AuditServicer = (*mockAuditService)(nil)

func (m *mockAuditService) Log(actorID, discordGuildID int64, action, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.entries = append(m.entries, auditEntry{
		actorID:      actorID,
		guildID:      discordGuildID,
		action:       action,
		resourceType: resourceType,
		resourceID:   resourceID,
	})
}

func (m *mockAuditService) List(discordGuildID int64, page pagination.PageRequest) (*pagination.PageResponse[models.AuditLog], error) {
	return m.listFn(discordGuildID, page)
}

// --- test helpers ---

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// injectOperator stands in for OperatorAuthMiddleware.
func injectOperator(discordID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guildID, err := parseSnowflakeParam(c, "guild_id"); err == nil {
			c.Set(middleware.GuildIDKey, guildID)
		}
		c.Set(middleware.DiscordIDKey, discordID)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
