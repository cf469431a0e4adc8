package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/services"
)

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	r := gin.New()
	guild := r.Group("/guilds/:guild_id", injectOperator(777))
	guild.GET("/groups", handler.ListGroups)
	guild.POST("/groups", handler.PairGroup)
	guild.DELETE("/groups/:group_id", handler.UnpairGroup)
	r.GET("/internal/groups/:label", handler.FindGroup)
	return r
}

func TestGroupHandler_PairGroup(t *testing.T) {
	t.Run("accepts negative chat ids", func(t *testing.T) {
		var gotGroup int64
		groups := &mockGroupService{
			pairGroupFn: func(g, tg int64, owner string) (*models.TelegramGroup, error) {
				gotGroup = tg
				return &models.TelegramGroup{Base: models.Base{ID: "group-uuid"}, TelegramGroupID: tg, Owner: owner}, nil
			},
		}
		audit := &mockAuditService{}
		r := setupGroupRouter(NewGroupHandler(groups, audit))

		rec := doRequest(r, "POST", "/guilds/100/groups", `{"telegram_group_id":"-1001234567890","owner":"main"}`)

		assertStatus(t, rec, http.StatusCreated)
		if gotGroup != -1001234567890 {
			t.Errorf("expected group -1001234567890, got %d", gotGroup)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditPairGroup || audit.entries[0].resourceID != "group-uuid" {
			t.Errorf("unexpected audit entries %+v", audit.entries)
		}
	})

	t.Run("returns 409 on duplicate pairing", func(t *testing.T) {
		groups := &mockGroupService{
			pairGroupFn: func(int64, int64, string) (*models.TelegramGroup, error) {
				return nil, apperrors.ErrDuplicatePairing
			},
		}
		r := setupGroupRouter(NewGroupHandler(groups, &mockAuditService{}))

		rec := doRequest(r, "POST", "/guilds/100/groups", `{"telegram_group_id":"-100","owner":"main"}`)

		assertStatus(t, rec, http.StatusConflict)
		assertErrorCode(t, parseJSON(t, rec), "DUPLICATE_PAIRING")
	})

	t.Run("returns 400 on invalid label", func(t *testing.T) {
		r := setupGroupRouter(NewGroupHandler(&mockGroupService{}, &mockAuditService{}))

		rec := doRequest(r, "POST", "/guilds/100/groups", `{"telegram_group_id":"-100","owner":"-bad"}`)

		assertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestGroupHandler_ListAndUnpair(t *testing.T) {
	groups := &mockGroupService{
		groupsForGuildFn: func(g int64) ([]models.TelegramGroup, error) {
			return []models.TelegramGroup{{TelegramGroupID: -100, Owner: "main"}}, nil
		},
		unpairGroupFn: func(g, tg int64) error {
			if tg != -100 {
				return apperrors.ErrGroupNotFound
			}
			return nil
		},
	}
	audit := &mockAuditService{}
	r := setupGroupRouter(NewGroupHandler(groups, audit))

	rec := doRequest(r, "GET", "/guilds/100/groups", "")
	assertStatus(t, rec, http.StatusOK)
	list := parseJSON(t, rec)["groups"].([]interface{})
	if len(list) != 1 || list[0].(map[string]interface{})["telegram_group_id"] != "-100" {
		t.Errorf("unexpected groups %v", list)
	}

	rec = doRequest(r, "DELETE", "/guilds/100/groups/-100", "")
	assertStatus(t, rec, http.StatusOK)

	rec = doRequest(r, "DELETE", "/guilds/100/groups/-200", "")
	assertStatus(t, rec, http.StatusNotFound)
	assertErrorCode(t, parseJSON(t, rec), "GROUP_NOT_FOUND")

	rec = doRequest(r, "DELETE", "/guilds/100/groups/0", "")
	assertStatus(t, rec, http.StatusBadRequest)

	if len(audit.entries) != 1 || audit.entries[0].action != services.AuditUnpairGroup {
		t.Errorf("expected a single unpair audit entry, got %+v", audit.entries)
	}
}

func TestGroupHandler_FindGroup(t *testing.T) {
	groups := &mockGroupService{
		findByLabelFn: func(label string) (*models.TelegramGroup, error) {
			if label == "main" {
				return &models.TelegramGroup{TelegramGroupID: -100, Owner: label}, nil
			}
			return nil, apperrors.ErrGroupNotFound
		},
	}
	r := setupGroupRouter(NewGroupHandler(groups, &mockAuditService{}))

	rec := doRequest(r, "GET", "/internal/groups/main", "")
	assertStatus(t, rec, http.StatusOK)

	rec = doRequest(r, "GET", "/internal/groups/other", "")
	assertStatus(t, rec, http.StatusNotFound)
}
