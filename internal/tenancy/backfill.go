// Package tenancy retrofits guild scoping onto a single-tenant schema.
//
// The schema side lives in the SQL migrations: 000002 adds nullable guild_id
// and owner columns, 000003 makes them NOT NULL and adds the cascading
// foreign keys. Backfill runs between the two and fills every NULL, so the
// tightening step either finds a complete table or fails the deployment.
package tenancy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/wllfaria/felbot/internal/config"
	apperrors "github.com/wllfaria/felbot/internal/errors"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/models"
	"github.com/wllfaria/felbot/internal/uuid"
)

// Plan describes one backfill run. All guilds are addressed by Discord id.
type Plan struct {
	// PrimaryGuildID is the guild every pre-existing row historically belonged to.
	PrimaryGuildID int64
	// Guilds are registered (id -> name) when missing.
	Guilds map[int64]string
	// RoleOverrides and ChannelOverrides move rows, keyed by their Discord
	// id, from the primary guild to another guild.
	RoleOverrides    map[int64]int64
	ChannelOverrides map[int64]int64
	// DefaultOwner fills empty owner labels; OwnerOverrides then fixes
	// individual guilds.
	DefaultOwner   string
	OwnerOverrides map[int64]string
}

// NewPlan builds a Plan from the BACKFILL_* configuration.
func NewPlan(cfg config.BackfillConfig) Plan {
	return Plan{
		PrimaryGuildID:   cfg.PrimaryGuildID,
		Guilds:           cfg.Guilds,
		RoleOverrides:    cfg.RoleOverrides,
		ChannelOverrides: cfg.ChannelOverrides,
		DefaultOwner:     cfg.DefaultOwner,
		OwnerOverrides:   cfg.OwnerOverrides,
	}
}

// Report counts the rows each backfill step touched.
type Report struct {
	GuildsSeeded         int64 `json:"guilds_seeded"`
	RolesDefaulted       int64 `json:"roles_defaulted"`
	ChannelsDefaulted    int64 `json:"channels_defaulted"`
	RolesReattributed    int64 `json:"roles_reattributed"`
	ChannelsReattributed int64 `json:"channels_reattributed"`
	OwnersDefaulted      int64 `json:"owners_defaulted"`
	OwnersFixed          int64 `json:"owners_fixed"`
}

// scopedTable is a flat table gaining a guild_id column.
type scopedTable struct {
	name     string
	idColumn string
}

var (
	rolesTable    = scopedTable{name: "roles", idColumn: "discord_role_id"}
	channelsTable = scopedTable{name: "channels", idColumn: "discord_channel_id"}
)

// Backfill attributes every unscoped role and channel to a guild and fills
// guild owner labels, all in one transaction. Running it again on an already
// backfilled database changes nothing.
func Backfill(ctx context.Context, db *gorm.DB, plan Plan) (*Report, error) {
	if plan.PrimaryGuildID <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "primary guild id is required")
	}

	report := &Report{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		seeded, err := seedGuilds(tx, plan, now)
		if err != nil {
			return err
		}
		report.GuildsSeeded = seeded

		primaryID, err := guildIDFor(tx, plan.PrimaryGuildID)
		if err != nil {
			return err
		}

		if report.RolesDefaulted, err = defaultGuild(tx, rolesTable, primaryID, now); err != nil {
			return err
		}
		if report.ChannelsDefaulted, err = defaultGuild(tx, channelsTable, primaryID, now); err != nil {
			return err
		}

		if report.RolesReattributed, err = reattribute(tx, rolesTable, primaryID, plan.RoleOverrides, now); err != nil {
			return err
		}
		if report.ChannelsReattributed, err = reattribute(tx, channelsTable, primaryID, plan.ChannelOverrides, now); err != nil {
			return err
		}

		if err := verifyScoped(tx, rolesTable, channelsTable); err != nil {
			return err
		}

		if report.OwnersDefaulted, report.OwnersFixed, err = backfillOwners(tx, plan, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Named("tenancy").Infow("tenancy backfill completed",
		"primary_guild_id", plan.PrimaryGuildID,
		"guilds_seeded", report.GuildsSeeded,
		"roles_defaulted", report.RolesDefaulted,
		"channels_defaulted", report.ChannelsDefaulted,
		"roles_reattributed", report.RolesReattributed,
		"channels_reattributed", report.ChannelsReattributed,
		"owners_defaulted", report.OwnersDefaulted,
		"owners_fixed", report.OwnersFixed,
	)
	return report, nil
}

// guildIDFor resolves a Discord guild id to its internal key. It plays the
// part of a computed column default, evaluated once per target guild.
func guildIDFor(tx *gorm.DB, discordGuildID int64) (string, error) {
	var ids []string
	if err := tx.Table("guilds").Where("discord_guild_id = ?", discordGuildID).Pluck("id", &ids).Error; err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(ids) == 0 {
		return "", apperrors.WithMessage(apperrors.ErrUnknownGuild, fmt.Sprintf("guild %d is not registered", discordGuildID))
	}
	return ids[0], nil
}

func seedGuilds(tx *gorm.DB, plan Plan, now time.Time) (int64, error) {
	var seeded int64
	for _, discordGuildID := range sortedKeys(plan.Guilds) {
		var count int64
		if err := tx.Table("guilds").Where("discord_guild_id = ?", discordGuildID).Count(&count).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			continue
		}

		var owner interface{}
		if label := ownerFor(plan, discordGuildID); label != "" {
			owner = label
		}
		row := map[string]interface{}{
			"id":               uuid.New(),
			"discord_guild_id": discordGuildID,
			"name":             plan.Guilds[discordGuildID],
			"owner":            owner,
			"created_at":       now,
			"updated_at":       now,
		}
		if err := tx.Table("guilds").Create(row).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		seeded++
	}
	return seeded, nil
}

func defaultGuild(tx *gorm.DB, table scopedTable, primaryID string, now time.Time) (int64, error) {
	result := tx.Table(table.name).
		Where("guild_id IS NULL").
		Updates(models.Touch(map[string]interface{}{"guild_id": primaryID}, now))
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// reattribute moves the rows named in overrides from the primary guild to
// their real guild. Rows already moved no longer match, which keeps replays
// harmless.
func reattribute(tx *gorm.DB, table scopedTable, primaryID string, overrides map[int64]int64, now time.Time) (int64, error) {
	var moved int64
	for _, externalID := range sortedKeys(overrides) {
		targetID, err := guildIDFor(tx, overrides[externalID])
		if err != nil {
			return 0, err
		}

		result := tx.Table(table.name).
			Where(table.idColumn+" = ? AND guild_id = ?", externalID, primaryID).
			Updates(models.Touch(map[string]interface{}{"guild_id": targetID}, now))
		if result.Error != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		if result.RowsAffected == 0 {
			logger.Named("tenancy").Warnw("backfill override matched no rows",
				"table", table.name,
				table.idColumn, externalID,
				"guild_id", overrides[externalID],
			)
		}
		moved += result.RowsAffected
	}
	return moved, nil
}

func verifyScoped(tx *gorm.DB, tables ...scopedTable) error {
	for _, table := range tables {
		var count int64
		if err := tx.Table(table.name).Where("guild_id IS NULL").Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return apperrors.WithMessage(apperrors.ErrBackfillIncomplete,
				fmt.Sprintf("%d rows in %s have no guild", count, table.name))
		}
	}
	return nil
}

func backfillOwners(tx *gorm.DB, plan Plan, now time.Time) (defaulted, fixed int64, err error) {
	if plan.DefaultOwner != "" {
		result := tx.Table("guilds").
			Where("owner IS NULL OR owner = ''").
			Updates(models.Touch(map[string]interface{}{"owner": plan.DefaultOwner}, now))
		if result.Error != nil {
			return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		defaulted = result.RowsAffected
	}

	for _, discordGuildID := range sortedKeys(plan.OwnerOverrides) {
		owner := plan.OwnerOverrides[discordGuildID]
		if _, err := guildIDFor(tx, discordGuildID); err != nil {
			return 0, 0, err
		}

		result := tx.Table("guilds").
			Where("discord_guild_id = ? AND (owner IS NULL OR owner <> ?)", discordGuildID, owner).
			Updates(models.Touch(map[string]interface{}{"owner": owner}, now))
		if result.Error != nil {
			return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
		}
		fixed += result.RowsAffected
	}

	var missing int64
	if err := tx.Table("guilds").Where("owner IS NULL OR owner = ''").Count(&missing).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if missing > 0 {
		return 0, 0, apperrors.WithMessage(apperrors.ErrBackfillIncomplete,
			fmt.Sprintf("%d guilds have no owner", missing))
	}

	return defaulted, fixed, nil
}

func ownerFor(plan Plan, discordGuildID int64) string {
	if owner, ok := plan.OwnerOverrides[discordGuildID]; ok {
		return owner
	}
	return plan.DefaultOwner
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
