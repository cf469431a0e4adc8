package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/wllfaria/felbot/internal/config"
	"github.com/wllfaria/felbot/internal/database"
	"github.com/wllfaria/felbot/internal/logger"
	"github.com/wllfaria/felbot/internal/tenancy"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: migrate <up|down|version|force|backfill> [N]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	m, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Get().Warnf("database close error: %v", err)
		}
	}()

	command := os.Args[1]

	switch command {
	case "up":
		return m.RunMigrations()

	case "down":
		steps := 1
		if len(os.Args) > 2 {
			steps, err = strconv.Atoi(os.Args[2])
			if err != nil {
				return fmt.Errorf("invalid step count: %w", err)
			}
		}
		return m.Rollback(steps)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)

	case "force":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			return fmt.Errorf("invalid version: %w", err)
		}
		return m.Force(version)

	case "backfill":
		return backfill(m, cfg)

	default:
		return fmt.Errorf("unknown command: %s (use up, down, version, force, or backfill)", command)
	}

	return nil
}

// backfill upgrades a single-tenant database: it stops at the nullable
// scoping columns, fills them from BACKFILL_* and then applies the
// migrations that enforce them. A schema left dirty by a tightening attempt
// that ran too early is reset to the nullable version first; the failed
// script ran as one implicit transaction, so none of it was applied.
func backfill(m *database.Manager, cfg *config.Config) error {
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if dirty {
		if version != database.ScopingEnforcedVersion {
			return fmt.Errorf("schema is dirty at version %d, fix it and run `migrate force`", version)
		}
		logger.Get().Warnw("recovering from failed tightening migration", "version", version)
		if err := m.Force(int(database.ScopingColumnsVersion)); err != nil {
			return err
		}
		version = database.ScopingColumnsVersion
	}
	if version > database.ScopingColumnsVersion {
		return fmt.Errorf("schema is at version %d, backfill must run before version %d", version, database.ScopingEnforcedVersion)
	}

	if err := m.MigrateTo(database.ScopingColumnsVersion); err != nil {
		return err
	}

	report, err := tenancy.Backfill(context.Background(), m.DB(), tenancy.NewPlan(cfg.Backfill))
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	logger.Get().Infow("backfill report", "report", report)

	return m.RunMigrations()
}
