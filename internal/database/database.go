package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wllfaria/felbot/internal/logger"
)

// Schema versions around the tenancy backfill. At ScopingColumnsVersion the
// guild references exist but are nullable; ScopingEnforcedVersion makes them
// mandatory and fails on any row the backfill has not attributed.
const (
	ScopingColumnsVersion  uint = 2
	ScopingEnforcedVersion uint = 3
)

// ErrBackfillRequired is returned instead of migrating an unscoped database
// past ScopingColumnsVersion.
var ErrBackfillRequired = errors.New("rows without a guild remain, run `migrate backfill` first")

// Manager handles database operations
type Manager struct {
	db         *gorm.DB
	dsn        string
	migrations string
}

// NewManager creates a new database manager
func NewManager(config *Config) (*Manager, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  config.DSN(),
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Manager{db: db, dsn: config.URL(), migrations: config.MigrationsPath}, nil
}

// RunMigrations applies every pending up script. It refuses to start while
// single-tenant rows still wait for the backfill, since the tightening
// migration would fail on them and leave the schema dirty.
func (m *Manager) RunMigrations() error {
	logger.Get().Info("Running database migrations...")

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}
	if !dirty {
		pending, err := NeedsBackfill(m.db, version)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("schema at version %d: %w", version, ErrBackfillRequired)
		}
	}

	return m.withMigrate(func(mig *migrate.Migrate) error {
		if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Get().Info("Database migrations completed successfully")
		return nil
	})
}

// MigrateTo moves the schema to exactly the given version, up or down.
func (m *Manager) MigrateTo(version uint) error {
	return m.withMigrate(func(mig *migrate.Migrate) error {
		if err := mig.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		logger.Get().Infow("schema migrated", "version", version)
		return nil
	})
}

// Rollback applies the down scripts of the last n migrations.
func (m *Manager) Rollback(steps int) error {
	return m.withMigrate(func(mig *migrate.Migrate) error {
		if err := mig.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Get().Infof("Rolled back %d migration(s)", steps)
		return nil
	})
}

// Force records version as applied and clean without running any script.
func (m *Manager) Force(version int) error {
	return m.withMigrate(func(mig *migrate.Migrate) error {
		if err := mig.Force(version); err != nil {
			return fmt.Errorf("force to version %d failed: %w", version, err)
		}
		logger.Get().Warnw("schema version forced", "version", version)
		return nil
	})
}

// Version reports the applied schema version and whether the last run left it dirty.
func (m *Manager) Version() (uint, bool, error) {
	var version uint
	var dirty bool
	err := m.withMigrate(func(mig *migrate.Migrate) error {
		var err error
		version, dirty, err = mig.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		return err
	})
	return version, dirty, err
}

func (m *Manager) withMigrate(fn func(mig *migrate.Migrate) error) error {
	mig, err := migrate.New(m.migrations, m.dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	return fn(mig)
}

// NeedsBackfill reports whether a schema at version still holds rows the
// tenancy backfill has to attribute before ScopingEnforcedVersion applies.
func NeedsBackfill(db *gorm.DB, version uint) (bool, error) {
	var checks []string
	switch {
	case version == 0 || version >= ScopingEnforcedVersion:
		return false, nil
	case version < ScopingColumnsVersion:
		checks = []string{
			"SELECT COUNT(*) FROM guilds",
			"SELECT COUNT(*) FROM roles",
			"SELECT COUNT(*) FROM channels",
		}
	default:
		checks = []string{
			"SELECT COUNT(*) FROM guilds WHERE owner IS NULL OR owner = ''",
			"SELECT COUNT(*) FROM roles WHERE guild_id IS NULL",
			"SELECT COUNT(*) FROM channels WHERE guild_id IS NULL",
		}
	}

	for _, query := range checks {
		var count int64
		if err := db.Raw(query).Scan(&count).Error; err != nil {
			return false, fmt.Errorf("backfill check failed: %w", err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
