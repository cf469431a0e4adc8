package database

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/wllfaria/felbot/internal/testutil"
)

const migrationsDir = "../../migrations"

var migrationFileRegex = regexp.MustCompile(`^(\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

func readMigration(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(migrationsDir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestMigrationScriptsArePaired(t *testing.T) {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("failed to list migrations: %v", err)
	}

	type pair struct {
		name     string
		up, down bool
	}
	byVersion := make(map[int]*pair)
	for _, entry := range entries {
		m := migrationFileRegex.FindStringSubmatch(entry.Name())
		if m == nil {
			t.Errorf("unexpected file in migrations: %s", entry.Name())
			continue
		}
		version, _ := strconv.Atoi(m[1])
		p, ok := byVersion[version]
		if !ok {
			p = &pair{name: m[2]}
			byVersion[version] = p
		}
		if p.name != m[2] {
			t.Errorf("version %d has scripts named %q and %q", version, p.name, m[2])
		}
		if m[3] == "up" {
			p.up = true
		} else {
			p.down = true
		}
	}

	if len(byVersion) < int(ScopingEnforcedVersion) {
		t.Fatalf("expected at least %d migrations, got %d", ScopingEnforcedVersion, len(byVersion))
	}
	for version := 1; version <= len(byVersion); version++ {
		p, ok := byVersion[version]
		if !ok {
			t.Errorf("migration versions are not contiguous: %d is missing", version)
			continue
		}
		if !p.up || !p.down {
			t.Errorf("migration %06d_%s needs both up and down scripts (up=%v down=%v)", version, p.name, p.up, p.down)
		}
	}
}

func TestTighteningMigration(t *testing.T) {
	up := readMigration(t, "000003_enforce_guild_scoping.up.sql")
	down := readMigration(t, "000003_enforce_guild_scoping.down.sql")

	for _, table := range []string{"roles", "channels"} {
		t.Run(table, func(t *testing.T) {
			notNull := "ALTER TABLE " + table + " ALTER COLUMN guild_id SET NOT NULL"
			if !strings.Contains(up, notNull) {
				t.Errorf("expected up script to contain %q", notNull)
			}

			cascade := regexp.MustCompile(`ALTER TABLE ` + table + `\s+ADD CONSTRAINT \w+ FOREIGN KEY \(guild_id\) REFERENCES guilds \(id\) ON DELETE CASCADE`)
			if !cascade.MatchString(up) {
				t.Errorf("expected up script to add a cascading guild foreign key on %s", table)
			}

			relax := "ALTER TABLE " + table + " ALTER COLUMN guild_id DROP NOT NULL"
			if !strings.Contains(down, relax) {
				t.Errorf("expected down script to contain %q", relax)
			}
		})
	}

	if !strings.Contains(up, "ALTER TABLE guilds ALTER COLUMN owner SET NOT NULL") {
		t.Error("expected up script to require a guild owner")
	}
}

// createLegacySchema creates the tables as they look at the given version.
func createLegacySchema(t *testing.T, db *gorm.DB, version uint) {
	t.Helper()
	statements := []string{
		"CREATE TABLE guilds (id TEXT PRIMARY KEY, discord_guild_id INTEGER NOT NULL, name TEXT NOT NULL)",
		"CREATE TABLE roles (id TEXT PRIMARY KEY, discord_role_id INTEGER NOT NULL, name TEXT NOT NULL)",
		"CREATE TABLE channels (id TEXT PRIMARY KEY, discord_channel_id INTEGER NOT NULL, name TEXT NOT NULL)",
	}
	if version >= ScopingColumnsVersion {
		statements = append(statements,
			"ALTER TABLE guilds ADD COLUMN owner TEXT",
			"ALTER TABLE roles ADD COLUMN guild_id TEXT",
			"ALTER TABLE channels ADD COLUMN guild_id TEXT",
		)
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("failed to create legacy schema: %v", err)
		}
	}
}

func exec(t *testing.T, db *gorm.DB, sql string) {
	t.Helper()
	if err := db.Exec(sql).Error; err != nil {
		t.Fatalf("exec %q: %v", sql, err)
	}
}

func assertNeedsBackfill(t *testing.T, db *gorm.DB, version uint, want bool) {
	t.Helper()
	got, err := NeedsBackfill(db, version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Errorf("NeedsBackfill(version %d) = %v, want %v", version, got, want)
	}
}

func TestNeedsBackfill(t *testing.T) {
	t.Run("fresh_database", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		assertNeedsBackfill(t, db, 0, false)
	})

	t.Run("single_tenant_rows", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		createLegacySchema(t, db, 1)

		assertNeedsBackfill(t, db, 1, false)

		exec(t, db, "INSERT INTO channels (id, discord_channel_id, name) VALUES ('c1', 500, 'general')")
		assertNeedsBackfill(t, db, 1, true)
	})

	t.Run("nullable_scoping_columns", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		createLegacySchema(t, db, 2)

		exec(t, db, "INSERT INTO guilds (id, discord_guild_id, name, owner) VALUES ('g1', 100, 'main', 'alpha')")
		exec(t, db, "INSERT INTO roles (id, discord_role_id, name, guild_id) VALUES ('r1', 1, 'admins', 'g1')")
		assertNeedsBackfill(t, db, 2, false)

		exec(t, db, "INSERT INTO roles (id, discord_role_id, name) VALUES ('r2', 2, 'members')")
		assertNeedsBackfill(t, db, 2, true)

		exec(t, db, "UPDATE roles SET guild_id = 'g1' WHERE id = 'r2'")
		exec(t, db, "UPDATE guilds SET owner = '' WHERE id = 'g1'")
		assertNeedsBackfill(t, db, 2, true)
	})

	t.Run("enforced_schema", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		assertNeedsBackfill(t, db, ScopingEnforcedVersion, false)
	})

	t.Run("missing_tables", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		defer testutil.TeardownTestDB(t, db)

		if _, err := NeedsBackfill(db, 1); err == nil {
			t.Error("expected an error when the legacy tables are missing")
		}
	})
}
