package db

import (
	"fmt"
	"sort"

	"gorm.io/gorm"
)

type Migration struct {
	Version string
	Name    string
	Up      func(*gorm.DB) error
	Down    func(*gorm.DB) error
}

// Migrator applies versioned Go migrations and records them in
// schema_migrations. Each migration runs in its own transaction.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

func CreateNewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{
		db:         db,
		migrations: make([]Migration, 0),
	}
}

func (m *Migrator) AddMigration(version, name string, up, down func(*gorm.DB) error) {
	m.migrations = append(m.migrations, Migration{
		Version: version,
		Name:    name,
		Up:      up,
		Down:    down,
	})
	sort.SliceStable(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Up applies every migration that has not been recorded yet and returns the
// versions it applied.
func (m *Migrator) Up() ([]string, error) {
	if err := m.createMigrationsTable(); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return nil, err
	}

	var done []string
	for _, migration := range m.migrations {
		if applied[migration.Version] {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return recordMigration(tx, migration.Version, migration.Name)
		})
		if err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
		done = append(done, migration.Version)
	}

	return done, nil
}

// Down rolls back every applied migration newer than version. An empty
// version rolls back everything.
func (m *Migrator) Down(version string) ([]string, error) {
	if err := m.createMigrationsTable(); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return nil, err
	}

	if version != "" && !m.known(version) {
		return nil, fmt.Errorf("unknown migration version %s", version)
	}

	var done []string
	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version == version {
			break
		}

		if !applied[migration.Version] {
			continue
		}

		err := m.db.Transaction(func(tx *gorm.DB) error {
			if migration.Down != nil {
				if err := migration.Down(tx); err != nil {
					return err
				}
			}
			return removeMigration(tx, migration.Version)
		})
		if err != nil {
			return done, fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
		}
		done = append(done, migration.Version)
	}

	return done, nil
}

func (m *Migrator) known(version string) bool {
	for _, migration := range m.migrations {
		if migration.Version == version {
			return true
		}
	}
	return false
}

func (m *Migrator) createMigrationsTable() error {
	return m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`).Error
}

func (m *Migrator) getAppliedMigrations() (map[string]bool, error) {
	var results []struct {
		Version string
	}

	if err := m.db.Table("schema_migrations").Select("version").Find(&results).Error; err != nil {
		return nil, err
	}

	applied := make(map[string]bool)
	for _, result := range results {
		applied[result.Version] = true
	}

	return applied, nil
}

func recordMigration(tx *gorm.DB, version, name string) error {
	return tx.Exec(`
		INSERT INTO schema_migrations (version, name)
		VALUES (?, ?)
		ON CONFLICT (version) DO NOTHING
	`, version, name).Error
}

func removeMigration(tx *gorm.DB, version string) error {
	return tx.Exec("DELETE FROM schema_migrations WHERE version = ?", version).Error
}

func (m *Migrator) Status() ([]MigrationStatus, error) {
	if err := m.createMigrationsTable(); err != nil {
		return nil, err
	}

	applied, err := m.getAppliedMigrations()
	if err != nil {
		return nil, err
	}

	var statuses []MigrationStatus
	for _, migration := range m.migrations {
		statuses = append(statuses, MigrationStatus{
			Version: migration.Version,
			Name:    migration.Name,
			Applied: applied[migration.Version],
		})
	}

	return statuses, nil
}

type MigrationStatus struct {
	Version string
	Name    string
	Applied bool
}
