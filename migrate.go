package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	dbsetup "github.com/malwarebo/invoicer/config/db"
	"github.com/malwarebo/invoicer/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator) error {
			applied, err := m.Up()
			for _, version := range applied {
				printSuccess("Applied " + version)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				printInfo("Schema is up to date")
			}
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down <version|all>",
	Short: "Roll back every migration newer than version",
	Example: `  # Keep 001 and 002, roll back the rest
  invoicer migrate down 002

  # Drop the whole schema
  invoicer migrate down all`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version := args[0]
		if strings.EqualFold(version, "all") {
			version = ""
		}
		return withMigrator(func(m *db.Migrator) error {
			rolledBack, err := m.Down(version)
			for _, v := range rolledBack {
				printWarning("Rolled back " + v)
			}
			if err != nil {
				return err
			}
			if len(rolledBack) == 0 {
				printInfo("Nothing to roll back")
			}
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *db.Migrator) error {
			statuses, err := m.Status()
			if err != nil {
				return err
			}
			for _, s := range statuses {
				if s.Applied {
					printSuccess(fmt.Sprintf("%s %s", s.Version, s.Name))
				} else {
					printWarning(fmt.Sprintf("%s %s (pending)", s.Version, s.Name))
				}
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

// withMigrator needs only the database settings, so the command works before
// Stripe or mail are configured.
func withMigrator(fn func(*db.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	database, err := dbsetup.CreateDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	return fn(db.CreateSchemaMigrator(database.GetDB()))
}

