package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"budgetsim/internal/storage"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Create or upgrade the SQLite schema to the latest version.

The server migrates on startup too; this command is for preparing a
database ahead of time or checking which version it is at.`,
		Args: cobra.NoArgs,
		RunE: a.runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the current schema version without applying changes")
	return cmd
}

func (a *app) runMigrate(cmd *cobra.Command, _ []string) error {
	statusOnly, _ := cmd.Flags().GetBool("status")
	dbPath := a.dbPath()
	out := cmd.OutOrStdout()

	a.logger.Info("Starting database migration", "database", dbPath, "status_only", statusOnly)

	if !statusOnly {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return fmt.Errorf("create db directory: %w", err)
		}
		if err := storage.RunMigrations(dbPath); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "database: %s\nschema version: %d\n", dbPath, version)
	if dirty {
		fmt.Fprintln(out, "warning: last migration did not complete, the schema is dirty")
	}
	return nil
}
