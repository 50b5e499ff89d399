package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/killallgit/trackreview-api/internal/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Manage database migrations for the Track Review API.

The schema is derived from the stored models. serve migrates on startup,
so these commands are for preparing or inspecting a database ahead of time.

Available subcommands:
  up      - Create missing tables and columns
  status  - Show which tables exist`,
}

// migrateUpCmd applies pending migrations
var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Long: `Apply all pending database migrations.

Missing tables are created and existing tables gain any new columns.
Nothing is dropped.`,
	RunE: runMigrateUp,
}

// migrateStatusCmd shows migration status
var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `Display the current status of database migrations.

Lists every table the server uses and whether it exists yet.`,
	RunE: runMigrateStatus,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	migrateUpCmd.Flags().Bool("dry-run", false, "list pending tables without changing the database")
}

func openDatabase(cmd *cobra.Command) (*database.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return database.Initialize(cfg.Database.Path, cfg.Database.Verbose, newLogger(cfg))
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Schema changes are refused while a server holds the data directory.
	lock, err := lockDataDir(filepath.Dir(cfg.Database.Path))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	db, err := database.Initialize(cfg.Database.Path, cfg.Database.Verbose, newLogger(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	pending, err := db.Pending()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		if len(pending) == 0 {
			fmt.Fprintln(out, "Database is up to date")
			return nil
		}
		fmt.Fprintf(out, "Would create: %s\n", strings.Join(pending, ", "))
		return nil
	}

	if err := db.Migrate(); err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(out, "Database is up to date")
		return nil
	}
	fmt.Fprintf(out, "Created: %s\n", strings.Join(pending, ", "))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := openDatabase(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	tables, err := db.Tables()
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(tables))
	for _, table := range tables {
		state := "pending"
		if table.Applied {
			state = "applied"
		}
		rows = append(rows, []string{table.Table, state})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]column{{Header: "Table"}, {Header: "Status"}}, rows))
	return nil
}
