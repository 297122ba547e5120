package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kwayummari/ghf-approval-engine/internal/config"
	"github.com/kwayummari/ghf-approval-engine/migrations"
	"github.com/kwayummari/ghf-approval-engine/pkg/database"
)

var migrateDryRun bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "List pending migrations without applying them")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  "Applies the embedded SQL migrations that are not yet recorded in schema_migrations, oldest first.",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	pending, err := migrator.Pending(migrations.FS)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(pending) == 0 {
		fmt.Fprintln(out, "Database is up to date")
		return nil
	}

	for _, m := range pending {
		fmt.Fprintf(out, "pending %03d_%s\n", m.Version, m.Name)
	}
	if migrateDryRun {
		return nil
	}

	if err := migrator.RunMigrations(migrations.FS); err != nil {
		return err
	}
	fmt.Fprintf(out, "Applied %d migrations to %s\n", len(pending), cfg.Database.Path)
	return nil
}
