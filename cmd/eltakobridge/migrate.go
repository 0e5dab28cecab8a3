package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/database"
)

// migrateCommand groups schema maintenance on the database named in the
// configuration file.
func migrateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the local database schema",
	}

	withDB := func(fn func(cmd *cobra.Command, db *database.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			db, err := database.Open(database.Config{
				Path:        cfg.Database.Path,
				WALMode:     cfg.Database.WALMode,
				BusyTimeout: cfg.Database.BusyTimeout,
			})
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // read path
			return fn(cmd, db)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, db *database.DB) error {
			return migrationStatus(cmd, cmd.OutOrStdout(), db)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, db *database.DB) error {
			if err := db.Migrate(cmd.Context()); err != nil {
				return err
			}
			return migrationStatus(cmd, cmd.OutOrStdout(), db)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: withDB(func(cmd *cobra.Command, db *database.DB) error {
			if err := db.Rollback(cmd.Context()); err != nil {
				return err
			}
			return migrationStatus(cmd, cmd.OutOrStdout(), db)
		}),
	})

	return cmd
}

func migrationStatus(cmd *cobra.Command, w io.Writer, db *database.DB) error {
	status, err := db.MigrationStatus(cmd.Context())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
	for _, s := range status {
		applied := "pending"
		if s.Applied() {
			applied = s.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Version, s.Name, applied)
	}
	return tw.Flush()
}
