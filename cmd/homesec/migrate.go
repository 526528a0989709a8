package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/homesec-core/internal/infrastructure/database"
	"github.com/nerrad567/homesec-core/migrations"
)

// newMigrateCmd applies, rolls back or lists schema migrations without
// starting the service.
func newMigrateCmd(configPath *string) *cobra.Command {
	var (
		down   bool
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations.",
		Long: `Applies every pending migration in version order.

--down rolls back the most recent migration. --status lists applied and
pending migrations and changes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if down && status {
				return fmt.Errorf("--down and --status are mutually exclusive")
			}

			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			switch {
			case status:
				applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
				if err != nil {
					return fmt.Errorf("reading migration status: %w", err)
				}
				for _, m := range applied {
					fmt.Fprintf(out, "applied  %s  %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
				}
				for _, m := range pending {
					fmt.Fprintf(out, "pending  %s  %s\n", m.Version, m.Name)
				}
			case down:
				version, err := db.MigrateDown(ctx, migrations.FS)
				if err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				if version == "" {
					fmt.Fprintln(out, "nothing to roll back")
				} else {
					fmt.Fprintf(out, "rolled back %s\n", version)
				}
			default:
				n, err := db.Migrate(ctx, migrations.FS)
				if err != nil {
					return fmt.Errorf("running migrations: %w", err)
				}
				fmt.Fprintf(out, "applied %d migration(s)\n", n)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	return cmd
}
