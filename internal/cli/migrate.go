package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gurin-alexey/pulse-app-sub001/internal/storage"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or with --down, revert) the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if err := ensureDir(cfg.DatabasePath); err != nil {
				return err
			}
			db, err := sql.Open("sqlite3", cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			if down {
				if err := storage.MigrateDown(db); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reverted schema in %s\n", cfg.DatabasePath)
				return nil
			}
			if err := storage.MigrateUp(db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date in %s\n", cfg.DatabasePath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "revert all migrations")
	return cmd
}
