package cmd

import (
	"github.com/spf13/cobra"
)

var migrationsPath string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connectDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		path := migrationsPath
		if path == "" {
			path = cfg.Database.MigrationsPath
		}
		return db.Migrate(path)
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsPath, "path", "", "migrations directory (default DB_MIGRATIONS_PATH)")
}
