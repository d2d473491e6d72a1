package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlinks/cmd"
	"github.com/axellelanca/shortlinks/internal/database"
)

// MigrateCmd represents the 'migrate' command
// This command handles database schema creation and updates
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Executes database migrations to create or update tables.",
	Long: `This command connects to the configured database (SQLite or PostgreSQL)
and executes GORM automatic migrations to create the 'links' and 'visits' tables
based on the Go models.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := database.Migrate(a.db); err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Database migrations executed successfully.")
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(MigrateCmd)
}
