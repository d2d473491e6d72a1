package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlinks/cmd"
)

// DeleteCmd supprime un lien et toutes ses visites.
var DeleteCmd = &cobra.Command{
	Use:   "delete <short-code>",
	Short: "Supprime un lien et ses visites.",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.links.DeleteLink(c.Context(), args[0]); err != nil {
			return fmt.Errorf("short code '%s': %w", args[0], err)
		}
		fmt.Fprintf(c.OutOrStdout(), "Lien %s supprimé.\n", args[0])
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(DeleteCmd)
}
