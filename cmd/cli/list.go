package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlinks/cmd"
)

// ListCmd prints every link, newest first.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "Liste tous les liens, du plus récent au plus ancien.",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		links, err := a.links.ListLinks(c.Context())
		if err != nil {
			return fmt.Errorf("failed to list links: %w", err)
		}
		if len(links) == 0 {
			fmt.Fprintln(c.OutOrStdout(), "Aucun lien.")
			return nil
		}

		w := tabwriter.NewWriter(c.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tCLICS\tDERNIER CLIC\tCRÉÉ LE\tURL")
		for _, l := range links {
			last := "-"
			if l.LastClickedAt != nil {
				last = l.LastClickedAt.Local().Format(dateLayout)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", l.Code, l.Clicks, last, l.CreatedAt.Local().Format(dateLayout), l.URL)
		}
		return w.Flush()
	},
}

func init() {
	cmd.RootCmd.AddCommand(ListCmd)
}
