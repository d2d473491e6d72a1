package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlinks/cmd"
	"github.com/axellelanca/shortlinks/internal/models"
)

const dateLayout = "2006-01-02 15:04:05"

// recentVisitsShown limits the visits printed by 'stats <code>'.
const recentVisitsShown = 10

// StatsCmd représente la commande 'stats'
var StatsCmd = &cobra.Command{
	Use:   "stats [short-code]",
	Short: "Affiche les statistiques globales, ou celles d'un code court.",
	Long: `Sans argument, affiche le nombre de liens, le total de clics, les clics du jour
et le lien le plus cliqué. Avec un code court, affiche le lien et ses dernières visites.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	cmd.RootCmd.AddCommand(StatsCmd)
}

// runStats exécute la logique pour la commande stats
func runStats(c *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := c.OutOrStdout()
	if len(args) == 0 {
		stats, err := a.stats.Aggregate(c.Context())
		if err != nil {
			return fmt.Errorf("failed to compute statistics: %w", err)
		}
		printAggregate(out, stats)
		return nil
	}

	details, err := a.links.GetLink(c.Context(), args[0])
	if err != nil {
		return fmt.Errorf("short code '%s': %w", args[0], err)
	}
	printLink(out, details)
	return nil
}

func printAggregate(out io.Writer, stats *models.Stats) {
	fmt.Fprintf(out, "Liens: %d\n", stats.TotalLinks)
	fmt.Fprintf(out, "Total de clics: %d\n", stats.TotalClicks)
	fmt.Fprintf(out, "Clics aujourd'hui: %d\n", stats.ClicksToday)
	if stats.TopLink == nil {
		fmt.Fprintln(out, "Lien le plus cliqué: aucun")
		return
	}
	fmt.Fprintf(out, "Lien le plus cliqué: %s (%d clics)\n", stats.TopLink.Code, stats.TopLink.Clicks)
}

func printLink(out io.Writer, d *models.LinkDetails) {
	fmt.Fprintf(out, "Statistiques pour le code court: %s\n", d.Code)
	fmt.Fprintf(out, "URL longue: %s\n", d.URL)
	fmt.Fprintf(out, "Total de clics: %d\n", d.Clicks)
	if d.LastClickedAt != nil {
		fmt.Fprintf(out, "Dernier clic: %s\n", d.LastClickedAt.Local().Format(dateLayout))
	}
	fmt.Fprintf(out, "Date de création: %s\n", d.CreatedAt.Local().Format(dateLayout))

	if len(d.Visits) == 0 {
		return
	}
	fmt.Fprintln(out, "Dernières visites:")
	for i, v := range d.Visits {
		if i == recentVisitsShown {
			fmt.Fprintf(out, "  ... %d de plus\n", len(d.Visits)-recentVisitsShown)
			break
		}
		fmt.Fprintf(out, "  %s  referer=%s  agent=%s\n", v.CreatedAt.Local().Format(dateLayout), orDash(v.Referer), orDash(v.UserAgent))
	}
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
