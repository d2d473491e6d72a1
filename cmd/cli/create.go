package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlinks/cmd"
)

var (
	longURLFlag string
	codeFlag    string
)

// CreateCmd représente la commande 'create'
var CreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Crée une URL courte à partir d'une URL longue.",
	Long: `Cette commande raccourcit une URL longue fournie et affiche le code court généré.
Un code personnalisé de 6 à 8 caractères [A-Za-z0-9] peut être imposé avec --code.

Exemple:
  shortlinks create --url="https://www.google.com/search?q=go+lang"
  shortlinks create --url="https://go.dev" --code=godev1`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		link, err := a.links.CreateLink(c.Context(), longURLFlag, codeFlag)
		if err != nil {
			return fmt.Errorf("failed to create short link: %w", err)
		}

		out := c.OutOrStdout()
		fmt.Fprintf(out, "URL courte créée avec succès:\n")
		fmt.Fprintf(out, "Code: %s\n", link.Code)
		fmt.Fprintf(out, "URL complète: %s\n", shortURL(link.Code))
		return nil
	},
}

func init() {
	CreateCmd.Flags().StringVar(&longURLFlag, "url", "", "The long URL to shorten")
	CreateCmd.Flags().StringVar(&codeFlag, "code", "", "Custom short code (optional)")
	_ = CreateCmd.MarkFlagRequired("url")

	cmd.RootCmd.AddCommand(CreateCmd)
}
