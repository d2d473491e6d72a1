package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/shortlinks/internal/config"
)

// Cfg is the global variable that will contain the loaded configuration.
// It is set before any subcommand runs.
var Cfg *config.Config

// cfgFile is the --config flag; empty means ./configs/config.yaml.
var cfgFile string

// RootCmd is the base command for the CLI application.
// Subcommands (run-server, create, list, stats, delete, migrate) add themselves from their own init().
var RootCmd = &cobra.Command{
	Use:   "shortlinks",
	Short: "A URL shortener with click analytics",
	Long: `shortlinks maps short codes to long URLs, redirects visitors and records
click analytics. Run the HTTP service with 'run-server' or manage links directly
against the database with the other commands.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the Cobra application, called from main.go.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./configs/config.yaml)")
}

// initConfig loads the configuration once flags are parsed.
// An invalid configuration is fatal; a missing file is not.
func initConfig() {
	var err error
	Cfg, err = config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
}
