// Package cli is the migrato command line.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/migrato/internal/core/ports/driven"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
	"github.com/custodia-labs/migrato/internal/logger"
)

// Config holds the services the commands use.
type Config struct {
	Orchestrator driving.MigrationOrchestrator
	Settings     driving.SettingsService
	Changes      driven.ChangeSource
	Version      string
}

var (
	version = "dev"

	orchestrator    driving.MigrationOrchestrator
	settingsService driving.SettingsService
	changeSource    driven.ChangeSource

	verbose bool
)

var errNotConfigured = errors.New("migrato is not configured")

var rootCmd = &cobra.Command{
	Use:   "migrato",
	Short: "Move CMS configuration between sites",
	Long: `migrato exports configuration entities (information blocks, properties,
user fields, list filters, performance indexes, URL rewrite rules) from a live
database into portable YAML files, and imports them into another site in
dependency order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Configure sets the services used by the commands.
func Configure(cfg *Config) {
	orchestrator = cfg.Orchestrator
	settingsService = cfg.Settings
	changeSource = cfg.Changes
	if cfg.Version != "" {
		version = cfg.Version
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// cmdContext returns the command's context, or a background context when
// the command runs outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
