// Command migrato moves CMS configuration between sites.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/migrato/internal/adapters/driven/config/file"
	"github.com/custodia-labs/migrato/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/migrato/internal/adapters/driven/transfer/yamlfile"
	"github.com/custodia-labs/migrato/internal/adapters/driving/cli"
	"github.com/custodia-labs/migrato/internal/core/services"
	"github.com/custodia-labs/migrato/internal/logger"
	"github.com/custodia-labs/migrato/internal/providers"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	baseDir, err := file.DefaultDir()
	if err != nil {
		return err
	}
	configStore, err := file.NewConfigStore(baseDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, baseDir)
	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	logger.SetVerbose(settings.Verbose)

	store, err := sqlite.NewStore(settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	records, err := yamlfile.NewStore(settings.TransferDir)
	if err != nil {
		return err
	}

	var syncOpts []services.SynchronizerOption
	if settings.WriteRate > 0 {
		syncOpts = append(syncOpts, services.WithWriteLimit(settings.WriteRate, settings.WriteBurst))
	}

	live := store.LiveStore()
	orchestrator := services.NewMigrationOrchestrator(func() (*services.ProviderRegistry, error) {
		return providers.NewRegistry(live)
	}, records, syncOpts...)

	cli.Configure(&cli.Config{
		Orchestrator: orchestrator,
		Settings:     settingsService,
		Changes:      records,
		Version:      version,
	})
	return cli.Execute()
}
