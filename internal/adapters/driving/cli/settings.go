package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/migrato/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change saved settings",
	RunE:  runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Long: `Changes one setting and saves it to the config file.

Keys:
  database.path       live database file
  transfer.dir        directory of transfer files
  sync.prune          prune on import (true/false)
  sync.max_failures   stop an import after this many failures (0 = no limit)
  sync.write_rate     live writes per second (0 = unlimited)
  sync.write_burst    writes allowed in a burst
  log.verbose         debug logging (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Title.Render("Settings"))
	rows := []struct {
		key   string
		value any
	}{
		{domain.SettingDatabasePath, settings.DatabasePath},
		{domain.SettingTransferDir, settings.TransferDir},
		{domain.SettingPrune, settings.Prune},
		{domain.SettingMaxFailures, settings.MaxFailures},
		{domain.SettingWriteRate, settings.WriteRate},
		{domain.SettingWriteBurst, settings.WriteBurst},
		{domain.SettingVerbose, settings.Verbose},
	}
	for _, r := range rows {
		cmd.Printf("  %-18s %v\n", r.key, r.value)
	}
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured
	}

	key := args[0]
	value, err := parseSetting(key, args[1])
	if err != nil {
		return err
	}

	// validate the combined result before saving
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	applySetting(settings, key, value)
	if err := settings.Validate(); err != nil {
		return err
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	cmd.Printf("Set %s to %v\n", key, value)
	return nil
}

// parseSetting converts the text of a value to the key's type.
func parseSetting(key, raw string) (any, error) {
	switch key {
	case domain.SettingDatabasePath, domain.SettingTransferDir:
		return raw, nil
	case domain.SettingPrune, domain.SettingVerbose:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false", domain.ErrInvalidInput, key)
		}
		return b, nil
	case domain.SettingMaxFailures, domain.SettingWriteBurst:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects an integer", domain.ErrInvalidInput, key)
		}
		return n, nil
	case domain.SettingWriteRate:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects a number", domain.ErrInvalidInput, key)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}
}

func applySetting(s *domain.Settings, key string, value any) {
	switch key {
	case domain.SettingDatabasePath:
		s.DatabasePath = value.(string)
	case domain.SettingTransferDir:
		s.TransferDir = value.(string)
	case domain.SettingPrune:
		s.Prune = value.(bool)
	case domain.SettingVerbose:
		s.Verbose = value.(bool)
	case domain.SettingMaxFailures:
		s.MaxFailures = value.(int)
	case domain.SettingWriteBurst:
		s.WriteBurst = value.(int)
	case domain.SettingWriteRate:
		s.WriteRate = value.(float64)
	}
}
