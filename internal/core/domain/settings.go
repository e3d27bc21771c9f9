package domain

import (
	"fmt"
	"path/filepath"
)

// Config keys shared by the config store and the settings service.
const (
	SettingDatabasePath = "database.path"
	SettingTransferDir  = "transfer.dir"
	SettingPrune        = "sync.prune"
	SettingMaxFailures  = "sync.max_failures"
	SettingWriteRate    = "sync.write_rate"
	SettingWriteBurst   = "sync.write_burst"
	SettingVerbose      = "log.verbose"
)

// Settings holds the user-configurable options of a run.
type Settings struct {
	// DatabasePath is the live database file.
	DatabasePath string

	// TransferDir is where exported records are written and read.
	TransferDir string

	// Prune deletes live records absent from an import batch.
	Prune bool

	// MaxFailures stops an import after this many failed records.
	// Zero means no limit.
	MaxFailures int

	// WriteRate limits live writes per second. Zero means unlimited.
	WriteRate float64

	// WriteBurst is the write limiter's bucket size.
	WriteBurst int

	// Verbose enables debug logging.
	Verbose bool
}

// DefaultSettings returns settings rooted at the given base directory
// (typically ~/.migrato).
func DefaultSettings(baseDir string) Settings {
	return Settings{
		DatabasePath: filepath.Join(baseDir, "data", "site.db"),
		TransferDir:  filepath.Join(baseDir, "transfer"),
		WriteBurst:   1,
	}
}

// Validate checks that settings are consistent.
func (s Settings) Validate() error {
	if s.DatabasePath == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidInput, SettingDatabasePath)
	}
	if s.TransferDir == "" {
		return fmt.Errorf("%w: %s is empty", ErrInvalidInput, SettingTransferDir)
	}
	if s.MaxFailures < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, SettingMaxFailures)
	}
	if s.WriteRate < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, SettingWriteRate)
	}
	if s.WriteRate > 0 && s.WriteBurst < 1 {
		return fmt.Errorf("%w: %s must be at least 1", ErrInvalidInput, SettingWriteBurst)
	}
	return nil
}
