package cli

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/migrato/internal/core/domain"
	"github.com/custodia-labs/migrato/internal/core/ports/driving"
	"github.com/custodia-labs/migrato/internal/core/services"
)

var importFlags struct {
	prune       bool
	dryRun      bool
	maxFailures int
	watch       bool
	quiet       time.Duration
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply transfer files to the live database",
	Long: `Loads every transfer file and applies the records in dependency order.
Existing entities are matched by xml id and updated, missing ones are created.

With --prune, live entities of the imported kinds that the files no longer
contain are deleted, except those still referenced by another live entity.
With --watch, the import runs again whenever a transfer file changes.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.BoolVar(&importFlags.prune, "prune", false, "delete live records missing from the transfer files")
	f.BoolVar(&importFlags.dryRun, "dry-run", false, "report planned changes without writing")
	f.IntVar(&importFlags.maxFailures, "max-failures", 0, "stop after this many failed records (0 = no limit)")
	f.BoolVarP(&importFlags.watch, "watch", "w", false, "re-import when transfer files change")
	f.DurationVar(&importFlags.quiet, "quiet", 300*time.Millisecond, "wait this long after the last change before importing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errNotConfigured
	}
	opts, err := importOptions(cmd)
	if err != nil {
		return err
	}

	report, err := orchestrator.Import(cmdContext(cmd), opts)
	if report != nil {
		printReport(cmd.OutOrStdout(), report, opts.DryRun)
	}
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if importFlags.watch {
		return watchImports(cmd, opts)
	}
	if report.Err() != nil {
		return fmt.Errorf("import finished with errors: %d failed, %d blocked",
			report.Summary().Failed, report.Summary().Blocked)
	}
	return nil
}

// importOptions merges flags over the saved settings. A flag set on the
// command line always wins.
func importOptions(cmd *cobra.Command) (driving.ImportOptions, error) {
	opts := driving.ImportOptions{
		Prune:       importFlags.prune,
		DryRun:      importFlags.dryRun,
		MaxFailures: importFlags.maxFailures,
	}
	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return opts, err
		}
		if !cmd.Flags().Changed("prune") {
			opts.Prune = settings.Prune
		}
		if !cmd.Flags().Changed("max-failures") {
			opts.MaxFailures = settings.MaxFailures
		}
	}
	if opts.MaxFailures < 0 {
		return opts, fmt.Errorf("%w: --max-failures must not be negative", domain.ErrInvalidInput)
	}
	return opts, nil
}

func watchImports(cmd *cobra.Command, opts driving.ImportOptions) error {
	if changeSource == nil {
		return errors.New("watching is not available")
	}
	ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	watcher := services.NewImportWatcher(changeSource, orchestrator, opts, importFlags.quiet,
		func(r services.WatchResult) {
			if r.Report != nil {
				printReport(out, r.Report, opts.DryRun)
			}
			if r.Err != nil {
				fmt.Fprintln(out, stylesFor(out).Error.Render("Import failed: "+r.Err.Error()))
			}
		})
	cmd.Println("Watching for changes. Press Ctrl+C to stop.")
	return watcher.Run(ctx)
}

func printReport(w io.Writer, report *domain.Report, dryRun bool) {
	st := stylesFor(w)
	title := "Import"
	if dryRun {
		title = "Import (dry run)"
	}
	fmt.Fprintln(w, st.Title.Render(title))

	for _, o := range report.Outcomes {
		line := fmt.Sprintf("  %-8s %-8s %s", o.Status, o.Action, o.Key)
		switch o.Status {
		case domain.StatusFailed:
			fmt.Fprintln(w, st.Error.Render(line+": "+errText(o.Err)))
		case domain.StatusBlocked:
			fmt.Fprintln(w, st.Warning.Render(line+": "+errText(o.Err)))
		case domain.StatusSkipped:
			if o.Err != nil {
				line += ": " + o.Err.Error()
			}
			fmt.Fprintln(w, st.Muted.Render(line))
		}
	}

	sum := report.Summary()
	line := fmt.Sprintf("%d created, %d updated, %d deleted, %d planned, %d failed, %d blocked, %d skipped",
		sum.Created, sum.Updated, sum.Deleted, sum.Planned, sum.Failed, sum.Blocked, sum.Skipped)
	if sum.Failed+sum.Blocked > 0 {
		fmt.Fprintln(w, st.Error.Render(line))
		return
	}
	fmt.Fprintln(w, st.Success.Render(line))
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
