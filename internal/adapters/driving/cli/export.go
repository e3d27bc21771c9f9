package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/migrato/internal/core/ports/driving"
)

var exportKinds []string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export live configuration to transfer files",
	Long: `Reads every entity kind from the live database, dependencies first, and
writes one YAML file per kind to the transfer directory. Existing files of the
exported kinds are replaced.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringSliceVarP(&exportKinds, "kind", "k", nil, "export only these kinds")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errNotConfigured
	}

	summary, err := orchestrator.Export(cmdContext(cmd), driving.ExportOptions{Kinds: exportKinds})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Title.Render("Export"))
	for _, kind := range summary.Kinds {
		cmd.Printf("  %-24s %d\n", kind, summary.Counts[kind])
	}
	cmd.Println(st.Success.Render(fmt.Sprintf("Exported %d records to %s", summary.Total(), summary.Location)))
	return nil
}
