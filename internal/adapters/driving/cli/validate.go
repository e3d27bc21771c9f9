package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check live configuration before exporting",
	Long: `Exports every kind in memory and reports records without an xml id,
xml ids used twice within a kind, dependencies that break the declared schema
and references that resolve neither in the export nor live.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errNotConfigured
	}

	report, err := orchestrator.Validate(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("validate failed: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Title.Render("Validate"))
	for _, issue := range report.Issues {
		where := issue.Key.String()
		if issue.Dependency != "" {
			where += " " + issue.Dependency
		}
		cmd.Println(st.Warning.Render(fmt.Sprintf("  %s: %s", where, issue.Message)))
	}

	if !report.OK() {
		return fmt.Errorf("%d issues in %d records", len(report.Issues), report.Checked)
	}
	cmd.Println(st.Success.Render(fmt.Sprintf("%d records checked, no issues", report.Checked)))
	return nil
}
