package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var urlrewriteCmd = &cobra.Command{
	Use:   "urlrewrite",
	Short: "Rebuild the URL rewrite rule order",
	Long: `Renumbers the URL rewrite rules of every site: rules keep their relative
SORT order, ties go to the longer condition, and SORT becomes 10, 20, 30...`,
	Args: cobra.NoArgs,
	RunE: runURLRewrite,
}

func init() {
	rootCmd.AddCommand(urlrewriteCmd)
}

func runURLRewrite(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errNotConfigured
	}

	n, err := orchestrator.ReindexURLs(cmdContext(cmd))
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	cmd.Printf("Reindexed %d URL rewrite rules.\n", n)
	return nil
}
