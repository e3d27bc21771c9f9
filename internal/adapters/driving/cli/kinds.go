package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List entity kinds in import order",
	Args:  cobra.NoArgs,
	RunE:  runKinds,
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}

func runKinds(cmd *cobra.Command, _ []string) error {
	if orchestrator == nil {
		return errNotConfigured
	}

	infos, err := orchestrator.Kinds()
	if err != nil {
		return fmt.Errorf("list kinds: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	for _, info := range infos {
		names := make([]string, 0, len(info.Dependencies))
		for name := range info.Dependencies {
			names = append(names, name)
		}
		sort.Strings(names)

		deps := make([]string, 0, len(names))
		for _, name := range names {
			deps = append(deps, name+"="+info.Dependencies[name])
		}
		if len(deps) == 0 {
			cmd.Println(info.Kind)
			continue
		}
		cmd.Printf("%s %s\n", info.Kind, st.Muted.Render(strings.Join(deps, " ")))
	}
	return nil
}
