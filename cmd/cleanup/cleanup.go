// Package cleanup implements the cleanup command.
package cleanup

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
)

// Command returns the cleanup command.
func Command(flags common.ConfigFlags) *cobra.Command {
	var daysOld int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Mark stale links obsolete and prune old attempt history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			obsolete, pruned, err := deps.Orchestrator.Cleanup(cmd.Context(), daysOld)
			if err != nil {
				return err
			}

			fmt.Printf("links marked obsolete: %d\n", obsolete)
			fmt.Printf("attempts pruned:       %d\n", pruned)
			return nil
		},
	}

	cmd.Flags().IntVar(&daysOld, "days", 0, "age threshold in days (default from config)")

	return cmd
}
