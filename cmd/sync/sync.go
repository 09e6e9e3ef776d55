// Package sync implements the store reconciliation command.
package sync

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
)

// Command returns the sync command.
func Command(flags common.ConfigFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the vector store against the link store",
		Long: `Deletes vector objects whose link or article row disappeared, and
returns links whose article lost its vector to a re-crawlable state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			result, err := deps.Reconciler.Run(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("orphan vectors deleted: %d\n", result.OrphansDeleted)
			fmt.Printf("links reset:            %d\n", result.LinksRepaired)
			fmt.Printf("errors:                 %d\n", result.Errors)
			return nil
		},
	}
}
