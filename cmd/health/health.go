// Package health implements the health command.
package health

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
	"github.com/newsloom/newsloom/internal/linkstore"
	"github.com/newsloom/newsloom/internal/vector"
)

// Command returns the health command.
func Command(flags common.ConfigFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to the link store and the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			healthy := true

			if pingErr := linkstore.Ping(cmd.Context(), deps.DB); pingErr != nil {
				fmt.Printf("link store:   DOWN (%v)\n", pingErr)
				healthy = false
			} else {
				fmt.Println("link store:   ok")
			}

			esClient, clientErr := vector.NewClient(vector.Config{
				Addresses:  deps.Config.Vector.Addresses,
				Username:   deps.Config.Vector.Username,
				Password:   deps.Config.Vector.Password,
				APIKey:     deps.Config.Vector.APIKey,
				Dimensions: deps.Config.Vector.Dimensions,
			}, deps.Logger)
			if clientErr != nil {
				fmt.Printf("vector store: DOWN (%v)\n", clientErr)
				healthy = false
			} else if pingErr := vector.Ping(cmd.Context(), esClient); pingErr != nil {
				fmt.Printf("vector store: DOWN (%v)\n", pingErr)
				healthy = false
			} else {
				fmt.Println("vector store: ok")
			}

			if !healthy {
				return fmt.Errorf("one or more stores are unreachable")
			}
			return nil
		},
	}
}
