// Package search implements the semantic search command.
package search

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
	searchsvc "github.com/newsloom/newsloom/internal/search"
)

const previewLength = 80

// Command returns the search command.
func Command(flags common.ConfigFlags) *cobra.Command {
	var (
		domainID   string
		limit      int
		minQuality float64
		since      string
	)

	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Semantically search stored articles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			opts := searchsvc.Options{
				DomainID:   domainID,
				Limit:      limit,
				MinQuality: minQuality,
			}
			if since != "" {
				from, parseErr := time.Parse("2006-01-02", since)
				if parseErr != nil {
					return fmt.Errorf("invalid --since date %q, want YYYY-MM-DD", since)
				}
				opts.From = &from
			}

			hits, err := deps.Retriever.Search(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if len(hits) == 0 {
				fmt.Println("no results")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"#", "Score", "Title", "Site", "Published", "URL"})
			for i, hit := range hits {
				published := ""
				if hit.Vector.PublishedDate != nil {
					published = hit.Vector.PublishedDate.Format("2006-01-02")
				}
				t.AppendRow(table.Row{
					i + 1,
					fmt.Sprintf("%.3f", hit.Similarity),
					truncate(hit.Vector.Title, previewLength),
					hit.SiteName,
					published,
					hit.Vector.URL,
				})
			}
			t.Render()

			return nil
		},
	}

	cmd.Flags().StringVarP(&domainID, "domain", "d", "", "restrict to one domain")
	cmd.Flags().IntVarP(&limit, "limit", "k", 0, "maximum results (default per-domain cap)")
	cmd.Flags().Float64Var(&minQuality, "min-quality", 0, "minimum quality score")
	cmd.Flags().StringVar(&since, "since", "", "only articles published on or after YYYY-MM-DD")

	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
