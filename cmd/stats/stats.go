// Package stats implements the stats command.
package stats

import (
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
)

// Command returns the stats command.
func Command(flags common.ConfigFlags) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show link-state counts and recent crawl rollups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			states, err := deps.Links.CountByState(cmd.Context())
			if err != nil {
				return err
			}

			stateTable := table.NewWriter()
			stateTable.SetOutputMirror(os.Stdout)
			stateTable.SetTitle("Links by state")
			stateTable.AppendHeader(table.Row{"State", "Count"})
			names := make([]string, 0, len(states))
			for state := range states {
				names = append(names, state)
			}
			sort.Strings(names)
			for _, state := range names {
				stateTable.AppendRow(table.Row{state, states[state]})
			}
			stateTable.Render()

			articles, err := deps.Articles.CountByDomain(cmd.Context())
			if err != nil {
				return err
			}

			articleTable := table.NewWriter()
			articleTable.SetOutputMirror(os.Stdout)
			articleTable.SetTitle("Articles by domain")
			articleTable.AppendHeader(table.Row{"Domain", "Count"})
			domains := make([]string, 0, len(articles))
			for domainID := range articles {
				domains = append(domains, domainID)
			}
			sort.Strings(domains)
			for _, domainID := range domains {
				articleTable.AppendRow(table.Row{domainID, articles[domainID]})
			}
			articleTable.Render()

			rollups, err := deps.Stats.ListRecent(cmd.Context(), days, 50)
			if err != nil {
				return err
			}

			runTable := table.NewWriter()
			runTable.SetOutputMirror(os.Stdout)
			runTable.SetTitle("Recent crawl runs")
			runTable.AppendHeader(table.Row{"Recorded", "Site", "Domain", "Discovered", "Crawled", "Articles", "Errors"})
			for _, row := range rollups {
				runTable.AppendRow(table.Row{
					row.RecordedAt.Format("2006-01-02 15:04"),
					row.SiteID,
					row.DomainID,
					row.LinksDiscovered,
					row.LinksCrawled,
					row.ArticlesExtracted,
					row.Errors,
				})
			}
			runTable.Render()

			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "how many days of rollups to show")

	return cmd
}
