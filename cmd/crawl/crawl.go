// Package crawl implements the crawl commands.
package crawl

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
	"github.com/newsloom/newsloom/internal/domain"
)

// Command returns the crawl command group.
func Command(flags common.ConfigFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run crawl passes over registered sites",
	}

	cmd.AddCommand(domainCommand(flags))
	cmd.AddCommand(siteCommand(flags))
	cmd.AddCommand(allCommand(flags))

	return cmd
}

func domainCommand(flags common.ConfigFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "domain <domain-id>",
		Short: "Crawl every active site of one domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			if _, err := deps.Orchestrator.RecoverStale(cmd.Context()); err != nil {
				return err
			}

			result, err := deps.Orchestrator.CrawlDomain(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}
}

func siteCommand(flags common.ConfigFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "site <site-id>",
		Short: "Crawl a single site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			if _, err := deps.Orchestrator.RecoverStale(cmd.Context()); err != nil {
				return err
			}

			result, err := deps.Orchestrator.CrawlSite(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}
}

func allCommand(flags common.ConfigFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Crawl every active domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgFile, env := flags()
			deps, err := common.Build(cmd.Context(), cfgFile, env)
			if err != nil {
				return err
			}
			defer deps.Close()

			if _, err := deps.Orchestrator.RecoverStale(cmd.Context()); err != nil {
				return err
			}

			result, err := deps.Orchestrator.CrawlAll(cmd.Context())
			if err != nil {
				return err
			}

			printResult(result)
			return nil
		},
	}
}

func printResult(result *domain.RunResult) {
	fmt.Printf("sites processed:    %d\n", result.SitesProcessed)
	fmt.Printf("links discovered:   %d\n", result.LinksDiscovered)
	fmt.Printf("links crawled:      %d\n", result.LinksCrawled)
	fmt.Printf("articles extracted: %d\n", result.ArticlesExtracted)
	fmt.Printf("errors:             %d\n", result.Errors)
}
