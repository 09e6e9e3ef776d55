// Package cmd implements the newsloom command-line interface.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/cleanup"
	"github.com/newsloom/newsloom/cmd/crawl"
	"github.com/newsloom/newsloom/cmd/health"
	cmdscheduler "github.com/newsloom/newsloom/cmd/scheduler"
	cmdsearch "github.com/newsloom/newsloom/cmd/search"
	"github.com/newsloom/newsloom/cmd/stats"
	cmdsync "github.com/newsloom/newsloom/cmd/sync"
)

var (
	cfgFile string
	envName string

	rootCmd = &cobra.Command{
		Use:   "newsloom",
		Short: "Domain-scoped news acquisition pipeline",
		Long: `newsloom discovers, crawls, extracts and semantically indexes news
articles for configured topical domains.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "environment (dev or prod, default from ENV)")

	opts := func() (string, string) { return cfgFile, envName }

	rootCmd.AddCommand(crawl.Command(opts))
	rootCmd.AddCommand(cmdsearch.Command(opts))
	rootCmd.AddCommand(cmdscheduler.Command(opts))
	rootCmd.AddCommand(cleanup.Command(opts))
	rootCmd.AddCommand(cmdsync.Command(opts))
	rootCmd.AddCommand(stats.Command(opts))
	rootCmd.AddCommand(health.Command(opts))
}
