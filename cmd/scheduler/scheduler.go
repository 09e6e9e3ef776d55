// Package scheduler implements the scheduler daemon command.
package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/newsloom/newsloom/cmd/common"
	"github.com/newsloom/newsloom/internal/domain"
	schedsvc "github.com/newsloom/newsloom/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// Command returns the scheduler command.
func Command(flags common.ConfigFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the periodic crawl scheduler",
		Long: `Runs the scheduler daemon: a daily full crawl, a weekly cleanup, and a
metrics endpoint. Stop with SIGINT or SIGTERM; the job in flight finishes
or fails gracefully.`,
		Args: cobra.NoArgs,
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

			sched := schedsvc.New(schedsvc.Config{
				UpdateTime:    deps.Config.Scheduler.UpdateTime,
				CleanupDay:    deps.Config.Scheduler.CleanupDay,
				CleanupTime:   deps.Config.Scheduler.CleanupTime,
				CleanupDays:   deps.Config.Scheduler.CleanupDaysOld,
				CheckInterval: deps.Config.Scheduler.CheckInterval,
				HistorySize:   deps.Config.Scheduler.HistorySize,
			}, newRunner(deps), nil, deps.Metrics, deps.Logger)

			if startErr := sched.Start(); startErr != nil {
				return startErr
			}

			server := &http.Server{
				Addr:              metricsAddr,
				Handler:           promhttp.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
					deps.Logger.Error("metrics server failed", "error", serveErr)
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			deps.Logger.Info("shutting down scheduler")

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			_ = server.Shutdown(ctx)
			return sched.Stop(ctx)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address for the Prometheus metrics endpoint")

	return cmd
}

// newRunner maps job types onto the orchestrator paths.
func newRunner(deps *common.Deps) schedsvc.Runner {
	return schedsvc.RunnerFunc(func(ctx context.Context, job *domain.Job) (*domain.RunResult, error) {
		switch job.Type {
		case domain.JobTypeDomainCrawl:
			domainID := job.Params["domain_id"]
			if domainID == "" {
				return nil, fmt.Errorf("domain_crawl job %s missing domain_id", job.ID)
			}
			return deps.Orchestrator.CrawlDomain(ctx, domainID)

		case domain.JobTypeFullCrawl, domain.JobTypeRefresh:
			return deps.Orchestrator.CrawlAll(ctx)

		case domain.JobTypeCleanup:
			daysOld, _ := strconv.Atoi(job.Params["days_old"])
			if _, _, err := deps.Orchestrator.Cleanup(ctx, daysOld); err != nil {
				return nil, err
			}
			return &domain.RunResult{}, nil

		case domain.JobTypeSync:
			syncResult, err := deps.Reconciler.Run(ctx)
			if err != nil {
				return nil, err
			}
			return &domain.RunResult{Errors: syncResult.Errors}, nil

		default:
			return nil, fmt.Errorf("unknown job type %q", job.Type)
		}
	})
}
