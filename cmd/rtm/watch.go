package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/quayside/rtmirror/internal/sync"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		schedule   string
		interval   time.Duration
		pushToo    bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the mirror in sync on a schedule",
		Long:  "Runs pull (and optionally push) on a fixed interval or a 5-field cron schedule until interrupted. Failures are reported and the next run proceeds.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchSync(cmd, configPath, schedule, interval, pushToo)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringVar(&schedule, "cron", "", "5-field cron schedule (overrides --interval)")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "time between sync runs")
	cmd.Flags().BoolVar(&pushToo, "push", false, "push dirty records after each pull")
	return cmd
}

func runWatchSync(cmd *cobra.Command, configPath, schedule string, interval time.Duration, pushToo bool) error {
	cfg, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var sched cron.Schedule
	if schedule != "" {
		sched, err = cronParser.Parse(schedule)
		if err != nil {
			return fmt.Errorf("parse cron schedule %q: %w", schedule, err)
		}
		fmt.Fprintf(out, "Watching %s on schedule %q... (Ctrl+C to stop)\n", project.Key, schedule)
	} else {
		fmt.Fprintf(out, "Watching %s every %s... (Ctrl+C to stop)\n", project.Key, interval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	remote := remoteFromConfig(cfg)
	notifier, _ := notifierFromConfig(cfg)
	opts := sync.PullOpts{SkipDirty: cfg.Sync.SkipDirty}

	for {
		fmt.Fprintf(out, "[%s] pull\n", time.Now().Format("15:04:05"))
		res, err := sync.PullTree(ctx, gormDB, remote, project, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(out, "pull error: %v\n", err)
		} else {
			printResult(out, res)
			notifier.PostSummary(project.Key, "pull", res)
		}

		if pushToo {
			fmt.Fprintf(out, "[%s] push\n", time.Now().Format("15:04:05"))
			res, err := sync.PushDirty(ctx, gormDB, remote, project)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(out, "push error: %v\n", err)
			} else {
				printResult(out, res)
				notifier.PostSummary(project.Key, "push", res)
			}
		}

		wait := interval
		if sched != nil {
			wait = time.Until(sched.Next(time.Now()))
			if wait < 0 {
				wait = 0
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
