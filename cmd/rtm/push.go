package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quayside/rtmirror/internal/sync"
)

func newPushCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push unpushed local edits to the remote",
		Long:  "Writes every dirty record back to the remote: locally authored issues are created and adopt the key the remote assigns; edited ones are updated wholesale, links, steps and memberships included. A record that fails to push stays dirty for the next run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runPush(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Pushing %s to %s...\n", project.Key, cfg.Remote.BaseURL)
	res, err := sync.PushDirty(ctx, gormDB, remoteFromConfig(cfg), project)
	if res != nil {
		printResult(out, res)
	}
	if err != nil {
		return err
	}

	if notifier, nerr := notifierFromConfig(cfg); nerr == nil {
		notifier.PostSummary(project.Key, "push", res)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("push finished with %d failures", len(res.Failures))
	}
	return nil
}
