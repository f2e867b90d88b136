package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/quayside/rtmirror/internal/sync"
)

func newPullCmd() *cobra.Command {
	var (
		configPath string
		scopes     []string
		treeOnly   bool
		skipDirty  bool
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull the remote trees into the local mirror",
		Long:  "Walks the remote folder trees scope by scope, pulls each issue's full detail, and tombstones records the remote no longer shows. Pull overwrites local state; use --skip-dirty to spare unpushed edits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(cmd, configPath, scopes, treeOnly, skipDirty)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "tree scope to pull (repeatable); default is the configured set")
	cmd.Flags().BoolVar(&treeOnly, "tree-only", false, "reconcile folder structure only, skip per-issue detail")
	cmd.Flags().BoolVar(&skipDirty, "skip-dirty", false, "do not overwrite or tombstone records with unpushed local edits")
	return cmd
}

func runPull(cmd *cobra.Command, configPath string, scopes []string, treeOnly, skipDirty bool) error {
	cfg, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if scopes == nil {
		scopes = cfg.Sync.TreeScopes
	}
	opts := sync.PullOpts{
		Scopes:    scopes,
		TreeOnly:  treeOnly,
		SkipDirty: skipDirty || cfg.Sync.SkipDirty,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Pulling %s from %s...\n", project.Key, cfg.Remote.BaseURL)
	res, err := sync.PullTree(ctx, gormDB, remoteFromConfig(cfg), project, opts)
	if res != nil {
		printResult(out, res)
	}
	if err != nil {
		return err
	}

	if notifier, nerr := notifierFromConfig(cfg); nerr == nil {
		notifier.PostSummary(project.Key, "pull", res)
	}
	if len(res.Failures) > 0 {
		return fmt.Errorf("pull finished with %d failures", len(res.Failures))
	}
	return nil
}

func printResult(out io.Writer, res *sync.Result) {
	fmt.Fprintf(out, "Done: %s\n", res.Summary())
	for _, f := range res.Failures {
		fmt.Fprintf(out, "  FAILED %s %s: %v\n", f.Scope, f.Key, f.Err)
	}
}
