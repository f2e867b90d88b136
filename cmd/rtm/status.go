package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/store"
)

func newStatusCmd() *cobra.Command {
	var (
		configPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show mirror status",
		Long:  "Displays per-kind record counts, pending local edits and the last sync checkpoints. Use --watch for auto-refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, configPath, watch)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&watch, "watch", false, "auto-refresh every 5 seconds")
	return cmd
}

func runStatus(cmd *cobra.Command, configPath string, watch bool) error {
	cfg, gormDB, project, err := openProject(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	for {
		if watch {
			// Clear screen.
			fmt.Fprint(out, "\033[2J\033[H")
		}
		if err := printStatus(out, gormDB, project, cfg.Remote.BaseURL); err != nil {
			return err
		}
		if !watch {
			return nil
		}
		time.Sleep(5 * time.Second)
	}
}

func printStatus(out io.Writer, db *gorm.DB, project *models.Project, baseURL string) error {
	counts, err := store.CountIssues(db, project.ID)
	if err != nil {
		return err
	}
	st, err := store.GetSyncState(db, project.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Project %s (%s)\n\n", project.Key, baseURL)
	fmt.Fprintf(out, "%-16s %6s %9s %6s\n", "KIND", "LIVE", "DELETED", "DIRTY")
	var dirty int64
	for _, c := range counts {
		fmt.Fprintf(out, "%-16s %6d %9d %6d\n", c.Kind, c.Live, c.Deleted, c.Dirty)
		dirty += c.Dirty
	}
	fmt.Fprintf(out, "\nLast full sync:  %s\n", formatCheckpoint(st.LastFullSyncAt))
	fmt.Fprintf(out, "Last tree sync:  %s\n", formatCheckpoint(st.LastTreeSyncAt))
	fmt.Fprintf(out, "Last issue sync: %s\n", formatCheckpoint(st.LastIssueSyncAt))
	if dirty > 0 {
		fmt.Fprintf(out, "\n%d unpushed local edits (run `rtm push`)\n", dirty)
	}
	return nil
}

func formatCheckpoint(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}
