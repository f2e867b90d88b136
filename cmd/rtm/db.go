package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quayside/rtmirror/internal/db"
	"github.com/quayside/rtmirror/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the mirror database",
		Long:  "Creates the mirror database, migrates all tables and registers the configured project.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s mirror database\n", cfg.DB.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintln(out, "Migrated schema")

	p, err := store.EnsureProject(gormDB, cfg.Project.Key, cfg.Project.Name, cfg.Remote.BaseURL, cfg.Project.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Project %s ready (remote id %d)\n", p.Key, p.RemoteID)
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the local mirror and start over",
		Long:  "Removes the sqlite database file. The next `rtm db init` plus `rtm pull` rebuilds the mirror from the remote. Unpushed local edits are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, force)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation check")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, force bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.DB.Driver != "sqlite" {
		return fmt.Errorf("db reset only supports the sqlite driver; drop the %s database manually", cfg.DB.Driver)
	}
	if !force {
		p, err := store.GetProject(gormDB, cfg.Project.Key)
		if err == nil {
			dirty, err := store.DirtyIssues(gormDB, p.ID)
			if err == nil && len(dirty) > 0 {
				return fmt.Errorf("%d unpushed local edits would be lost; push first or pass --force", len(dirty))
			}
		}
	}
	if err := os.Remove(cfg.DB.Path); err != nil {
		return fmt.Errorf("remove %s: %w", cfg.DB.Path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", cfg.DB.Path)
	return nil
}
