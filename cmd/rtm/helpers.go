package main

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/config"
	"github.com/quayside/rtmirror/internal/db"
	"github.com/quayside/rtmirror/internal/models"
	"github.com/quayside/rtmirror/internal/notify"
	"github.com/quayside/rtmirror/internal/rtm"
	"github.com/quayside/rtmirror/internal/store"
)

const defaultConfigPath = "rtmirror.yaml"

// connectFromConfig loads the config and opens the mirror database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// openProject connects and resolves the configured project row. Every
// command except `db init` expects the database to exist already.
func openProject(configPath string) (*config.Config, *gorm.DB, *models.Project, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	project, err := store.GetProject(gormDB, cfg.Project.Key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("project %s not initialized (run `rtm db init`): %w", cfg.Project.Key, err)
	}
	return cfg, gormDB, project, nil
}

// remoteFromConfig builds the remote client for the configured instance.
func remoteFromConfig(cfg *config.Config) *rtm.Client {
	return rtm.NewClient(rtm.Config{
		BaseURL:    cfg.Remote.BaseURL,
		Username:   cfg.Remote.Username,
		APIToken:   cfg.Remote.APIToken,
		ProjectKey: cfg.Project.Key,
		ProjectID:  cfg.Project.ID,
	}, nil)
}

// notifierFromConfig builds the Slack notifier; nil when not configured.
func notifierFromConfig(cfg *config.Config) (*notify.Notifier, error) {
	return notify.New(notify.Opts{
		Token:   cfg.Notify.SlackToken,
		Channel: cfg.Notify.SlackChannel,
	})
}
