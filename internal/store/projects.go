// Package store holds the persistence operations over the mirrored schema.
// Functions take the *gorm.DB as their first argument; multi-row writes that
// must land together run inside a single transaction.
package store

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/models"
)

// EnsureProject upserts the project row for key and returns it. Name,
// remote id and base URL refresh on every call so config changes propagate.
func EnsureProject(db *gorm.DB, key, name, baseURL string, remoteID int64) (*models.Project, error) {
	var p models.Project
	err := db.Where("key = ?", key).First(&p).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		p = models.Project{Key: key, Name: name, BaseURL: baseURL, RemoteID: remoteID}
		if err := db.Create(&p).Error; err != nil {
			return nil, fmt.Errorf("store: create project %s: %w", key, err)
		}
		return &p, nil
	case err != nil:
		return nil, fmt.Errorf("store: find project %s: %w", key, err)
	}

	updates := map[string]any{}
	if name != "" && name != p.Name {
		updates["name"] = name
	}
	if baseURL != "" && baseURL != p.BaseURL {
		updates["base_url"] = baseURL
	}
	if remoteID != 0 && remoteID != p.RemoteID {
		updates["remote_id"] = remoteID
	}
	if len(updates) > 0 {
		if err := db.Model(&p).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("store: update project %s: %w", key, err)
		}
	}
	return &p, nil
}

// GetProject finds a project by key.
func GetProject(db *gorm.DB, key string) (*models.Project, error) {
	var p models.Project
	if err := db.Where("key = ?", key).First(&p).Error; err != nil {
		return nil, fmt.Errorf("store: find project %s: %w", key, err)
	}
	return &p, nil
}

// CheckpointKind selects which sync timestamp MarkSynced records.
type CheckpointKind string

const (
	CheckpointFull  CheckpointKind = "full"
	CheckpointTree  CheckpointKind = "tree"
	CheckpointIssue CheckpointKind = "issue"
)

// MarkSynced records a sync checkpoint for the project. A full checkpoint
// also advances the tree and issue timestamps, since a full pass covers both.
func MarkSynced(db *gorm.DB, projectID uint, kind CheckpointKind, at time.Time) error {
	var st models.SyncState
	err := db.Where("project_id = ?", projectID).First(&st).Error
	if err == gorm.ErrRecordNotFound {
		st = models.SyncState{ProjectID: projectID}
		if err := db.Create(&st).Error; err != nil {
			return fmt.Errorf("store: create sync state for project %d: %w", projectID, err)
		}
	} else if err != nil {
		return fmt.Errorf("store: find sync state for project %d: %w", projectID, err)
	}

	updates := map[string]any{}
	switch kind {
	case CheckpointFull:
		updates["last_full_sync_at"] = at
		updates["last_tree_sync_at"] = at
		updates["last_issue_sync_at"] = at
	case CheckpointTree:
		updates["last_tree_sync_at"] = at
	case CheckpointIssue:
		updates["last_issue_sync_at"] = at
	default:
		return fmt.Errorf("store: unknown checkpoint kind %q", kind)
	}
	if err := db.Model(&models.SyncState{}).Where("project_id = ?", projectID).Updates(updates).Error; err != nil {
		return fmt.Errorf("store: record %s checkpoint for project %d: %w", kind, projectID, err)
	}
	return nil
}

// GetSyncState returns the project's checkpoint row, or a zero row when the
// project has never synced.
func GetSyncState(db *gorm.DB, projectID uint) (*models.SyncState, error) {
	var st models.SyncState
	err := db.Where("project_id = ?", projectID).First(&st).Error
	if err == gorm.ErrRecordNotFound {
		return &models.SyncState{ProjectID: projectID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find sync state for project %d: %w", projectID, err)
	}
	return &st, nil
}
