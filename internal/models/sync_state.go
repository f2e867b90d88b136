package models

import "time"

// SyncState is the per-project checkpoint record. The three timestamps gate
// resume decisions: full tree pulls, structure-only pulls, and single-issue
// pulls each stamp their own slot.
type SyncState struct {
	ID              uint `gorm:"primaryKey;autoIncrement"`
	ProjectID       uint `gorm:"not null;uniqueIndex"`
	LastFullSyncAt  *time.Time
	LastTreeSyncAt  *time.Time
	LastIssueSyncAt *time.Time
}
