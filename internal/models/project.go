// Package models defines the GORM models for the RTMirror local mirror.
package models

// Project is the root scope of a mirror. RemoteID is 0 for a local-only
// project that has never been bound to the remote service.
type Project struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Key      string `gorm:"size:64;uniqueIndex;not null"`
	RemoteID int64
	Name     string `gorm:"size:255"`
	BaseURL  string `gorm:"size:255"`

	SyncState *SyncState `gorm:"foreignKey:ProjectID"`
	Folders   []Folder   `gorm:"foreignKey:ProjectID"`
	Issues    []Issue    `gorm:"foreignKey:ProjectID"`
}

// LocalOnly reports whether the project has no remote identity.
func (p *Project) LocalOnly() bool {
	return p.RemoteID == 0
}
