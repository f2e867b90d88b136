package db

import (
	"fmt"

	"github.com/quayside/rtmirror/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Folder{},
		&models.Issue{},
		&models.TestStep{},
		&models.PlanEntry{},
		&models.Execution{},
		&models.ExecutionEntry{},
		&models.StepResult{},
		&models.Relation{},
		&models.SyncState{},
	}
}

// AutoMigrate creates or updates all mirror tables. Safe to call on every
// startup.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
