package store

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Project{}, &models.Folder{}, &models.Issue{}, &models.TestStep{},
		&models.PlanEntry{}, &models.Execution{}, &models.ExecutionEntry{},
		&models.StepResult{}, &models.Relation{}, &models.SyncState{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testProject(t *testing.T, db *gorm.DB) *models.Project {
	t.Helper()
	p, err := EnsureProject(db, "PROJ", "Test Project", "https://jira.example.com", 41500)
	if err != nil {
		t.Fatalf("ensure project: %v", err)
	}
	return p
}

// seedIssue creates a clean remote-bound issue for tests that need one.
func seedIssue(t *testing.T, db *gorm.DB, projectID uint, kind mapper.Kind, remoteKey string) *models.Issue {
	t.Helper()
	iss := models.Issue{
		ProjectID: projectID,
		RemoteKey: &remoteKey,
		Kind:      string(kind),
		Summary:   "seed " + remoteKey,
	}
	if err := db.Create(&iss).Error; err != nil {
		t.Fatalf("seed issue %s: %v", remoteKey, err)
	}
	return &iss
}
