package models

// Execution holds the run-level metadata owned by a test execution issue.
// One row per issue, created lazily.
type Execution struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	IssueID     uint   `gorm:"not null;uniqueIndex"`
	Environment string `gorm:"size:255"`
	StartDate   string `gorm:"size:40"`
	EndDate     string `gorm:"size:40"`
	Result      string `gorm:"size:64"`
	ExecutedBy  string `gorm:"size:128"`

	Entries []ExecutionEntry `gorm:"foreignKey:ExecutionID"`
}

// ExecutionEntry is one test case run inside an execution, replaced
// wholesale per execution.
type ExecutionEntry struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	ExecutionID uint   `gorm:"not null;index"`
	TestCaseID  uint   `gorm:"not null"`
	OrderNo     int    `gorm:"default:0"`
	Assignee    string `gorm:"size:128"`
	Result      string `gorm:"size:64"`
	ActualTime  int    `gorm:"default:0"`
	Environment string `gorm:"size:255"`
	Defects     string `gorm:"size:512"`
	RemoteKey   string `gorm:"size:64"`

	TestCase *Issue       `gorm:"foreignKey:TestCaseID"`
	Steps    []StepResult `gorm:"foreignKey:ExecutionEntryID"`
}

// StepResult records the outcome of a single test step within an execution
// entry. It references the step's stable surrogate ID rather than its
// (group, order) position, so reordering steps cannot silently misalign
// recorded history.
type StepResult struct {
	ID               uint   `gorm:"primaryKey;autoIncrement"`
	ExecutionEntryID uint   `gorm:"not null;index"`
	StepID           uint   `gorm:"not null"`
	Status           string `gorm:"size:32"`
	ActualResult     string `gorm:"type:text"`
	Evidence         string `gorm:"type:text"`

	Step *TestStep `gorm:"foreignKey:StepID"`
}
