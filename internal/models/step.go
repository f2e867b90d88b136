package models

// TestStep is one ordered step of a test case. (IssueID, GroupNo, OrderNo)
// is unique; the surrogate ID is stable across replacements of the same
// slot so StepResult rows keep their reference when an unchanged step set
// is re-pulled.
type TestStep struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	IssueID  uint   `gorm:"not null;index;uniqueIndex:idx_steps_slot"`
	GroupNo  int    `gorm:"default:1;uniqueIndex:idx_steps_slot"`
	OrderNo  int    `gorm:"not null;uniqueIndex:idx_steps_slot"`
	Action   string `gorm:"type:text"`
	Input    string `gorm:"type:text"`
	Expected string `gorm:"type:text"`
}
