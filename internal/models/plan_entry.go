package models

// PlanEntry links a test case into a test plan with an explicit order.
// Entries are replaced wholesale per plan; a test case appears at most once.
type PlanEntry struct {
	ID         uint `gorm:"primaryKey;autoIncrement"`
	PlanID     uint `gorm:"not null;index;uniqueIndex:idx_plan_case"`
	TestCaseID uint `gorm:"not null;uniqueIndex:idx_plan_case"`
	OrderNo    int  `gorm:"default:0"`

	TestCase *Issue `gorm:"foreignKey:TestCaseID"`
}
