package models

import "time"

// Issue is the central mirrored record. One physical shape carries all five
// kinds (requirement, test case, test plan, test execution, defect) so tree
// placement and relation handling stay uniform; kind-specific constraints
// live in the mapper's typed field variants.
type Issue struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"`
	ProjectID uint    `gorm:"index;not null;uniqueIndex:idx_issues_project_remote"`
	RemoteKey *string `gorm:"size:64;uniqueIndex:idx_issues_project_remote"`
	RemoteID  *int64
	Kind      string  `gorm:"size:16;index;not null"`
	FolderID  *string `gorm:"size:64;index"`

	Summary         string `gorm:"size:512"`
	Description     string `gorm:"type:text"`
	Status          string `gorm:"size:64"`
	Priority        string `gorm:"size:64"`
	Assignee        string `gorm:"size:128"`
	Reporter        string `gorm:"size:128"`
	Labels          string `gorm:"size:512"`
	Components      string `gorm:"size:512"`
	FixVersions     string `gorm:"size:512"`
	AffectsVersions string `gorm:"size:512"`
	SecurityLevel   string `gorm:"size:128"`
	Environment     string `gorm:"size:255"`
	DueDate         string `gorm:"size:32"`
	TimeEstimate    string `gorm:"size:32"`
	EpicName        string `gorm:"size:255"`
	Preconditions   string `gorm:"type:text"`
	ParentKey       string `gorm:"size:64"`

	// Remote-owned timestamps, mirrored verbatim and never pushed back.
	RemoteCreated string `gorm:"size:40"`
	RemoteUpdated string `gorm:"size:40"`

	// Fingerprint of the last pulled remote content, used to detect
	// remote-side changes without field-by-field comparison.
	Fingerprint string `gorm:"size:64"`

	Deleted    bool `gorm:"default:false;index"`
	LocalOnly  bool `gorm:"default:false"`
	Dirty      bool `gorm:"default:false;index"`
	LastSyncAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Folder      *Folder     `gorm:"foreignKey:FolderID"`
	Steps       []TestStep  `gorm:"foreignKey:IssueID"`
	PlanEntries []PlanEntry `gorm:"foreignKey:PlanID"`
	Relations   []Relation  `gorm:"foreignKey:SrcIssueID"`
	Execution   *Execution  `gorm:"foreignKey:IssueID"`
}

// RemoteBound reports whether the issue carries a remote identity and is
// therefore eligible for update-on-push.
func (i *Issue) RemoteBound() bool {
	return i.RemoteKey != nil && *i.RemoteKey != ""
}
