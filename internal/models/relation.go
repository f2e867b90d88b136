package models

import "time"

// Relation is a directional semantic link between two issues, replaced
// wholesale per source issue. RelType carries the remote link type name
// plus a direction suffix, e.g. "Relates (out)".
type Relation struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	SrcIssueID uint   `gorm:"not null;index;uniqueIndex:idx_relation"`
	DstIssueID uint   `gorm:"not null;index;uniqueIndex:idx_relation"`
	RelType    string `gorm:"size:64;not null;uniqueIndex:idx_relation"`
	CreatedAt  time.Time

	Dst *Issue `gorm:"foreignKey:DstIssueID"`
}
