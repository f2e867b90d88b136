package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
)

// FindIssue looks up an issue by project and remote key.
func FindIssue(db *gorm.DB, projectID uint, remoteKey string) (*models.Issue, error) {
	var iss models.Issue
	if err := db.Where("project_id = ? AND remote_key = ?", projectID, remoteKey).First(&iss).Error; err != nil {
		return nil, fmt.Errorf("store: find issue %s: %w", remoteKey, err)
	}
	return &iss, nil
}

// issueColumns projects the flattened columns every write path shares,
// including the kind-specific scalars that live on the issue row itself.
func issueColumns(f *mapper.Fields) map[string]any {
	cols := map[string]any{
		"summary":       f.Summary,
		"description":   f.Description,
		"assignee":      f.Assignee,
		"priority":      f.Priority,
		"status":        f.Status,
		"labels":        strings.Join(f.Labels, ","),
		"components":    strings.Join(f.Components, ","),
		"fix_versions":  strings.Join(f.Versions, ","),
		"time_estimate": f.TimeEstimate,
		"environment":   f.Environment,
		"parent_key":    f.ParentKey,
	}
	switch f.Kind {
	case mapper.KindRequirement:
		cols["epic_name"] = f.Requirement.EpicName
	case mapper.KindTestCase:
		cols["preconditions"] = f.TestCase.Preconditions
	}
	return cols
}

// CreateLocalIssue records an issue authored locally. It starts dirty and
// without a remote key; the next push creates it remotely and adopts the
// key the remote assigns.
func CreateLocalIssue(db *gorm.DB, projectID uint, kind mapper.Kind, folderID *string, f *mapper.Fields) (*models.Issue, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.Summary) == "" {
		return nil, fmt.Errorf("store: issue summary required")
	}
	iss := models.Issue{
		ProjectID:    projectID,
		Kind:         string(kind),
		FolderID:     folderID,
		Summary:      f.Summary,
		Description:  f.Description,
		Assignee:     f.Assignee,
		Priority:     f.Priority,
		Status:       f.Status,
		Labels:       strings.Join(f.Labels, ","),
		Components:   strings.Join(f.Components, ","),
		FixVersions:  strings.Join(f.Versions, ","),
		TimeEstimate: f.TimeEstimate,
		Environment:  f.Environment,
		ParentKey:    f.ParentKey,
		LocalOnly:    true,
		Dirty:        true,
	}
	switch kind {
	case mapper.KindRequirement:
		iss.EpicName = f.Requirement.EpicName
	case mapper.KindTestCase:
		iss.Preconditions = f.TestCase.Preconditions
	}
	if err := db.Create(&iss).Error; err != nil {
		return nil, fmt.Errorf("store: create local issue %q: %w", f.Summary, err)
	}
	return &iss, nil
}

// UpdateIssueFields applies a local edit and marks the issue dirty. The
// dirty flag only ever rises here; it falls when a push or an explicit
// remote apply confirms the remote saw the state.
func UpdateIssueFields(db *gorm.DB, issueID uint, f *mapper.Fields) error {
	if err := f.Validate(); err != nil {
		return err
	}
	cols := issueColumns(f)
	cols["dirty"] = true
	res := db.Model(&models.Issue{}).Where("id = ?", issueID).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("store: update issue %d: %w", issueID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: update issue %d: %w", issueID, gorm.ErrRecordNotFound)
	}
	return nil
}

// ApplyRemoteFields overwrites an issue with remote-observed state: header
// columns, remote timestamps and the content fingerprint land together, the
// dirty flag clears, and a tombstoned issue seen again comes back alive.
func ApplyRemoteFields(db *gorm.DB, issueID uint, f *mapper.Fields, fingerprint string, now time.Time) error {
	if err := f.Validate(); err != nil {
		return err
	}
	cols := issueColumns(f)
	cols["remote_created"] = f.Created
	cols["remote_updated"] = f.Updated
	cols["fingerprint"] = fingerprint
	cols["dirty"] = false
	cols["deleted"] = false
	cols["local_only"] = false
	cols["last_sync_at"] = now
	res := db.Model(&models.Issue{}).Where("id = ?", issueID).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("store: apply remote state to issue %d: %w", issueID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: apply remote state to issue %d: %w", issueID, gorm.ErrRecordNotFound)
	}
	return nil
}

// AdoptRemoteKey binds a local-only issue to the identity the remote
// assigned at creation. The issue stays clean afterwards.
func AdoptRemoteKey(db *gorm.DB, issueID uint, remoteKey string, remoteID int64, now time.Time) error {
	updates := map[string]any{
		"remote_key":   remoteKey,
		"local_only":   false,
		"dirty":        false,
		"last_sync_at": now,
	}
	if remoteID != 0 {
		updates["remote_id"] = remoteID
	}
	res := db.Model(&models.Issue{}).Where("id = ?", issueID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("store: adopt remote key %s for issue %d: %w", remoteKey, issueID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: adopt remote key for issue %d: %w", issueID, gorm.ErrRecordNotFound)
	}
	return nil
}

// MarkClean clears the dirty flag after a successful push.
func MarkClean(db *gorm.DB, issueID uint, now time.Time) error {
	if err := db.Model(&models.Issue{}).Where("id = ?", issueID).
		Updates(map[string]any{"dirty": false, "last_sync_at": now}).Error; err != nil {
		return fmt.Errorf("store: mark issue %d clean: %w", issueID, err)
	}
	return nil
}

// SoftDeleteIssue tombstones an issue locally. The row and its children
// survive for history; listings exclude it.
func SoftDeleteIssue(db *gorm.DB, issueID uint) error {
	res := db.Model(&models.Issue{}).Where("id = ?", issueID).Update("deleted", true)
	if res.Error != nil {
		return fmt.Errorf("store: delete issue %d: %w", issueID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("store: delete issue %d: %w", issueID, gorm.ErrRecordNotFound)
	}
	return nil
}

// TombstoneIssuesNotIn marks every live remote-bound issue of the kind whose
// remote key is absent from keep as deleted. Local-only issues are left
// alone, they were never on the remote. Dirty issues tombstone like any
// other row unless spareDirty: pull is last-writer-wins on existence as
// much as on fields.
func TombstoneIssuesNotIn(db *gorm.DB, projectID uint, kind mapper.Kind, keep []string, spareDirty bool) (int64, error) {
	q := db.Model(&models.Issue{}).
		Where("project_id = ? AND kind = ? AND deleted = ? AND local_only = ?",
			projectID, string(kind), false, false).
		Where("remote_key IS NOT NULL")
	if spareDirty {
		q = q.Where("dirty = ?", false)
	}
	if len(keep) > 0 {
		q = q.Where("remote_key NOT IN ?", keep)
	}
	res := q.Update("deleted", true)
	if res.Error != nil {
		return 0, fmt.Errorf("store: tombstone %s issues: %w", kind, res.Error)
	}
	return res.RowsAffected, nil
}

// DirtyIssues lists the issues awaiting a push, local-only creations first
// so parents exist before links reference them.
func DirtyIssues(db *gorm.DB, projectID uint) ([]models.Issue, error) {
	var out []models.Issue
	if err := db.Where("project_id = ? AND dirty = ? AND deleted = ?", projectID, true, false).
		Order("local_only DESC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list dirty issues: %w", err)
	}
	return out, nil
}

// IssuesByKind lists live issues of one kind, folder-grouped.
func IssuesByKind(db *gorm.DB, projectID uint, kind mapper.Kind) ([]models.Issue, error) {
	var out []models.Issue
	if err := db.Where("project_id = ? AND kind = ? AND deleted = ?", projectID, string(kind), false).
		Order("folder_id ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: list %s issues: %w", kind, err)
	}
	return out, nil
}

// CountIssues tallies live, deleted and dirty rows per kind for status
// reporting.
type IssueCounts struct {
	Kind    string `json:"kind"`
	Live    int64  `json:"live"`
	Deleted int64  `json:"deleted"`
	Dirty   int64  `json:"dirty"`
}

func CountIssues(db *gorm.DB, projectID uint) ([]IssueCounts, error) {
	var out []IssueCounts
	for _, kind := range mapper.Kinds {
		c := IssueCounts{Kind: string(kind)}
		base := db.Model(&models.Issue{}).Where("project_id = ? AND kind = ?", projectID, string(kind))
		if err := base.Session(&gorm.Session{}).Where("deleted = ?", false).Count(&c.Live).Error; err != nil {
			return nil, fmt.Errorf("store: count %s issues: %w", kind, err)
		}
		if err := base.Session(&gorm.Session{}).Where("deleted = ?", true).Count(&c.Deleted).Error; err != nil {
			return nil, fmt.Errorf("store: count %s issues: %w", kind, err)
		}
		if err := base.Session(&gorm.Session{}).Where("dirty = ? AND deleted = ?", true, false).Count(&c.Dirty).Error; err != nil {
			return nil, fmt.Errorf("store: count %s issues: %w", kind, err)
		}
		out = append(out, c)
	}
	return out, nil
}
