package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/quayside/rtmirror/internal/mapper"
	"github.com/quayside/rtmirror/internal/models"
)

// NewLocalFolderID mints an id for a folder that does not yet exist on the
// remote. The kind is embedded so the id remains readable in listings.
func NewLocalFolderID(kind mapper.Kind) string {
	buf := make([]byte, 6)
	rand.Read(buf)
	return models.LocalFolderPrefix + string(kind) + "-" + hex.EncodeToString(buf)
}

// UpsertFolder writes a remote-observed folder node. Identity is the remote
// node id; name, parent and sort order refresh on every pull, and a folder
// seen again after tombstoning comes back alive.
func UpsertFolder(db *gorm.DB, projectID uint, id, name string, kind mapper.Kind, parentID *string, sortOrder int) (*models.Folder, error) {
	var f models.Folder
	err := db.Where("id = ?", id).First(&f).Error
	if err == gorm.ErrRecordNotFound {
		f = models.Folder{
			ID:        id,
			ProjectID: projectID,
			ParentID:  parentID,
			Name:      name,
			Kind:      string(kind),
			SortOrder: sortOrder,
		}
		if err := db.Create(&f).Error; err != nil {
			return nil, fmt.Errorf("store: create folder %s: %w", id, err)
		}
		return &f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find folder %s: %w", id, err)
	}

	updates := map[string]any{
		"name":       name,
		"parent_id":  parentID,
		"sort_order": sortOrder,
		"deleted":    false,
	}
	if err := db.Model(&f).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("store: update folder %s: %w", id, err)
	}
	f.Name, f.ParentID, f.SortOrder, f.Deleted = name, parentID, sortOrder, false
	return &f, nil
}

// CreateLocalFolder makes a folder that exists only locally until the next
// push materializes it on the remote.
func CreateLocalFolder(db *gorm.DB, projectID uint, name string, kind mapper.Kind, parentID *string) (*models.Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("store: folder name required")
	}
	if parentID != nil {
		var parent models.Folder
		if err := db.Where("id = ? AND project_id = ?", *parentID, projectID).First(&parent).Error; err != nil {
			return nil, fmt.Errorf("store: parent folder %s: %w", *parentID, err)
		}
		if parent.Kind != string(kind) {
			return nil, fmt.Errorf("store: parent folder %s holds %s, not %s", *parentID, parent.Kind, kind)
		}
	}
	f := models.Folder{
		ID:        NewLocalFolderID(kind),
		ProjectID: projectID,
		ParentID:  parentID,
		Name:      name,
		Kind:      string(kind),
	}
	if err := db.Create(&f).Error; err != nil {
		return nil, fmt.Errorf("store: create local folder %q: %w", name, err)
	}
	return &f, nil
}

// FolderPath walks the parent chain and returns the slash-joined path from
// the kind root down to the folder.
func FolderPath(db *gorm.DB, id string) (string, error) {
	var parts []string
	cur := id
	for i := 0; cur != ""; i++ {
		if i > 100 {
			return "", fmt.Errorf("store: folder %s: parent chain too deep", id)
		}
		var f models.Folder
		if err := db.Where("id = ?", cur).First(&f).Error; err != nil {
			return "", fmt.Errorf("store: folder %s: %w", cur, err)
		}
		parts = append([]string{f.Name}, parts...)
		if f.ParentID == nil {
			break
		}
		cur = *f.ParentID
	}
	return strings.Join(parts, "/"), nil
}

// EnsureFolderPath walks a slash-separated path under the kind root,
// creating missing segments as local folders, and returns the leaf.
func EnsureFolderPath(db *gorm.DB, projectID uint, kind mapper.Kind, path string) (*models.Folder, error) {
	segments := strings.Split(path, "/")
	var parent *models.Folder
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		var parentID *string
		q := db.Where("project_id = ? AND kind = ? AND name = ? AND deleted = ?", projectID, string(kind), seg, false)
		if parent == nil {
			q = q.Where("parent_id IS NULL")
		} else {
			parentID = &parent.ID
			q = q.Where("parent_id = ?", parent.ID)
		}
		var f models.Folder
		err := q.First(&f).Error
		if err == gorm.ErrRecordNotFound {
			created, cerr := CreateLocalFolder(db, projectID, seg, kind, parentID)
			if cerr != nil {
				return nil, cerr
			}
			parent = created
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: resolve path segment %q: %w", seg, err)
		}
		parent = &f
	}
	if parent == nil {
		return nil, fmt.Errorf("store: empty folder path")
	}
	return parent, nil
}

// MoveFolder reparents a folder. The new parent must hold the same kind, and
// the move must not create a cycle.
func MoveFolder(db *gorm.DB, id string, newParentID *string) error {
	var f models.Folder
	if err := db.Where("id = ?", id).First(&f).Error; err != nil {
		return fmt.Errorf("store: folder %s: %w", id, err)
	}
	if newParentID != nil {
		var parent models.Folder
		if err := db.Where("id = ?", *newParentID).First(&parent).Error; err != nil {
			return fmt.Errorf("store: parent folder %s: %w", *newParentID, err)
		}
		if parent.Kind != f.Kind {
			return fmt.Errorf("store: cannot move %s folder under %s folder", f.Kind, parent.Kind)
		}
		cur := parent
		for i := 0; ; i++ {
			if cur.ID == id {
				return fmt.Errorf("store: moving folder %s under %s would create a cycle", id, *newParentID)
			}
			if cur.ParentID == nil || i > 100 {
				break
			}
			if err := db.Where("id = ?", *cur.ParentID).First(&cur).Error; err != nil {
				return fmt.Errorf("store: folder %s: %w", *cur.ParentID, err)
			}
		}
	}
	if err := db.Model(&f).Update("parent_id", newParentID).Error; err != nil {
		return fmt.Errorf("store: move folder %s: %w", id, err)
	}
	return nil
}

// DeleteFolderIfEmpty tombstones a folder that has no live children and no
// live issues. Folders with content must be emptied first.
func DeleteFolderIfEmpty(db *gorm.DB, id string) error {
	var children int64
	if err := db.Model(&models.Folder{}).Where("parent_id = ? AND deleted = ?", id, false).Count(&children).Error; err != nil {
		return fmt.Errorf("store: count children of %s: %w", id, err)
	}
	if children > 0 {
		return fmt.Errorf("store: folder %s has %d subfolders", id, children)
	}
	var issues int64
	if err := db.Model(&models.Issue{}).Where("folder_id = ? AND deleted = ?", id, false).Count(&issues).Error; err != nil {
		return fmt.Errorf("store: count issues in %s: %w", id, err)
	}
	if issues > 0 {
		return fmt.Errorf("store: folder %s holds %d issues", id, issues)
	}
	if err := db.Model(&models.Folder{}).Where("id = ?", id).Update("deleted", true).Error; err != nil {
		return fmt.Errorf("store: delete folder %s: %w", id, err)
	}
	return nil
}

// TombstoneFoldersNotIn marks every live remote-origin folder of the kind
// that is absent from keep as deleted, and returns how many were flipped.
// Local-only folders are left alone: the remote has never seen them.
func TombstoneFoldersNotIn(db *gorm.DB, projectID uint, kind mapper.Kind, keep []string) (int64, error) {
	q := db.Model(&models.Folder{}).
		Where("project_id = ? AND kind = ? AND deleted = ?", projectID, string(kind), false).
		Where("id NOT LIKE ?", models.LocalFolderPrefix+"%")
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	res := q.Update("deleted", true)
	if res.Error != nil {
		return 0, fmt.Errorf("store: tombstone %s folders: %w", kind, res.Error)
	}
	return res.RowsAffected, nil
}
