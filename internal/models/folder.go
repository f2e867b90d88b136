package models

// LocalFolderPrefix marks folder IDs generated locally rather than assigned
// by the remote tree.
const LocalFolderPrefix = "LOCAL-"

// Folder is a node in the kind-segregated hierarchical namespace. The ID is
// either the remote tree node id or a locally generated LOCAL-<KIND>-<hex>
// id. Kind is fixed at creation: remote trees are kind-segregated.
type Folder struct {
	ID        string  `gorm:"primaryKey;size:64"`
	ProjectID uint    `gorm:"index;not null"`
	ParentID  *string `gorm:"size:64;index"`
	Name      string  `gorm:"size:255;not null"`
	Kind      string  `gorm:"size:16;index"`
	SortOrder int     `gorm:"default:0"`
	Deleted   bool    `gorm:"default:false;index"`

	Parent   *Folder  `gorm:"foreignKey:ParentID"`
	Children []Folder `gorm:"foreignKey:ParentID"`
}

// LocalOnly reports whether the folder was created locally.
func (f *Folder) LocalOnly() bool {
	return len(f.ID) > len(LocalFolderPrefix) && f.ID[:len(LocalFolderPrefix)] == LocalFolderPrefix
}
