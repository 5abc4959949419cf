package model

import "time"

const (
	RecycleItemFile   = "file"
	RecycleItemFolder = "folder"
)

type RecycleEntry struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	UserID uint64 `gorm:"column:user_id;not null;index" json:"user_id"`

	// weak references: lookup only, never cascaded
	FileID   *uint64 `gorm:"column:file_id;index" json:"file_id,omitempty"`
	FolderID *uint64 `gorm:"column:folder_id;index" json:"folder_id,omitempty"`

	ItemType     string `gorm:"column:item_type;size:16;not null" json:"item_type"`
	Name         string `gorm:"column:name;size:255;not null" json:"name"`
	Size         int64  `gorm:"column:size;not null;default:0" json:"size"`
	OriginalPath string `gorm:"column:original_path;size:1024;not null;default:''" json:"original_path"`

	DeletedBy uint64    `gorm:"column:deleted_by;not null" json:"deleted_by"`
	DeletedAt time.Time `gorm:"column:deleted_at;not null" json:"deleted_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index" json:"expires_at"`
}

// TableName returns the database table name.
func (RecycleEntry) TableName() string {
	return "recycle_entry"
}
