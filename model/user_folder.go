package model

import "time"

type FolderRecord struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	UserID   uint64  `gorm:"column:user_id;not null;index:idx_folder_user_parent,priority:1" json:"user_id,omitempty"`
	ParentID *uint64 `gorm:"column:parent_id;index:idx_folder_user_parent,priority:2" json:"parent_id,omitempty"`

	Name string `gorm:"column:name;size:255;not null" json:"name,omitempty"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted,omitempty"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (FolderRecord) TableName() string {
	return "user_folder"
}
