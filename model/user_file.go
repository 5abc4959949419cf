package model

import (
	"time"
)

type FileRecord struct {
	ID uint64 `gorm:"primaryKey" json:"id,omitempty"`

	UserID uint64 `gorm:"column:user_id;not null;index:idx_user_parent_name,priority:1" json:"user_id,omitempty"`

	ParentID *uint64 `gorm:"column:parent_id;index:idx_user_parent_name,priority:2" json:"parent_id,omitempty"`

	Name string `gorm:"column:name;size:255;not null;index:idx_user_parent_name,priority:3" json:"name,omitempty"`

	BlobKey   string `gorm:"column:blob_key;size:512;not null" json:"blob_key,omitempty"`
	Size      int64  `gorm:"column:size;not null;default:0" json:"size"`
	MediaType string `gorm:"column:media_type;size:255;not null;default:''" json:"media_type,omitempty"`

	CurrentVersion int `gorm:"column:current_version;not null;default:1" json:"current_version"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted,omitempty"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name.
func (FileRecord) TableName() string {
	return "user_file"
}

/*
ParentID 为 nil 表示根目录 所以使用指针
DeletedAt 不使用 gorm.DeletedAt: 软删除由 is_deleted 显式控制 回收站需要查询已删除记录
同名约束 (user_id, parent_id, name, 未删除) 不建唯一索引 已删除记录允许重名 由 owner 行锁保证
*/
