package model

import "time"

type UserQuota struct {
	ID uint64 `gorm:"primaryKey" json:"-"`

	UserID uint64 `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`

	TotalSpace int64 `gorm:"column:total_space;not null;default:0" json:"total_space"` // 容量上限
	UseSpace   int64 `gorm:"column:use_space;not null;default:0" json:"use_space"`     // 缓存值 以 user_file 求和为准

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (UserQuota) TableName() string {
	return "user_quota"
}
