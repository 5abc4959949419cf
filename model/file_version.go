package model

import "time"

type VersionRecord struct {
	ID uint64 `gorm:"primaryKey" json:"id"`

	FileID uint64      `gorm:"column:file_id;not null;uniqueIndex:uk_file_version,priority:1" json:"file_id"`
	File   *FileRecord `gorm:"foreignKey:FileID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	Version int `gorm:"column:version;not null;uniqueIndex:uk_file_version,priority:2" json:"version"`

	BlobKey   string `gorm:"column:blob_key;size:512;not null" json:"blob_key"`
	Name      string `gorm:"column:name;size:255;not null" json:"name"`
	Size      int64  `gorm:"column:size;not null" json:"size"`
	MediaType string `gorm:"column:media_type;size:255;not null;default:''" json:"media_type"`

	UploaderID uint64    `gorm:"column:uploader_id;not null" json:"uploader_id"`
	UploadedAt time.Time `gorm:"column:uploaded_at;not null;index" json:"uploaded_at"`
}

// TableName returns the database table name.
func (VersionRecord) TableName() string {
	return "file_version"
}
