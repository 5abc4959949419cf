package dto

import "time"

// QuotaInfo describes an owner's storage usage.
type QuotaInfo struct {
	OwnerID      uint64  `json:"owner_id"`
	Total        int64   `json:"total"`
	Used         int64   `json:"used"`
	Available    int64   `json:"available"`
	UsagePercent float64 `json:"usage_percent"`
}

// UploadTicket is a presigned upload target. The caller confirms the upload with BlobKey.
type UploadTicket struct {
	BlobKey   string    `json:"blob_key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DownloadTicket is a presigned download link.
type DownloadTicket struct {
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SweepResult summarizes one expiry sweep.
type SweepResult struct {
	Scanned      int  `json:"scanned"`
	Purged       int  `json:"purged"`
	Failed       int  `json:"failed"`
	BlobFailures int  `json:"blob_failures"`
	Skipped      bool `json:"skipped"` // another instance holds the sweep lock
}

// CascadeResult summarizes a folder cascade delete.
type CascadeResult struct {
	Files      int   `json:"files"`
	Folders    int   `json:"folders"`
	FreedBytes int64 `json:"freed_bytes"`
}
