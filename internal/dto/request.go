package dto

type FileListRequest struct {
	ParentID *uint64 `json:"parent_id"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

type FileSearchRequest struct {
	Query    string  `json:"query"`
	ParentID *uint64 `json:"parent_id"` // nil searches every folder
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// SweepRequest asks the worker to run a recycle-bin maintenance job.
type SweepRequest struct {
	Kind    string `json:"kind"`               // "expired" | "empty_bin"
	OwnerID uint64 `json:"owner_id,omitempty"` // required for empty_bin
}

const (
	SweepKindExpired  = "expired"
	SweepKindEmptyBin = "empty_bin"
)
