package service

const (
	defaultPageSize = 20
	maxPageSize     = 200

	// newest first, id breaks ties between records created in the same instant
	orderNewestFirst  = "created_at DESC, id DESC"
	orderVersionsDesc = "version DESC"
)

// normalizePage clamps paging input and returns the row offset.
func normalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}
