package service

import (
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"Go_PanStore/utils"
	"context"
	"strings"
)

// cacheParentID normalizes parent ID for cache keys.
func cacheParentID(parentID *uint64) uint64 {
	if parentID == nil {
		return 0
	}
	return *parentID
}

// ListByOwner lists the active files of a folder (nil = root), newest first.
func ListByOwner(ctx context.Context, ownerID uint64, folderID *uint64, page, pageSize int) ([]model.FileRecord, int64, error) {
	folderID = normalizeFolder(folderID)
	page, pageSize, offset := normalizePage(page, pageSize)

	if cached, ok := utils.GetUserFileListFromCache(ctx, ownerID, cacheParentID(folderID), page, pageSize); ok {
		return cached.Files, cached.Total, nil
	}

	var files []model.FileRecord
	var total int64
	query := repo.Db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("user_id = ? AND is_deleted = ?", ownerID, false)
	query = scopeFolder(query, "parent_id", folderID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order(orderNewestFirst).Offset(offset).Limit(pageSize).Find(&files).Error; err != nil {
		return nil, 0, err
	}

	_ = utils.SetUserFileListToCache(ctx, ownerID, cacheParentID(folderID), page, pageSize, &utils.FileListCache{
		Files: files,
		Total: total,
	})
	return files, total, nil
}

// Search finds active files whose name or media type contains query, ignoring case.
// A nil folder searches every folder of the owner.
func Search(ctx context.Context, ownerID uint64, query string, folderID *uint64, page, pageSize int) ([]model.FileRecord, int64, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, 0, apperr.New(apperr.CodeInvalidArgument, "search query must not be empty")
	}
	_, pageSize, offset := normalizePage(page, pageSize)
	pattern := "%" + escapeLike(needle) + "%"

	var files []model.FileRecord
	var total int64
	q := repo.Db.WithContext(ctx).Model(&model.FileRecord{}).
		Where("user_id = ? AND is_deleted = ?", ownerID, false).
		Where("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(media_type) LIKE ? ESCAPE '!')", pattern, pattern)
	if folderID := normalizeFolder(folderID); folderID != nil {
		q = q.Where("parent_id = ?", *folderID)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order(orderNewestFirst).Offset(offset).Limit(pageSize).Find(&files).Error; err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

// GetVersions returns the surviving versions of a file, newest first.
func GetVersions(ctx context.Context, fileID uint64) ([]model.VersionRecord, error) {
	db := repo.Db.WithContext(ctx)
	var count int64
	if err := db.Model(&model.FileRecord{}).Where("id = ?", fileID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperr.Newf(apperr.CodeNotFound, "file %d not found", fileID)
	}
	var versions []model.VersionRecord
	err := db.Where("file_id = ?", fileID).Order(orderVersionsDesc).Find(&versions).Error
	return versions, err
}
