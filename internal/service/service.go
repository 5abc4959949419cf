package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/repo"
	"Go_PanStore/internal/storage"
	"Go_PanStore/model"
	"Go_PanStore/utils"
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// nowFunc is the engine clock. Tests move it forward to age recycle entries.
var nowFunc = func() time.Time {
	return time.Now().UTC()
}

// ReportOrphan receives blobs whose delete failed after their metadata was gone.
// Binaries point it at mq.ReportOrphan. The default drops the report.
var ReportOrphan = func(ctx context.Context, msg mq.OrphanMessage) {}

func bucketName() string {
	return config.AppConfig.BucketName
}

func blobStore() (storage.Store, error) {
	if storage.Default == nil {
		return nil, apperr.New(apperr.CodeBlobStoreUnavailable, "blob store not initialized")
	}
	return storage.Default, nil
}

// withOwnerLock runs fn in one transaction that holds the owner's quota row lock.
// Every check-then-mutate sequence for an owner goes through here, so concurrent
// calls of the same owner serialize and the ceiling cannot be overshot.
func withOwnerLock(ctx context.Context, ownerID uint64, fn func(tx *gorm.DB, quota *model.UserQuota) error) error {
	return repo.Db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quota, err := lockOwner(tx, ownerID)
		if err != nil {
			return err
		}
		return fn(tx, quota)
	})
}

// lockFile row-locks an active file of the owner.
func lockFile(tx *gorm.DB, ownerID, fileID uint64) (*model.FileRecord, error) {
	var file model.FileRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", fileID, ownerID, false).
		First(&file).Error
	if err != nil {
		return nil, notFound(err, "file %d not found", fileID)
	}
	return &file, nil
}

// loadOwnedFile loads a file for an ownership check outside any transaction.
// Recycled files are reported as not found.
func loadOwnedFile(ctx context.Context, ownerID, fileID uint64) (*model.FileRecord, error) {
	var file model.FileRecord
	if err := repo.Db.WithContext(ctx).Where("id = ?", fileID).First(&file).Error; err != nil {
		return nil, notFound(err, "file %d not found", fileID)
	}
	if file.UserID != ownerID {
		return nil, apperr.Newf(apperr.CodeForbidden, "file %d belongs to another owner", fileID)
	}
	if file.IsDeleted {
		return nil, apperr.Newf(apperr.CodeNotFound, "file %d not found", fileID)
	}
	return &file, nil
}

// activeFolder checks that folderID names an active folder of the owner.
// A nil folder is the root and always exists.
func activeFolder(tx *gorm.DB, ownerID uint64, folderID *uint64) error {
	if folderID == nil {
		return nil
	}
	var folder model.FolderRecord
	if err := tx.Where("id = ?", *folderID).First(&folder).Error; err != nil {
		return notFound(err, "folder %d not found", *folderID)
	}
	if folder.UserID != ownerID {
		return apperr.Newf(apperr.CodeForbidden, "folder %d belongs to another owner", *folderID)
	}
	if folder.IsDeleted {
		return apperr.Newf(apperr.CodeNotFound, "folder %d not found", *folderID)
	}
	return nil
}

// folderActive reports whether the folder still exists and is not recycled.
func folderActive(tx *gorm.DB, ownerID uint64, folderID *uint64) (bool, error) {
	err := activeFolder(tx, ownerID, folderID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrForbidden) {
		return false, nil
	}
	return false, err
}

// normalizeFolder maps the legacy 0 root id to nil.
func normalizeFolder(folderID *uint64) *uint64 {
	if folderID == nil || *folderID == 0 {
		return nil
	}
	id := *folderID
	return &id
}

func scopeFolder(query *gorm.DB, column string, folderID *uint64) *gorm.DB {
	if folderID == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *folderID)
}

// folderPath builds "/a/b" for a folder by walking up to the root.
func folderPath(tx *gorm.DB, folderID *uint64) (string, error) {
	var parts []string
	seen := map[uint64]bool{}
	current := folderID
	for current != nil {
		if seen[*current] {
			return "", apperr.Newf(apperr.CodeInternal, "folder cycle at %d", *current)
		}
		seen[*current] = true
		var folder model.FolderRecord
		if err := tx.Where("id = ?", *current).First(&folder).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return "", err
		}
		parts = append(parts, folder.Name)
		current = folder.ParentID
	}
	var b strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		b.WriteString("/")
		b.WriteString(parts[i])
	}
	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// notFound translates gorm.ErrRecordNotFound into a NotFound AppError.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Newf(apperr.CodeNotFound, format, args...)
	}
	return err
}

func validateName(name string) (string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return "", apperr.New(apperr.CodeInvalidArgument, "name must not be empty")
	}
	if strings.ContainsAny(clean, "/\\") {
		return "", apperr.Newf(apperr.CodeInvalidArgument, "name %q must not contain path separators", clean)
	}
	if len(clean) > 255 {
		return "", apperr.Newf(apperr.CodeInvalidArgument, "name is %d bytes, limit is 255", len(clean))
	}
	return clean, nil
}

func invalidateFileListCache(ctx context.Context, ownerID uint64) {
	_ = utils.InvalidateUserFileListCache(ctx, ownerID)
}
