package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/repo"
	"Go_PanStore/internal/storage"
	"Go_PanStore/model"
	"Go_PanStore/utils"
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateOptions tunes upload confirmation.
type CreateOptions struct {
	// KeepBoth stores a same-name upload as a separate file under a resolved
	// "name (n)" instead of adding a version to the existing file.
	KeepBoth bool
}

// verifyUpload checks that the client really placed the blob before it is recorded.
func verifyUpload(ctx context.Context, blobKey string, size int64) error {
	if !config.Policy().VerifyUploads {
		return nil
	}
	store, err := blobStore()
	if err != nil {
		return err
	}
	info, err := store.StatObject(ctx, bucketName(), blobKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return apperr.Newf(apperr.CodeNotFound, "uploaded blob %s not found", blobKey)
		}
		return apperr.Wrap(err, apperr.CodeBlobStoreUnavailable, "stat uploaded blob failed")
	}
	if info.Size != size {
		return apperr.Newf(apperr.CodeInvalidArgument,
			"uploaded blob %s is %d bytes, confirmation says %d", blobKey, info.Size, size)
	}
	return nil
}

// findActiveFile returns the active file with exactly this name in the folder, locked.
func findActiveFile(tx *gorm.DB, ownerID uint64, folderID *uint64, name string) (*model.FileRecord, error) {
	var candidates []model.FileRecord
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND is_deleted = ? AND name = ?", ownerID, false, name)
	if err := scopeFolder(query, "parent_id", folderID).Find(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].Name == name {
			return &candidates[i], nil
		}
	}
	return nil, nil
}

// CreateFile confirms an upload whose blob is already in the store.
// A same-folder same-name upload becomes a new version of the existing file
// unless opts.KeepBoth asks for a separate file.
func CreateFile(
	ctx context.Context,
	ownerID uint64,
	folderID *uint64,
	blobKey string,
	name string,
	size int64,
	mediaType string,
	opts ...CreateOptions,
) (*model.FileRecord, error) {
	var opt CreateOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if blobKey == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "blob key is required")
	}
	if size < 0 {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "size must not be negative, got %d", size)
	}
	folderID = normalizeFolder(folderID)
	if err := verifyUpload(ctx, blobKey, size); err != nil {
		return nil, err
	}

	var file *model.FileRecord
	var out *versionOutcome
	created := false
	err = withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		if err := activeFolder(tx, ownerID, folderID); err != nil {
			return err
		}
		in := versionInput{
			BlobKey:    blobKey,
			Name:       name,
			Size:       size,
			MediaType:  mediaType,
			UploaderID: ownerID,
		}
		if !opt.KeepBoth {
			existing, err := findActiveFile(tx, ownerID, folderID, name)
			if err != nil {
				return err
			}
			if existing != nil {
				file = existing
				out, err = newVersionTx(tx, quota, file, in)
				return err
			}
		}

		finalName, err := resolveName(tx, ownerID, folderID, name)
		if err != nil {
			return err
		}
		if err := checkQuota(tx, quota, size); err != nil {
			return err
		}
		now := nowFunc()
		file = &model.FileRecord{
			UserID:         ownerID,
			ParentID:       folderID,
			Name:           finalName,
			BlobKey:        blobKey,
			Size:           size,
			MediaType:      mediaType,
			CurrentVersion: 1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		first := &model.VersionRecord{
			FileID:     file.ID,
			Version:    1,
			BlobKey:    blobKey,
			Name:       finalName,
			Size:       size,
			MediaType:  mediaType,
			UploaderID: ownerID,
			UploadedAt: now,
		}
		if err := tx.Create(first).Error; err != nil {
			return err
		}
		out = &versionOutcome{Version: first}
		created = true
		return adjustUsage(tx, quota, size)
	})
	if err != nil {
		return nil, err
	}

	if created {
		metrics.Get().FilesCreated.Inc()
	}
	afterVersionCommit(ctx, file, out)
	return file, nil
}

// recycleFileTx moves a locked active file to the recycle bin and credits its bytes back.
func recycleFileTx(tx *gorm.DB, quota *model.UserQuota, file *model.FileRecord, deletedBy uint64, originalPath string, now time.Time) (*model.RecycleEntry, error) {
	res := tx.Model(&model.FileRecord{}).
		Where("id = ? AND is_deleted = ?", file.ID, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Newf(apperr.CodeNotFound, "file %d not found", file.ID)
	}
	fileID := file.ID
	entry := &model.RecycleEntry{
		UserID:       file.UserID,
		FileID:       &fileID,
		ItemType:     model.RecycleItemFile,
		Name:         file.Name,
		Size:         file.Size,
		OriginalPath: originalPath,
		DeletedBy:    deletedBy,
		DeletedAt:    now,
		ExpiresAt:    now.Add(config.Policy().RecycleRetention),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	if err := adjustUsage(tx, quota, -file.Size); err != nil {
		return nil, err
	}
	file.IsDeleted = true
	file.DeletedAt = &now
	return entry, nil
}

// Delete moves an active file to the recycle bin.
func Delete(ctx context.Context, fileID, ownerID uint64) (*model.RecycleEntry, error) {
	if _, err := loadOwnedFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	var entry *model.RecycleEntry
	err := withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		file, err := lockFile(tx, ownerID, fileID)
		if err != nil {
			return err
		}
		dir, err := folderPath(tx, file.ParentID)
		if err != nil {
			return err
		}
		entry, err = recycleFileTx(tx, quota, file, ownerID, joinPath(dir, file.Name), nowFunc())
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.Get().ItemsRecycled.WithLabelValues(model.RecycleItemFile).Inc()
	invalidateFileListCache(ctx, ownerID)
	return entry, nil
}

// RestoreVersion makes a historical version current again by copying its blob
// to a fresh key and appending it as a new version.
func RestoreVersion(ctx context.Context, fileID, versionID, ownerID uint64) (*model.VersionRecord, error) {
	if _, err := loadOwnedFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	var source model.VersionRecord
	if err := repo.Db.WithContext(ctx).
		Where("id = ? AND file_id = ?", versionID, fileID).
		First(&source).Error; err != nil {
		return nil, notFound(err, "version %d of file %d not found", versionID, fileID)
	}

	store, err := blobStore()
	if err != nil {
		return nil, err
	}
	newKey := utils.NewBlobKey(ownerID)
	if err := store.CopyObject(ctx,
		storage.CopyDest{Bucket: bucketName(), Object: newKey},
		storage.CopySource{Bucket: bucketName(), Object: source.BlobKey},
	); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeBlobStoreUnavailable, "copy of the version blob failed, nothing was restored")
	}

	var file *model.FileRecord
	var out *versionOutcome
	err = withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		var err error
		if file, err = lockFile(tx, ownerID, fileID); err != nil {
			return err
		}
		out, err = newVersionTx(tx, quota, file, versionInput{
			BlobKey:    newKey,
			Name:       source.Name,
			Size:       source.Size,
			MediaType:  source.MediaType,
			UploaderID: ownerID,
		})
		return err
	})
	if err != nil {
		if rmErr := store.RemoveObject(context.WithoutCancel(ctx), bucketName(), newKey); rmErr != nil {
			blobDeleteFailed(ctx, ownerID, fileID, newKey, "restore_rollback", rmErr)
		}
		return nil, err
	}
	log.Info().
		Uint64("owner_id", ownerID).
		Uint64("file_id", fileID).
		Int("from_version", source.Version).
		Int("new_version", out.Version.Version).
		Msg("version restored")
	afterVersionCommit(ctx, file, out)
	return out.Version, nil
}
