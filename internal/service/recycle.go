package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sweepLockKey = "lock:recycle:sweep"

const (
	purgeReasonManual  = "manual"
	purgeReasonEmpty   = "empty_bin"
	purgeReasonExpired = "expired"
)

// ListRecycleItems lists an owner's recycle bin, most recently deleted first.
func ListRecycleItems(ctx context.Context, ownerID uint64) ([]model.RecycleEntry, error) {
	var entries []model.RecycleEntry
	err := repo.Db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("deleted_at DESC, id DESC").
		Find(&entries).Error
	return entries, err
}

// loadOwnedEntry loads a recycle entry and checks it belongs to ownerID.
func loadOwnedEntry(ctx context.Context, entryID, ownerID uint64) (*model.RecycleEntry, error) {
	var entry model.RecycleEntry
	if err := repo.Db.WithContext(ctx).Where("id = ?", entryID).First(&entry).Error; err != nil {
		return nil, notFound(err, "recycle entry %d not found", entryID)
	}
	if entry.UserID != ownerID {
		return nil, apperr.Newf(apperr.CodeForbidden, "recycle entry %d belongs to another owner", entryID)
	}
	return &entry, nil
}

func lockEntry(tx *gorm.DB, entryID uint64) (*model.RecycleEntry, error) {
	var entry model.RecycleEntry
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", entryID).
		First(&entry).Error; err != nil {
		return nil, notFound(err, "recycle entry %d not found", entryID)
	}
	return &entry, nil
}

// restoreParent returns the folder an item goes back to: its original folder
// when that is still active, the root otherwise.
func restoreParent(tx *gorm.DB, ownerID uint64, parentID *uint64) (*uint64, error) {
	ok, err := folderActive(tx, ownerID, parentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return parentID, nil
}

// RestoreItem brings a recycled file or folder back to Active.
// A file re-adds its bytes, so the restore must fit in the quota. If the name has
// been taken meanwhile the item comes back as "name (n)".
func RestoreItem(ctx context.Context, entryID, ownerID uint64) error {
	entry, err := loadOwnedEntry(ctx, entryID, ownerID)
	if err != nil {
		return err
	}
	err = withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		locked, err := lockEntry(tx, entryID)
		if err != nil {
			return err
		}
		entry = locked
		switch entry.ItemType {
		case model.RecycleItemFile:
			return restoreFileTx(tx, quota, entry)
		case model.RecycleItemFolder:
			return restoreFolderTx(tx, entry)
		default:
			return apperr.Newf(apperr.CodeInternal, "recycle entry %d has unknown type %q", entry.ID, entry.ItemType)
		}
	})
	if err != nil {
		return err
	}
	metrics.Get().ItemsRestored.WithLabelValues(entry.ItemType).Inc()
	invalidateFileListCache(ctx, ownerID)
	return nil
}

func restoreFileTx(tx *gorm.DB, quota *model.UserQuota, entry *model.RecycleEntry) error {
	if entry.FileID == nil {
		return apperr.Newf(apperr.CodeNotFound, "recycle entry %d has no file", entry.ID)
	}
	var file model.FileRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", *entry.FileID, entry.UserID, true).
		First(&file).Error; err != nil {
		return notFound(err, "recycled file %d not found", *entry.FileID)
	}
	parentID, err := restoreParent(tx, entry.UserID, file.ParentID)
	if err != nil {
		return err
	}
	name, err := resolveName(tx, entry.UserID, parentID, file.Name)
	if err != nil {
		return err
	}
	if err := checkQuota(tx, quota, file.Size); err != nil {
		return err
	}
	if err := tx.Model(&model.FileRecord{}).
		Where("id = ?", file.ID).
		Updates(map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"parent_id":  parentID,
			"name":       name,
		}).Error; err != nil {
		return err
	}
	if err := adjustUsage(tx, quota, file.Size); err != nil {
		return err
	}
	return tx.Delete(&model.RecycleEntry{}, entry.ID).Error
}

func restoreFolderTx(tx *gorm.DB, entry *model.RecycleEntry) error {
	if entry.FolderID == nil {
		return apperr.Newf(apperr.CodeNotFound, "recycle entry %d has no folder", entry.ID)
	}
	var folder model.FolderRecord
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ? AND is_deleted = ?", *entry.FolderID, entry.UserID, true).
		First(&folder).Error; err != nil {
		return notFound(err, "recycled folder %d not found", *entry.FolderID)
	}
	parentID, err := restoreParent(tx, entry.UserID, folder.ParentID)
	if err != nil {
		return err
	}
	name, err := resolveName(tx, entry.UserID, parentID, folder.Name)
	if err != nil {
		return err
	}
	if err := tx.Model(&model.FolderRecord{}).
		Where("id = ?", folder.ID).
		Updates(map[string]interface{}{
			"is_deleted": false,
			"deleted_at": nil,
			"parent_id":  parentID,
			"name":       name,
		}).Error; err != nil {
		return err
	}
	return tx.Delete(&model.RecycleEntry{}, entry.ID).Error
}

// purgeEntryTx erases the metadata behind a recycle entry and returns the blob
// keys that lost their last reference. Versions go before the file.
func purgeEntryTx(tx *gorm.DB, entry *model.RecycleEntry) ([]string, error) {
	var keys []string
	switch {
	case entry.ItemType == model.RecycleItemFile && entry.FileID != nil:
		var file model.FileRecord
		err := tx.Where("id = ?", *entry.FileID).First(&file).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// already gone, only the entry is left
		case err != nil:
			return nil, err
		case !file.IsDeleted:
			log.Warn().Uint64("entry_id", entry.ID).Uint64("file_id", file.ID).Msg("recycle entry points at an active file, dropping entry only")
		default:
			var versionKeys []string
			if err := tx.Model(&model.VersionRecord{}).Where("file_id = ?", file.ID).Pluck("blob_key", &versionKeys).Error; err != nil {
				return nil, err
			}
			keys = append(append(keys, file.BlobKey), versionKeys...)
			if err := tx.Where("file_id = ?", file.ID).Delete(&model.VersionRecord{}).Error; err != nil {
				return nil, err
			}
			if err := tx.Delete(&model.FileRecord{}, file.ID).Error; err != nil {
				return nil, err
			}
		}
	case entry.ItemType == model.RecycleItemFolder && entry.FolderID != nil:
		if err := tx.Where("id = ? AND is_deleted = ?", *entry.FolderID, true).Delete(&model.FolderRecord{}).Error; err != nil {
			return nil, err
		}
	}
	if err := tx.Delete(&model.RecycleEntry{}, entry.ID).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// purgeEntry permanently erases one entry: metadata in one transaction, then a single
// delete attempt per blob. It returns the number of blobs left orphaned.
func purgeEntry(ctx context.Context, entryID, ownerID uint64, limiter *rate.Limiter, reason string) (int, error) {
	var entry *model.RecycleEntry
	var keys []string
	err := withOwnerLock(ctx, ownerID, func(tx *gorm.DB, _ *model.UserQuota) error {
		var err error
		if entry, err = lockEntry(tx, entryID); err != nil {
			return err
		}
		keys, err = purgeEntryTx(tx, entry)
		return err
	})
	if err != nil {
		return 0, err
	}
	var fileID uint64
	if entry.FileID != nil {
		fileID = *entry.FileID
	}
	failures := releaseBlobs(ctx, limiter, ownerID, fileID, keys, "purge")
	metrics.Get().ItemsPurged.WithLabelValues(entry.ItemType, reason).Inc()
	return failures, nil
}

// DeleteItemPermanently purges one recycle entry of the owner.
func DeleteItemPermanently(ctx context.Context, entryID, ownerID uint64) error {
	if _, err := loadOwnedEntry(ctx, entryID, ownerID); err != nil {
		return err
	}
	_, err := purgeEntry(ctx, entryID, ownerID, nil, purgeReasonManual)
	return err
}

// EmptyRecycleBin purges every recycle entry of the owner and returns how many were purged.
// It keeps going past individual failures and reports them joined.
func EmptyRecycleBin(ctx context.Context, ownerID uint64) (int, error) {
	entries, err := ListRecycleItems(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	purged := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := purgeEntry(ctx, entry.ID, ownerID, nil, purgeReasonEmpty); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

func newSweepLimiter(policy config.StoragePolicy) *rate.Limiter {
	burst := policy.SweepDeleteBurst
	if burst <= 0 {
		burst = 1
	}
	if policy.SweepDeleteRate <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Limit(policy.SweepDeleteRate), burst)
}

// CleanupExpiredItems purges every recycle entry whose retention has run out.
// It is meant to be called periodically by an external scheduler. When Redis is
// configured only one instance sweeps at a time; the others return Skipped.
func CleanupExpiredItems(ctx context.Context) (*dto.SweepResult, error) {
	policy := config.Policy()
	result := &dto.SweepResult{}

	if repo.Redis != nil {
		lock := repo.NewRedisLock(repo.Redis, sweepLockKey, policy.SweepLockTTL)
		if err := lock.Lock(ctx); err != nil {
			if errors.Is(err, repo.ErrLockBusy) {
				log.Info().Msg("expiry sweep already running elsewhere, skipping")
				result.Skipped = true
				return result, nil
			}
			return nil, err
		}
		defer func() {
			if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("release sweep lock failed")
			}
		}()
	}

	batchSize := policy.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 200
	}
	limiter := newSweepLimiter(policy)
	now := nowFunc()
	var lastID uint64

	for {
		var batch []model.RecycleEntry
		if err := repo.Db.WithContext(ctx).
			Where("expires_at <= ? AND id > ?", now, lastID).
			Order("id ASC").
			Limit(batchSize).
			Find(&batch).Error; err != nil {
			return result, err
		}
		for _, entry := range batch {
			lastID = entry.ID
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Scanned++
			failures, err := purgeEntry(ctx, entry.ID, entry.UserID, limiter, purgeReasonExpired)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					continue
				}
				result.Failed++
				log.Error().Err(err).Uint64("entry_id", entry.ID).Uint64("owner_id", entry.UserID).Msg("purge expired entry failed")
				continue
			}
			result.Purged++
			result.BlobFailures += failures
		}
		if len(batch) < batchSize {
			break
		}
	}

	metrics.Get().LastSweepPurged.Set(float64(result.Purged))
	log.Info().
		Int("scanned", result.Scanned).
		Int("purged", result.Purged).
		Int("failed", result.Failed).
		Int("blob_failures", result.BlobFailures).
		Msg("expiry sweep finished")
	return result, nil
}
