package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// versionInput is the snapshot a new version is created from.
type versionInput struct {
	BlobKey    string
	Name       string
	Size       int64
	MediaType  string
	UploaderID uint64
}

// versionOutcome carries what createVersionTx did, for work that must wait for commit.
type versionOutcome struct {
	Version     *model.VersionRecord
	EvictedKeys []string
}

// createVersionTx evicts the oldest versions until there is room, appends version
// CurrentVersion+1 and points the file's live fields at it. The file must be locked.
func createVersionTx(tx *gorm.DB, file *model.FileRecord, in versionInput) (*versionOutcome, error) {
	maxVersions := config.Policy().MaxVersions

	var versions []model.VersionRecord
	if err := tx.Where("file_id = ?", file.ID).
		Order("uploaded_at ASC, version ASC").
		Find(&versions).Error; err != nil {
		return nil, err
	}

	out := &versionOutcome{}
	for len(versions) >= maxVersions {
		oldest := versions[0]
		if err := tx.Delete(&model.VersionRecord{}, oldest.ID).Error; err != nil {
			return nil, err
		}
		out.EvictedKeys = append(out.EvictedKeys, oldest.BlobKey)
		versions = versions[1:]
	}

	name := in.Name
	if name != file.Name {
		resolved, err := resolveName(tx, file.UserID, file.ParentID, name)
		if err != nil {
			return nil, err
		}
		name = resolved
	}

	version := &model.VersionRecord{
		FileID:     file.ID,
		Version:    file.CurrentVersion + 1,
		BlobKey:    in.BlobKey,
		Name:       name,
		Size:       in.Size,
		MediaType:  in.MediaType,
		UploaderID: in.UploaderID,
		UploadedAt: nowFunc(),
	}
	if err := tx.Create(version).Error; err != nil {
		return nil, err
	}

	if err := tx.Model(&model.FileRecord{}).
		Where("id = ?", file.ID).
		Updates(map[string]interface{}{
			"name":            version.Name,
			"size":            version.Size,
			"blob_key":        version.BlobKey,
			"media_type":      version.MediaType,
			"current_version": version.Version,
			"updated_at":      version.UploadedAt,
		}).Error; err != nil {
		return nil, err
	}
	file.Name = version.Name
	file.Size = version.Size
	file.BlobKey = version.BlobKey
	file.MediaType = version.MediaType
	file.CurrentVersion = version.Version
	file.UpdatedAt = version.UploadedAt

	out.Version = version
	return out, nil
}

// newVersionTx checks quota for the size delta, creates the version and adjusts usage.
func newVersionTx(tx *gorm.DB, quota *model.UserQuota, file *model.FileRecord, in versionInput) (*versionOutcome, error) {
	delta := in.Size - file.Size
	if err := checkQuota(tx, quota, delta); err != nil {
		return nil, err
	}
	out, err := createVersionTx(tx, file, in)
	if err != nil {
		return nil, err
	}
	if err := adjustUsage(tx, quota, delta); err != nil {
		return nil, err
	}
	return out, nil
}

// afterVersionCommit runs the post-commit side effects of a version change.
func afterVersionCommit(ctx context.Context, file *model.FileRecord, out *versionOutcome) {
	m := metrics.Get()
	m.VersionsCreated.Inc()
	if len(out.EvictedKeys) > 0 {
		m.VersionsEvicted.Add(float64(len(out.EvictedKeys)))
		releaseBlobs(ctx, nil, file.UserID, file.ID, out.EvictedKeys, "eviction")
	}
	invalidateFileListCache(ctx, file.UserID)
}

// CreateVersion appends a version to an active file and makes it current.
func CreateVersion(
	ctx context.Context,
	fileID uint64,
	blobKey string,
	name string,
	size int64,
	mediaType string,
	uploaderID uint64,
) (*model.VersionRecord, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	if blobKey == "" || size < 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "blob key and a non-negative size are required")
	}

	var owner model.FileRecord
	if err := repo.Db.WithContext(ctx).Select("id", "user_id").Where("id = ?", fileID).First(&owner).Error; err != nil {
		return nil, notFound(err, "file %d not found", fileID)
	}

	var file *model.FileRecord
	var out *versionOutcome
	err = withOwnerLock(ctx, owner.UserID, func(tx *gorm.DB, quota *model.UserQuota) error {
		var err error
		if file, err = lockFile(tx, owner.UserID, fileID); err != nil {
			return err
		}
		out, err = newVersionTx(tx, quota, file, versionInput{
			BlobKey:    blobKey,
			Name:       name,
			Size:       size,
			MediaType:  mediaType,
			UploaderID: uploaderID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	afterVersionCommit(ctx, file, out)
	return out.Version, nil
}

// blobReferenced reports whether any file or surviving version still points at key.
func blobReferenced(ctx context.Context, key string) (bool, error) {
	db := repo.Db.WithContext(ctx)
	var count int64
	if err := db.Model(&model.FileRecord{}).Where("blob_key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := db.Model(&model.VersionRecord{}).Where("blob_key = ?", key).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// releaseBlobs deletes blobs whose metadata is already gone. One attempt per key:
// failures are logged, counted and reported as orphans, never retried.
// It returns the number of keys that could not be deleted.
func releaseBlobs(ctx context.Context, limiter *rate.Limiter, ownerID, fileID uint64, keys []string, stage string) int {
	failures := 0
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		referenced, err := blobReferenced(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("blob_key", key).Msg("blob reference check failed, keeping blob")
			continue
		}
		if referenced {
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				failures++
				blobDeleteFailed(ctx, ownerID, fileID, key, stage, err)
				continue
			}
		}
		store, err := blobStore()
		if err == nil {
			err = store.RemoveObject(ctx, bucketName(), key)
		}
		if err != nil {
			failures++
			blobDeleteFailed(ctx, ownerID, fileID, key, stage, err)
		}
	}
	return failures
}

func blobDeleteFailed(ctx context.Context, ownerID, fileID uint64, key, stage string, err error) {
	log.Warn().
		Err(err).
		Uint64("owner_id", ownerID).
		Uint64("file_id", fileID).
		Str("blob_key", key).
		Str("stage", stage).
		Msg("blob delete failed, object left orphaned")
	metrics.Get().BlobDeleteFailures.WithLabelValues(stage).Inc()
	ReportOrphan(ctx, mq.OrphanMessage{
		Bucket:     bucketName(),
		BlobKey:    key,
		OwnerID:    ownerID,
		FileID:     fileID,
		Stage:      stage,
		Error:      err.Error(),
		ReportedAt: nowFunc(),
	})
}
