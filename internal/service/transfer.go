package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"Go_PanStore/utils"
	"context"
	"fmt"
)

// IssueUploadURL reserves a fresh blob key and returns a presigned PUT URL for it.
// The expected size is checked against the quota early so that clients do not
// upload bytes that confirmation would reject anyway.
func IssueUploadURL(ctx context.Context, ownerID uint64, name string, size int64) (*dto.UploadTicket, error) {
	if _, err := validateName(name); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "size must not be negative, got %d", size)
	}
	if err := CheckQuota(ctx, ownerID, size); err != nil {
		return nil, err
	}
	store, err := blobStore()
	if err != nil {
		return nil, err
	}
	ttl := config.Policy().PresignTTL
	key := utils.NewBlobKey(ownerID)
	url, err := store.PresignedPutObject(ctx, bucketName(), key, ttl)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeBlobStoreUnavailable, "issue upload url failed")
	}
	return &dto.UploadTicket{
		BlobKey:   key,
		URL:       url,
		ExpiresAt: nowFunc().Add(ttl),
	}, nil
}

// IssueDownloadURL returns a presigned GET URL for the current bytes of a file.
func IssueDownloadURL(ctx context.Context, ownerID, fileID uint64) (*dto.DownloadTicket, error) {
	file, err := loadOwnedFile(ctx, ownerID, fileID)
	if err != nil {
		return nil, err
	}
	return presignDownload(ctx, file.BlobKey, file.Name, file.MediaType)
}

// IssueVersionDownloadURL returns a presigned GET URL for one historical version.
func IssueVersionDownloadURL(ctx context.Context, ownerID, fileID, versionID uint64) (*dto.DownloadTicket, error) {
	if _, err := loadOwnedFile(ctx, ownerID, fileID); err != nil {
		return nil, err
	}
	var version model.VersionRecord
	if err := repo.Db.WithContext(ctx).
		Where("id = ? AND file_id = ?", versionID, fileID).
		First(&version).Error; err != nil {
		return nil, notFound(err, "version %d of file %d not found", versionID, fileID)
	}
	return presignDownload(ctx, version.BlobKey, version.Name, version.MediaType)
}

func presignDownload(ctx context.Context, key, name, mediaType string) (*dto.DownloadTicket, error) {
	store, err := blobStore()
	if err != nil {
		return nil, err
	}
	contentType := mediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	safeName := utils.SanitizeHeaderFilename(name)
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", safeName)
	ttl := config.Policy().PresignTTL
	url, err := store.PresignedGetObjectWithResponse(ctx, bucketName(), key, ttl, map[string]string{
		"response-content-type":        contentType,
		"response-content-disposition": disposition,
	})
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeBlobStoreUnavailable, "issue download url failed")
	}
	return &dto.DownloadTicket{
		URL:       url,
		Name:      name,
		ExpiresAt: nowFunc().Add(ttl),
	}, nil
}
