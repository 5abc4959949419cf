package storage

import (
	"Go_PanStore/config"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// MinioStore implements Store with a MinIO client.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore builds a Store from a MinIO client.
func NewMinioStore(client *minio.Client) *MinioStore {
	return &MinioStore{client: client}
}

// PresignedPutObject returns a presigned URL the client uploads the blob to.
func (s *MinioStore) PresignedPutObject(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedPutObject(ctx, bucket, object, expiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PresignedGetObject returns a presigned URL for downloading an object.
func (s *MinioStore) PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, object, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PresignedGetObjectWithResponse returns a presigned URL with response headers.
func (s *MinioStore) PresignedGetObjectWithResponse(
	ctx context.Context,
	bucket,
	object string,
	expiry time.Duration,
	params map[string]string,
) (string, error) {
	values := url.Values{}
	for key, value := range params {
		if value == "" {
			continue
		}
		values.Set(key, value)
	}
	u, err := s.client.PresignedGetObject(ctx, bucket, object, expiry, values)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// CopyObject performs a server-side copy.
func (s *MinioStore) CopyObject(ctx context.Context, dest CopyDest, src CopySource) error {
	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: dest.Bucket, Object: dest.Object},
		minio.CopySrcOptions{Bucket: src.Bucket, Object: src.Object},
	)
	return translateError(err)
}

// RemoveObject deletes an object from MinIO. Removing a missing key is not an error.
func (s *MinioStore) RemoveObject(ctx context.Context, bucket, object string) error {
	return s.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{})
}

// StatObject returns size, modification time and etag of an object.
func (s *MinioStore) StatObject(ctx context.Context, bucket, object string) (ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, translateError(err)
	}
	return ObjectInfo{
		ObjectName:   object,
		Size:         stat.Size,
		LastModified: stat.LastModified,
		ETag:         stat.ETag,
	}, nil
}

// translateError maps missing-key responses to ErrObjectNotFound.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	}
	return err
}

// InitMinio initializes MinIO client and bucket.
func InitMinio() {
	client, err := minio.New(fmt.Sprintf("%s:%s", config.AppConfig.MinioHost, config.AppConfig.MinioPort), &minio.Options{
		Creds:  credentials.NewStaticV4(config.AppConfig.MinioUsername, config.AppConfig.MinioPassword, ""),
		Secure: config.AppConfig.MinioUseSSL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("minio client init failed")
	}
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, config.AppConfig.BucketName)
	if err != nil {
		log.Fatal().Err(err).Str("bucket", config.AppConfig.BucketName).Msg("check bucket failed")
	}
	if !exists { // 不需要人工去 minio 建立 bucket 直接后端进行操作
		if err := client.MakeBucket(ctx, config.AppConfig.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal().Err(err).Str("bucket", config.AppConfig.BucketName).Msg("create bucket failed")
		}
	}
	Default = NewMinioStore(client)
}
