package config

import (
	"sync"
	"time"
)

// StoragePolicy holds the bounded resource policies of the lifecycle engine.
type StoragePolicy struct {
	MaxVersions         int           `json:"max_versions"`          // surviving versions per file
	RecycleRetention    time.Duration `json:"recycle_retention"`     // how long a recycled item survives
	DefaultQuotaBytes   int64         `json:"default_quota_bytes"`   // ceiling for owners without an explicit quota
	NameResolveAttempts int           `json:"name_resolve_attempts"` // "name (n)" suffixes tried before giving up
	PresignTTL          time.Duration `json:"presign_ttl"`
	VerifyUploads       bool          `json:"verify_uploads"` // stat the blob before confirming an upload
	SweepBatchSize      int           `json:"sweep_batch_size"`
	SweepDeleteRate     float64       `json:"sweep_delete_rate"` // blob deletes per second during a sweep, <=0 means unlimited
	SweepDeleteBurst    int           `json:"sweep_delete_burst"`
	SweepLockTTL        time.Duration `json:"sweep_lock_ttl"`
}

var StoragePolicyInstance *StoragePolicy
var storagePolicyOnce sync.Once

// DefaultStoragePolicy returns the built-in policy values.
func DefaultStoragePolicy() StoragePolicy {
	return StoragePolicy{
		MaxVersions:         10,
		RecycleRetention:    30 * 24 * time.Hour,
		DefaultQuotaBytes:   10 * 1024 * 1024 * 1024, // 10GB
		NameResolveAttempts: 100,
		PresignTTL:          15 * time.Minute,
		VerifyUploads:       true,
		SweepBatchSize:      200,
		SweepDeleteRate:     20,
		SweepDeleteBurst:    10,
		SweepLockTTL:        10 * time.Minute,
	}
}

// InitStoragePolicy initializes the lifecycle policy from the environment.
func InitStoragePolicy() {
	storagePolicyOnce.Do(func() {
		def := DefaultStoragePolicy()
		StoragePolicyInstance = &StoragePolicy{
			MaxVersions:         getEnvInt("MAX_VERSIONS", def.MaxVersions),
			RecycleRetention:    getEnvDuration("RECYCLE_RETENTION", def.RecycleRetention),
			DefaultQuotaBytes:   getEnvInt64("DEFAULT_QUOTA_BYTES", def.DefaultQuotaBytes),
			NameResolveAttempts: getEnvInt("NAME_RESOLVE_ATTEMPTS", def.NameResolveAttempts),
			PresignTTL:          getEnvDuration("PRESIGN_TTL", def.PresignTTL),
			VerifyUploads:       getEnvBool("VERIFY_UPLOADS", def.VerifyUploads),
			SweepBatchSize:      getEnvInt("SWEEP_BATCH_SIZE", def.SweepBatchSize),
			SweepDeleteRate:     getEnvFloat("SWEEP_DELETE_RATE", def.SweepDeleteRate),
			SweepDeleteBurst:    getEnvInt("SWEEP_DELETE_BURST", def.SweepDeleteBurst),
			SweepLockTTL:        getEnvDuration("SWEEP_LOCK_TTL", def.SweepLockTTL),
		}
		if StoragePolicyInstance.MaxVersions <= 0 {
			StoragePolicyInstance.MaxVersions = def.MaxVersions
		}
		if StoragePolicyInstance.NameResolveAttempts <= 1 {
			StoragePolicyInstance.NameResolveAttempts = def.NameResolveAttempts
		}
	})
}

// Policy returns the active storage policy, falling back to defaults
// when InitStoragePolicy has not run.
func Policy() StoragePolicy {
	if StoragePolicyInstance == nil {
		return DefaultStoragePolicy()
	}
	return *StoragePolicyInstance
}
