package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/metrics"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ensureQuota creates the owner's quota row with the default ceiling if missing.
func ensureQuota(tx *gorm.DB, ownerID uint64) error {
	quota := model.UserQuota{
		UserID:     ownerID,
		TotalSpace: config.Policy().DefaultQuotaBytes,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&quota).Error
}

// lockOwner row-locks the owner's quota record for the rest of the transaction.
func lockOwner(tx *gorm.DB, ownerID uint64) (*model.UserQuota, error) {
	if err := ensureQuota(tx, ownerID); err != nil {
		return nil, err
	}
	var quota model.UserQuota
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", ownerID).
		First(&quota).Error; err != nil {
		return nil, err
	}
	return &quota, nil
}

// usedBytes is the authoritative usage: the sum of the owner's non-deleted file sizes.
func usedBytes(tx *gorm.DB, ownerID uint64) (int64, error) {
	var used int64
	err := tx.Model(&model.FileRecord{}).
		Select("COALESCE(SUM(size), 0)").
		Where("user_id = ? AND is_deleted = ?", ownerID, false).
		Scan(&used).Error
	return used, err
}

// checkQuota rejects incoming bytes that would push the owner past the ceiling.
// A drifted counter is re-synced from the authoritative sum on the way.
func checkQuota(tx *gorm.DB, quota *model.UserQuota, incoming int64) error {
	used, err := usedBytes(tx, quota.UserID)
	if err != nil {
		return err
	}
	if used != quota.UseSpace {
		log.Warn().
			Uint64("owner_id", quota.UserID).
			Int64("counter", quota.UseSpace).
			Int64("actual", used).
			Msg("usage counter drifted, resyncing")
		if err := tx.Model(&model.UserQuota{}).
			Where("user_id = ?", quota.UserID).
			Update("use_space", used).Error; err != nil {
			return err
		}
		quota.UseSpace = used
	}
	if incoming <= 0 {
		return nil
	}
	if used+incoming > quota.TotalSpace {
		metrics.Get().QuotaRejections.Inc()
		return apperr.Newf(apperr.CodeQuotaExceeded,
			"quota exceeded: %d used + %d incoming > %d ceiling", used, incoming, quota.TotalSpace)
	}
	return nil
}

// adjustUsage moves the usage counter by delta, never below zero.
func adjustUsage(tx *gorm.DB, quota *model.UserQuota, delta int64) error {
	if delta == 0 {
		return nil
	}
	if err := tx.Model(&model.UserQuota{}).
		Where("user_id = ?", quota.UserID).
		Update("use_space", gorm.Expr("CASE WHEN use_space + ? < 0 THEN 0 ELSE use_space + ? END", delta, delta)).
		Error; err != nil {
		return err
	}
	quota.UseSpace += delta
	if quota.UseSpace < 0 {
		quota.UseSpace = 0
	}
	return nil
}

// CheckQuota reports whether the owner can take incomingBytes more.
func CheckQuota(ctx context.Context, ownerID uint64, incomingBytes int64) error {
	return withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		return checkQuota(tx, quota, incomingBytes)
	})
}

// AdjustUsage moves the owner's usage counter by deltaBytes, flooring at zero.
func AdjustUsage(ctx context.Context, ownerID uint64, deltaBytes int64) error {
	return withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		return adjustUsage(tx, quota, deltaBytes)
	})
}

// GetQuota returns ceiling and authoritative usage of an owner.
func GetQuota(ctx context.Context, ownerID uint64) (*dto.QuotaInfo, error) {
	db := repo.Db.WithContext(ctx)
	if err := ensureQuota(db, ownerID); err != nil {
		return nil, err
	}
	var quota model.UserQuota
	if err := db.Where("user_id = ?", ownerID).First(&quota).Error; err != nil {
		return nil, err
	}
	used, err := usedBytes(db, ownerID)
	if err != nil {
		return nil, err
	}
	info := &dto.QuotaInfo{
		OwnerID: ownerID,
		Total:   quota.TotalSpace,
		Used:    used,
	}
	if available := quota.TotalSpace - used; available > 0 {
		info.Available = available
	}
	if quota.TotalSpace > 0 {
		info.UsagePercent = float64(used) / float64(quota.TotalSpace) * 100
	}
	return info, nil
}

// SetQuotaCeiling changes an owner's ceiling. Lowering it below current usage is
// allowed; later uploads are rejected until usage drops.
func SetQuotaCeiling(ctx context.Context, ownerID uint64, ceilingBytes int64) error {
	if ceilingBytes < 0 {
		return apperr.Newf(apperr.CodeInvalidArgument, "ceiling must not be negative, got %d", ceilingBytes)
	}
	return withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		return tx.Model(&model.UserQuota{}).
			Where("user_id = ?", ownerID).
			Update("total_space", ceilingBytes).Error
	})
}

// ReconcileUsage overwrites the usage counter with the authoritative sum.
func ReconcileUsage(ctx context.Context, ownerID uint64) (int64, error) {
	var used int64
	err := withOwnerLock(ctx, ownerID, func(tx *gorm.DB, quota *model.UserQuota) error {
		var err error
		used, err = usedBytes(tx, ownerID)
		if err != nil {
			return err
		}
		return tx.Model(&model.UserQuota{}).
			Where("user_id = ?", ownerID).
			Update("use_space", used).Error
	})
	return used, err
}

// ReconcileAllUsage reconciles every owner that has a quota row or a file.
func ReconcileAllUsage(ctx context.Context) (int, error) {
	var quotaOwners, fileOwners []uint64
	db := repo.Db.WithContext(ctx)
	if err := db.Model(&model.UserQuota{}).Pluck("user_id", &quotaOwners).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&model.FileRecord{}).Distinct().Pluck("user_id", &fileOwners).Error; err != nil {
		return 0, err
	}
	seen := make(map[uint64]bool, len(quotaOwners)+len(fileOwners))
	count := 0
	for _, ownerID := range append(quotaOwners, fileOwners...) {
		if seen[ownerID] {
			continue
		}
		seen[ownerID] = true
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if _, err := ReconcileUsage(ctx, ownerID); err != nil {
			return count, fmt.Errorf("reconcile owner %d: %w", ownerID, err)
		}
		count++
	}
	return count, nil
}
