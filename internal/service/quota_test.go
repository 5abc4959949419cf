package service

import (
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadOverCeilingIsRejected(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	require.NoError(t, SetQuotaCeiling(ctx, 1, 1000))
	env.upload(t, 1, nil, "big.bin", 900)

	_, err := env.tryUpload(1, nil, "more.bin", 150)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "900 used + 150 incoming > 1000 ceiling")

	info, err := GetQuota(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(900), info.Used)
	assert.Equal(t, int64(100), info.Available)
	assert.InDelta(t, 90.0, info.UsagePercent, 0.001)
	assert.Equal(t, int64(900), counterOf(t, 1))

	var count int64
	require.NoError(t, repo.Db.Model(&model.FileRecord{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUploadExactlyToCeilingIsAccepted(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, SetQuotaCeiling(context.Background(), 1, 1000))
	env.upload(t, 1, nil, "a.bin", 900)
	env.upload(t, 1, nil, "b.bin", 100)
	requireUsageConsistent(t, 1)
}

func TestNewVersionOnlyChargesTheGrowth(t *testing.T) {
	env := setupTest(t)
	require.NoError(t, SetQuotaCeiling(context.Background(), 1, 1000))
	env.upload(t, 1, nil, "doc.pdf", 600)

	// 900 replaces 600 in place: 300 more bytes, under the ceiling
	file := env.upload(t, 1, nil, "doc.pdf", 900)
	assert.Equal(t, 2, file.CurrentVersion)
	assert.Equal(t, int64(900), counterOf(t, 1))

	_, err := env.tryUpload(1, nil, "doc.pdf", 1001)
	assert.ErrorIs(t, err, apperr.ErrQuotaExceeded)

	// shrinking always passes
	file = env.upload(t, 1, nil, "doc.pdf", 10)
	assert.Equal(t, 3, file.CurrentVersion)
	assert.Equal(t, int64(10), counterOf(t, 1))
	requireUsageConsistent(t, 1)
}

func TestAdjustUsageFloorsAtZero(t *testing.T) {
	setupTest(t)
	ctx := context.Background()
	require.NoError(t, AdjustUsage(ctx, 5, 40))
	require.NoError(t, AdjustUsage(ctx, 5, -100))
	assert.Equal(t, int64(0), counterOf(t, 5))
}

func TestCheckQuotaResyncsDriftedCounter(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.upload(t, 1, nil, "a.bin", 300)

	require.NoError(t, repo.Db.Model(&model.UserQuota{}).Where("user_id = ?", 1).Update("use_space", 12345).Error)
	require.NoError(t, CheckQuota(ctx, 1, 10))
	assert.Equal(t, int64(300), counterOf(t, 1))
}

func TestReconcileAllUsage(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.upload(t, 1, nil, "a.bin", 300)
	env.upload(t, 2, nil, "b.bin", 70)
	require.NoError(t, repo.Db.Model(&model.UserQuota{}).Where("1 = 1").Update("use_space", 0).Error)

	n, err := ReconcileAllUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(300), counterOf(t, 1))
	assert.Equal(t, int64(70), counterOf(t, 2))
}

func TestSetQuotaCeilingRejectsNegative(t *testing.T) {
	setupTest(t)
	err := SetQuotaCeiling(context.Background(), 1, -1)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestDefaultCeilingAppliesToNewOwners(t *testing.T) {
	setupTest(t)
	info, err := GetQuota(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, int64(10*1024*1024*1024), info.Total)
	assert.Equal(t, int64(0), info.Used)
}
