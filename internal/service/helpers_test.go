package service

import (
	"Go_PanStore/config"
	"Go_PanStore/internal/mq"
	"Go_PanStore/internal/repo"
	"Go_PanStore/internal/storage"
	"Go_PanStore/model"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeStore is an in-memory storage.Store.
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]int64
	removed   []string
	copies    int
	failCopy  error
	failStat  error
	failRmKey map[string]error
	failRmAll error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:   map[string]int64{},
		failRmKey: map[string]error{},
	}
}

func (f *fakeStore) put(key string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = size
}

func (f *fakeStore) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeStore) wasRemoved(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.removed {
		if k == key {
			return true
		}
	}
	return false
}

func (f *fakeStore) PresignedPutObject(_ context.Context, bucket, object string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://blob.test/%s/%s?X-Amz-Signature=put", bucket, object), nil
}

func (f *fakeStore) PresignedGetObject(_ context.Context, bucket, object string, _ time.Duration) (string, error) {
	return fmt.Sprintf("https://blob.test/%s/%s?X-Amz-Signature=get", bucket, object), nil
}

func (f *fakeStore) PresignedGetObjectWithResponse(_ context.Context, bucket, object string, _ time.Duration, params map[string]string) (string, error) {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return fmt.Sprintf("https://blob.test/%s/%s?%s", bucket, object, values.Encode()), nil
}

func (f *fakeStore) CopyObject(_ context.Context, dest storage.CopyDest, src storage.CopySource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCopy != nil {
		return f.failCopy
	}
	size, ok := f.objects[src.Object]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrObjectNotFound, src.Object)
	}
	f.objects[dest.Object] = size
	f.copies++
	return nil
}

func (f *fakeStore) RemoveObject(_ context.Context, _ string, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRmAll != nil {
		return f.failRmAll
	}
	if err := f.failRmKey[object]; err != nil {
		return err
	}
	delete(f.objects, object)
	f.removed = append(f.removed, object)
	return nil
}

func (f *fakeStore) StatObject(_ context.Context, _ string, object string) (storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStat != nil {
		return storage.ObjectInfo{}, f.failStat
	}
	size, ok := f.objects[object]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, object)
	}
	return storage.ObjectInfo{ObjectName: object, Size: size, ETag: "etag-" + object}, nil
}

var errBlobDown = errors.New("blob store: connection refused")

// testClock advances one second on every read so that timestamps are strictly ordered.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store   *fakeStore
	clock   *testClock
	orphans []mq.OrphanMessage
	seq     int
}

// setupTest points the package globals at an in-memory database and a fake store.
func setupTest(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repo.AutoMigrateAll(db))

	env := &testEnv{
		store: newFakeStore(),
		clock: &testClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
	}

	savedDb, savedStore, savedNow, savedReport := repo.Db, storage.Default, nowFunc, ReportOrphan
	savedBucket, savedPolicy := config.AppConfig.BucketName, config.StoragePolicyInstance

	repo.Db = db
	storage.Default = env.store
	nowFunc = env.clock.Now
	ReportOrphan = func(_ context.Context, msg mq.OrphanMessage) {
		env.orphans = append(env.orphans, msg)
	}
	config.AppConfig.BucketName = "test-bucket"
	config.StoragePolicyInstance = nil

	t.Cleanup(func() {
		_ = sqlDB.Close()
		repo.Db, storage.Default, nowFunc, ReportOrphan = savedDb, savedStore, savedNow, savedReport
		config.AppConfig.BucketName, config.StoragePolicyInstance = savedBucket, savedPolicy
	})
	return env
}

// setPolicy overrides the storage policy for one test.
func setPolicy(t *testing.T, mutate func(p *config.StoragePolicy)) {
	t.Helper()
	p := config.DefaultStoragePolicy()
	mutate(&p)
	config.StoragePolicyInstance = &p
}

// upload places a blob and confirms it, like a client finishing a presigned PUT.
func (e *testEnv) upload(t *testing.T, owner uint64, folder *uint64, name string, size int64, opts ...CreateOptions) *model.FileRecord {
	t.Helper()
	file, err := e.tryUpload(owner, folder, name, size, opts...)
	require.NoError(t, err)
	return file
}

func (e *testEnv) tryUpload(owner uint64, folder *uint64, name string, size int64, opts ...CreateOptions) (*model.FileRecord, error) {
	e.seq++
	key := fmt.Sprintf("files/%d/blob-%d", owner, e.seq)
	e.store.put(key, size)
	return CreateFile(context.Background(), owner, folder, key, name, size, "application/pdf", opts...)
}

func ptr(id uint64) *uint64 {
	return &id
}

func loadFile(t *testing.T, id uint64) model.FileRecord {
	t.Helper()
	var file model.FileRecord
	require.NoError(t, repo.Db.Where("id = ?", id).First(&file).Error)
	return file
}

func fileExists(t *testing.T, id uint64) bool {
	t.Helper()
	var count int64
	require.NoError(t, repo.Db.Model(&model.FileRecord{}).Where("id = ?", id).Count(&count).Error)
	return count > 0
}

func versionsOf(t *testing.T, fileID uint64) []model.VersionRecord {
	t.Helper()
	var versions []model.VersionRecord
	require.NoError(t, repo.Db.Where("file_id = ?", fileID).Order("version ASC").Find(&versions).Error)
	return versions
}

func recycleEntries(t *testing.T, owner uint64) []model.RecycleEntry {
	t.Helper()
	entries, err := ListRecycleItems(context.Background(), owner)
	require.NoError(t, err)
	return entries
}

func counterOf(t *testing.T, owner uint64) int64 {
	t.Helper()
	var quota model.UserQuota
	require.NoError(t, repo.Db.Where("user_id = ?", owner).First(&quota).Error)
	return quota.UseSpace
}

// requireVersionInvariant checks the current version is the max surviving one and
// the version ceiling holds.
func requireVersionInvariant(t *testing.T, fileID uint64) {
	t.Helper()
	file := loadFile(t, fileID)
	versions := versionsOf(t, fileID)
	require.NotEmpty(t, versions)
	require.LessOrEqual(t, len(versions), config.Policy().MaxVersions)
	require.Equal(t, versions[len(versions)-1].Version, file.CurrentVersion)
}

// requireUsageConsistent checks the usage counter equals the sum of active sizes.
func requireUsageConsistent(t *testing.T, owner uint64) {
	t.Helper()
	used, err := usedBytes(repo.Db, owner)
	require.NoError(t, err)
	require.Equal(t, used, counterOf(t, owner))
}
