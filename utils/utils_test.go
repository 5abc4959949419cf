package utils

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"Go_PanStore/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	data map[string]interface{}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	v, ok := m.data[key]
	if !ok {
		return errors.New("miss")
	}
	*(dest.(*FileListCache)) = *(v.(*FileListCache))
	return nil
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
		}
	}
	return nil
}

func TestNewBlobKeyUnique(t *testing.T) {
	a := NewBlobKey(7)
	b := NewBlobKey(7)
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "files/7/"))
}

func TestSanitizeHeaderFilename(t *testing.T) {
	assert.Equal(t, "download", SanitizeHeaderFilename("  "))
	assert.Equal(t, "ab.txt", SanitizeHeaderFilename("a\r\n\"b.txt"))
}

func TestBuildCacheKey(t *testing.T) {
	assert.Equal(t, "user:file:list:1:0:2:20", BuildCacheKey(CacheKeyUserFileList, 1, 0, 2, 20))
}

func TestFileListCacheRoundTripAndInvalidate(t *testing.T) {
	mem := &memoryCache{data: map[string]interface{}{}}
	SetCache(mem)
	defer SetCache(nil)

	ctx := context.Background()
	page := &FileListCache{Files: []model.FileRecord{{ID: 1, Name: "a.txt"}}, Total: 1}
	require.NoError(t, SetUserFileListToCache(ctx, 1, 0, 1, 20, page))
	require.NoError(t, SetUserFileListToCache(ctx, 2, 0, 1, 20, page))

	got, ok := GetUserFileListFromCache(ctx, 1, 0, 1, 20)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Total)

	require.NoError(t, InvalidateUserFileListCache(ctx, 1))
	_, ok = GetUserFileListFromCache(ctx, 1, 0, 1, 20)
	assert.False(t, ok)
	_, ok = GetUserFileListFromCache(ctx, 2, 0, 1, 20)
	assert.True(t, ok)
}

func TestCacheDisabledMisses(t *testing.T) {
	SetCache(nil)
	ctx := context.Background()
	assert.NoError(t, SetUserFileListToCache(ctx, 1, 0, 1, 20, &FileListCache{}))
	_, ok := GetUserFileListFromCache(ctx, 1, 0, 1, 20)
	assert.False(t, ok)
	assert.NoError(t, InvalidateUserFileListCache(ctx, 1))
}
