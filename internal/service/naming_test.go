package service

import (
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/repo"
	"Go_PanStore/model"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitName(t *testing.T) {
	cases := []struct {
		in, base, ext string
	}{
		{"report.pdf", "report", ".pdf"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"README", "README", ""},
		{".env", ".env", ""},
		{"trailing.", "trailing", "."},
	}
	for _, c := range cases {
		base, ext := splitName(c.in)
		assert.Equal(t, c.base, base, c.in)
		assert.Equal(t, c.ext, ext, c.in)
	}
	assert.Equal(t, "archive.tar (3).gz", numberedName("archive.tar.gz", 3))
}

func seedFile(t *testing.T, owner uint64, folder *uint64, name string, deleted bool) {
	t.Helper()
	require.NoError(t, repo.Db.Create(&model.FileRecord{
		UserID:         owner,
		ParentID:       folder,
		Name:           name,
		BlobKey:        "seed/" + name,
		CurrentVersion: 1,
		IsDeleted:      deleted,
	}).Error)
}

func TestResolveNameWithoutCollision(t *testing.T) {
	setupTest(t)
	name, err := ResolveName(context.Background(), 1, nil, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", name)
}

func TestResolveNameOneCollision(t *testing.T) {
	setupTest(t)
	seedFile(t, 1, nil, "report.pdf", false)
	name, err := ResolveName(context.Background(), 1, nil, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report (1).pdf", name)
}

func TestResolveNameIgnoresOtherScopes(t *testing.T) {
	setupTest(t)
	seedFile(t, 1, nil, "report.pdf", true)  // recycled
	seedFile(t, 2, nil, "report.pdf", false) // other owner
	seedFile(t, 1, ptr(7), "report.pdf", false)
	name, err := ResolveName(context.Background(), 1, nil, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", name)
}

func TestResolveNameCountsFolders(t *testing.T) {
	setupTest(t)
	require.NoError(t, repo.Db.Create(&model.FolderRecord{UserID: 1, Name: "photos"}).Error)
	name, err := ResolveName(context.Background(), 1, nil, "photos")
	require.NoError(t, err)
	assert.Equal(t, "photos (1)", name)
}

func TestResolveNameSkipsTakenSuffixes(t *testing.T) {
	setupTest(t)
	seedFile(t, 1, nil, "a.txt", false)
	seedFile(t, 1, nil, "a (1).txt", false)
	seedFile(t, 1, nil, "a (2).txt", false)
	name, err := ResolveName(context.Background(), 1, nil, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "a (3).txt", name)
}

func TestResolveNameExhausted(t *testing.T) {
	setupTest(t)
	seedFile(t, 1, nil, "name.txt", false)
	for n := 1; n <= 99; n++ {
		seedFile(t, 1, nil, fmt.Sprintf("name (%d).txt", n), false)
	}
	_, err := ResolveName(context.Background(), 1, nil, "name.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNameResolutionExhausted)
	assert.False(t, apperr.IsUserFacing(err))
}

func TestResolveNameTreatsWildcardsLiterally(t *testing.T) {
	setupTest(t)
	seedFile(t, 1, nil, "100%_done.txt", false)
	seedFile(t, 1, nil, "100xydone.txt", false)
	name, err := ResolveName(context.Background(), 1, nil, "100%_done.txt")
	require.NoError(t, err)
	assert.Equal(t, "100%_done (1).txt", name)

	name, err = ResolveName(context.Background(), 1, nil, "100%_other.txt")
	require.NoError(t, err)
	assert.Equal(t, "100%_other.txt", name)
}

func TestResolveNameRejectsBadInput(t *testing.T) {
	setupTest(t)
	_, err := ResolveName(context.Background(), 1, nil, "  ")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = ResolveName(context.Background(), 1, nil, "a/b")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
