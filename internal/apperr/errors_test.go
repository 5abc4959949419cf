package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Newf(CodeQuotaExceeded, "quota exceeded: %d used + %d incoming > %d ceiling", 900, 150, 1000)

	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "QUOTA_EXCEEDED: quota exceeded: 900 used + 150 incoming > 1000 ceiling", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("restore version: %w", Wrap(cause, CodeBlobStoreUnavailable, "copy blob failed"))

	assert.True(t, errors.Is(err, ErrBlobStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, CodeBlobStoreUnavailable, CodeOf(err))
}

func TestIsUserFacing(t *testing.T) {
	assert.True(t, IsUserFacing(New(CodeForbidden, "file belongs to another owner")))
	assert.False(t, IsUserFacing(New(CodeNameResolutionExhausted, "report.pdf")))
	assert.False(t, IsUserFacing(errors.New("boom")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}
