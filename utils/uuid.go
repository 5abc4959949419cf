package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// NewBlobKey returns a fresh, globally unique object key for an owner.
func NewBlobKey(ownerID uint64) string {
	return fmt.Sprintf("files/%d/%s", ownerID, uuid.NewString())
}
