package repositories

import (
	"errors"

	"gorm.io/gorm"
)

// ErrVersionConflict is returned by versioned updates when the stored row
// changed underneath the caller.
var ErrVersionConflict = errors.New("session version conflict")

// IsNotFoundError reports whether err is the underlying store's missing-row
// error, so services can map it to their own sentinels.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsVersionConflict reports whether err is a lost optimistic-concurrency race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
