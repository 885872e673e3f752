package cacheadvance

import (
	"errors"
	"fmt"
)

// Error classification (spec §7).
//
// Callers MUST classify errors using errors.Is (or, for IncompatibleHeader,
// errors.As). [ErrFileCorrupted] and an [IncompatibleHeaderError] are both
// rebuild-class: the file should be deleted and reopened fresh.
var (
	// ErrMessageLargerThanCacheCapacity means a message could not fit even in
	// an empty cache. This is a caller bug or misconfiguration, not a
	// transient condition.
	ErrMessageLargerThanCacheCapacity = errors.New("cacheadvance: message larger than cache capacity")

	// ErrMessageLargerThanRemainingCacheSize means a strict-mode cache is
	// full but the message would otherwise fit in an empty one.
	ErrMessageLargerThanRemainingCacheSize = errors.New("cacheadvance: message larger than remaining cache size")

	// ErrFileNotWritable means the on-disk configured MaximumBytes or mode do
	// not match the caller's configuration.
	ErrFileNotWritable = errors.New("cacheadvance: file not writable with the given configuration")

	// ErrFileCorrupted means the on-disk framing or header is internally
	// inconsistent. The caller should delete the file and start over;
	// recovery is not attempted at this layer.
	ErrFileCorrupted = errors.New("cacheadvance: file corrupted")

	// ErrCacheClosed is returned by any operation on an engine whose
	// underlying file has already been closed.
	ErrCacheClosed = errors.New("cacheadvance: cache is closed")

	// ErrReadOnly is returned by Append on a [CacheAdvance] opened via
	// [OpenReadOnly].
	ErrReadOnly = errors.New("cacheadvance: cache is read-only")
)

// IncompatibleHeaderError means the on-disk format version is not one this
// engine understands. PersistedVersion is the version byte actually found on
// disk.
type IncompatibleHeaderError struct {
	PersistedVersion uint8
}

func (e *IncompatibleHeaderError) Error() string {
	return fmt.Sprintf("cacheadvance: incompatible header: persisted version %d", e.PersistedVersion)
}

// Is allows errors.Is(err, ErrIncompatibleHeader) to match any
// *IncompatibleHeaderError regardless of its PersistedVersion.
func (e *IncompatibleHeaderError) Is(target error) bool {
	return target == ErrIncompatibleHeader
}

// ErrIncompatibleHeader is a version-agnostic sentinel usable with errors.Is
// to detect any [IncompatibleHeaderError]; use errors.As to recover the
// persisted version.
var ErrIncompatibleHeader = errors.New("cacheadvance: incompatible header")
