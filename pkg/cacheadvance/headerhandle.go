package cacheadvance

import (
	"fmt"
	"io"

	"github.com/calvinalkan/cacheadvance/pkg/fs"
)

// headerHandle owns the header's file handle: it reads/writes whole headers
// or individual fields, and validates persisted static metadata against the
// caller's expectations (spec §4.4).
type headerHandle struct {
	file fs.File

	// Configuration the caller expects. synchronize validates these against
	// whatever is persisted.
	maximumBytes          uint64
	overwritesOldMessages bool

	// Dynamic offsets, mirrored in memory and on disk. Both start at H for a
	// freshly initialized (or not-yet-synchronized) cache.
	offsetOfOldest uint64
	endOfNewest    uint64
}

func newHeaderHandle(file fs.File, maximumBytes uint64, overwritesOldMessages bool) *headerHandle {
	return &headerHandle{
		file:                  file,
		maximumBytes:          maximumBytes,
		overwritesOldMessages: overwritesOldMessages,
		offsetOfOldest:        HeaderSize,
		endOfNewest:           HeaderSize,
	}
}

// synchronize loads header state from disk, initializing a fresh header if
// the file is empty.
//
// Possible errors: [ErrFileCorrupted], [*IncompatibleHeaderError],
// [ErrFileNotWritable], or an I/O error from the underlying file.
func (h *headerHandle) synchronize() error {
	_, err := h.file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}

	buf := make([]byte, HeaderSize)

	n, err := io.ReadFull(h.file, buf)
	if err != nil && !isEOF(err) {
		return fmt.Errorf("read header: %w", err)
	}

	if n == 0 {
		return h.writeFreshHeader()
	}

	if n < HeaderSize {
		return fmt.Errorf("header is %d bytes, want %d: %w", n, HeaderSize, ErrFileCorrupted)
	}

	persisted := decodeHeader(buf)

	if persisted.Version != formatVersion {
		return &IncompatibleHeaderError{PersistedVersion: persisted.Version}
	}

	if persisted.MaximumBytes != h.maximumBytes || persisted.OverwritesOldMessages != h.overwritesOldMessages {
		return fmt.Errorf(
			"persisted maximum_bytes=%d overwrites_old_messages=%v, configured maximum_bytes=%d overwrites_old_messages=%v: %w",
			persisted.MaximumBytes, persisted.OverwritesOldMessages, h.maximumBytes, h.overwritesOldMessages, ErrFileNotWritable,
		)
	}

	h.offsetOfOldest = persisted.OffsetOfOldestMessage
	h.endOfNewest = persisted.OffsetAtEndOfNewestMessage

	return nil
}

// writeFreshHeader writes a brand-new header reflecting the handle's
// configuration to an empty file.
func (h *headerHandle) writeFreshHeader() error {
	header := newHeader(h.maximumBytes, h.overwritesOldMessages)

	_, err := h.file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}

	_, err = h.file.Write(encodeHeader(header))
	if err != nil {
		return fmt.Errorf("write fresh header: %w", err)
	}

	h.offsetOfOldest = header.OffsetOfOldestMessage
	h.endOfNewest = header.OffsetAtEndOfNewestMessage

	return nil
}

// updateOffsetOfOldest persists a new offsetOfOldest, in memory and on disk,
// by rewriting only its 8-byte field.
func (h *headerHandle) updateOffsetOfOldest(v uint64) error {
	if err := h.writeField(offOffsetOfOldestMessage, encodeUint64(v)); err != nil {
		return err
	}

	h.offsetOfOldest = v

	return nil
}

// updateEndOfNewest persists a new endOfNewest, in memory and on disk, by
// rewriting only its 8-byte field.
func (h *headerHandle) updateEndOfNewest(v uint64) error {
	if err := h.writeField(offOffsetAtEndOfNewestMessage, encodeUint64(v)); err != nil {
		return err
	}

	h.endOfNewest = v

	return nil
}

// writeField seeks to a fixed header offset and writes exactly len(data)
// bytes there, leaving the rest of the header untouched. This in-place
// update is what keeps the crash window narrow: a torn write can only ever
// corrupt the one field being rewritten, never the whole header.
func (h *headerHandle) writeField(offset int, data []byte) error {
	_, err := h.file.Seek(int64(offset), io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek to header field at offset %d: %w", offset, err)
	}

	_, err = h.file.Write(data)
	if err != nil {
		return fmt.Errorf("write header field at offset %d: %w", offset, err)
	}

	return nil
}

// canWriteToFile reports whether synchronize would succeed with matching
// version, capacity, and mode, without surfacing the category of corruption
// error — per spec §4.6.5, this is the non-throwing check backing
// [CacheAdvance.IsWritable].
//
// Unlike synchronize, this never mutates the file: an empty file is
// considered writable (synchronize would initialize it) without actually
// writing a header as a side effect of what is supposed to be a read-only
// query.
func (h *headerHandle) canWriteToFile() bool {
	_, err := h.file.Seek(0, io.SeekStart)
	if err != nil {
		return false
	}

	buf := make([]byte, HeaderSize)

	n, err := io.ReadFull(h.file, buf)
	if err != nil && !isEOF(err) {
		return false
	}

	if n == 0 {
		return true
	}

	if n < HeaderSize {
		return false
	}

	persisted := decodeHeader(buf)

	if persisted.Version != formatVersion {
		return false
	}

	return persisted.MaximumBytes == h.maximumBytes && persisted.OverwritesOldMessages == h.overwritesOldMessages
}
