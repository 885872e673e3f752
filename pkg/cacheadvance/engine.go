package cacheadvance

import (
	"fmt"
	"io"

	"github.com/calvinalkan/cacheadvance/pkg/fs"
)

// Encoder turns a value of type T into a non-empty byte sequence.
type Encoder[T any] interface {
	Encode(v T) ([]byte, error)
}

// Decoder turns a byte sequence produced by the configured [Encoder] back
// into a value of type T.
type Decoder[T any] interface {
	Decode(b []byte) (T, error)
}

// Options configures [Open].
type Options[T any] struct {
	// File is the already-open, already-existing cache file. It may be
	// zero-length (freshly created, not yet initialized).
	File fs.File

	// Path is recorded for [CacheAdvance.FileURL] only; cacheadvance itself
	// never opens or creates files.
	Path string

	// MaximumBytes is the total file capacity including the header. Must be
	// >= HeaderSize+5. Reopening a pre-existing file with a different value
	// is rejected with [ErrFileNotWritable].
	MaximumBytes uint64

	// OverwritesOldMessages selects circular mode (true, evict oldest to
	// make room) or strict mode (false, reject once full). Reopening a
	// pre-existing file with a different value is rejected with
	// [ErrFileNotWritable].
	OverwritesOldMessages bool

	// Encoder and Decoder are the pluggable message codec. Encoding any
	// non-empty value must yield at least one byte; Decode must be the
	// inverse of Encode over the set of values Encode actually produces.
	Encoder Encoder[T]
	Decoder Decoder[T]
}

func (o Options[T]) validate() error {
	if o.File == nil {
		return fmt.Errorf("options.File must not be nil: %w", ErrFileCorrupted)
	}

	if o.MaximumBytes < minimumMaximumBytes {
		return fmt.Errorf(
			"maximum_bytes %d is below the minimum of %d (header + one non-empty frame): %w",
			o.MaximumBytes, minimumMaximumBytes, ErrFileNotWritable,
		)
	}

	if o.Encoder == nil || o.Decoder == nil {
		return fmt.Errorf("options.Encoder and options.Decoder must not be nil: %w", ErrFileCorrupted)
	}

	return nil
}

// CacheAdvance is the append-only, bounded-capacity message cache engine
// (spec §4.6). It owns exactly one writer handle, one reader, and one header
// handle over a single file; the zero value is not usable, construct via
// [Open] or [OpenReadOnly].
type CacheAdvance[T any] struct {
	file fs.File
	path string

	header *headerHandle
	reader *reader

	encoder Encoder[T]
	decoder Decoder[T]

	readOnly bool

	// initialized tracks the Uninitialized -> Ready transition (spec §4.6):
	// the first call to any public operation drives synchronize() and seats
	// the writer/reader at the header's persisted offsets.
	initialized bool

	// writerOffset is the writer handle's current position: where the next
	// frame will be written.
	writerOffset uint64

	// closed is set once Close has run; every subsequent operation that can
	// fail reports ErrCacheClosed instead of touching the (now possibly
	// invalid) file handle.
	closed bool
}

// Open wraps a cache file as a read-write engine. It only validates opts and
// does not touch the file: the header is read (or, for an empty file,
// written) by the first Append, Messages or IsEmpty call, and header errors
// surface there.
//
// The file named by opts.File must already exist; it may be zero-length.
// Possible errors: [ErrFileCorrupted] (nil File, Encoder or Decoder) and
// [ErrFileNotWritable] (MaximumBytes below the minimum).
func Open[T any](opts Options[T]) (*CacheAdvance[T], error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &CacheAdvance[T]{
		file:    opts.File,
		path:    opts.Path,
		header:  newHeaderHandle(opts.File, opts.MaximumBytes, opts.OverwritesOldMessages),
		encoder: opts.Encoder,
		decoder: opts.Decoder,
	}, nil
}

// OpenReadOnly opens a cache file for reading only. [CacheAdvance.Append]
// always returns [ErrReadOnly] on the result.
//
// Per spec §3 ("Ownership"): a standalone read-only handle owns its own
// reader and may coexist with a live writer only if the caller guarantees
// mutual non-interference; no locking is provided.
func OpenReadOnly[T any](opts Options[T]) (*CacheAdvance[T], error) {
	c, err := Open(opts)
	if err != nil {
		return nil, err
	}

	c.readOnly = true

	return c, nil
}

// ensureInitialized drives the Uninitialized -> Ready transition on first
// use: synchronize the header, then seat the writer at endOfNewest and the
// reader at offsetOfOldest.
func (c *CacheAdvance[T]) ensureInitialized() error {
	if c.initialized {
		return nil
	}

	if err := c.header.synchronize(); err != nil {
		return err
	}

	c.reader = newReader(c.file, c.header)
	if err := c.reader.seekTo(c.header.offsetOfOldest); err != nil {
		return err
	}

	c.writerOffset = c.header.endOfNewest
	c.initialized = true

	return nil
}

// Append encodes message and durably persists its framed bytes before
// returning (spec §4.6.1).
//
// Possible errors: [ErrMessageLargerThanCacheCapacity],
// [ErrMessageLargerThanRemainingCacheSize] (strict mode only),
// [ErrFileCorrupted], [*IncompatibleHeaderError], [ErrFileNotWritable],
// [ErrReadOnly], [ErrCacheClosed], or an I/O error. Encoder errors propagate
// unwrapped.
func (c *CacheAdvance[T]) Append(message T) error {
	if c.closed {
		return ErrCacheClosed
	}

	if c.readOnly {
		return ErrReadOnly
	}

	if err := c.ensureInitialized(); err != nil {
		return err
	}

	payload, err := c.encoder.Encode(message)
	if err != nil {
		return err
	}

	capacityForBody := c.header.maximumBytes - HeaderSize

	framed, err := frame(payload, capacityForBody)
	if err != nil {
		return err
	}

	frameSize := uint64(len(framed))
	writerOffset := c.writerOffset
	fitsLinearly := writerOffset+frameSize <= c.header.maximumBytes

	if !c.header.overwritesOldMessages {
		return c.appendStrict(framed, frameSize, writerOffset, fitsLinearly)
	}

	return c.appendCircular(framed, frameSize, writerOffset, fitsLinearly)
}

func (c *CacheAdvance[T]) appendStrict(framed []byte, frameSize, writerOffset uint64, fitsLinearly bool) error {
	if !fitsLinearly {
		return fmt.Errorf(
			"message of %d framed bytes does not fit before maximum_bytes=%d at writer offset %d: %w",
			frameSize, c.header.maximumBytes, writerOffset, ErrMessageLargerThanRemainingCacheSize,
		)
	}

	if err := c.writeFrameAt(writerOffset, framed); err != nil {
		return err
	}

	newEndOfNewest := writerOffset + frameSize
	if err := c.header.updateEndOfNewest(newEndOfNewest); err != nil {
		return err
	}

	c.writerOffset = newEndOfNewest

	return nil
}

func (c *CacheAdvance[T]) appendCircular(framed []byte, frameSize, writerOffset uint64, fitsLinearly bool) error {
	if !fitsLinearly {
		// isLogicallyEmpty must be evaluated against the reader's pre-wrap
		// position: once the reader is reseated at H below, comparing it
		// against c.writerOffset (which still holds the pre-append value)
		// no longer answers "was there any live data before this wrap".
		wasEmpty := c.isLogicallyEmpty()

		if err := c.truncateAt(writerOffset); err != nil {
			return err
		}

		writerOffset = HeaderSize

		// Seek the reader to H in memory only; the write about to happen
		// will overwrite whatever message currently starts there, so the
		// eviction loop below advances it past that message before
		// offsetOfOldest is ever persisted.
		if err := c.reader.seekTo(HeaderSize); err != nil {
			return err
		}

		if !wasEmpty {
			if err := c.reader.seekToNextMessage(); err != nil {
				return err
			}
		}
	}

	if err := c.prepareReaderForWriting(writerOffset, frameSize); err != nil {
		return err
	}

	// offsetOfOldest must be durable before the body write: a crash between
	// the two loses at worst some older messages, never leaves the engine
	// believing a partial newest message is intact (spec §5).
	if err := c.header.updateOffsetOfOldest(c.reader.offset); err != nil {
		return err
	}

	if err := c.writeFrameAt(writerOffset, framed); err != nil {
		return err
	}

	newEndOfNewest := writerOffset + frameSize
	if err := c.header.updateEndOfNewest(newEndOfNewest); err != nil {
		return err
	}

	c.writerOffset = newEndOfNewest

	return nil
}

// prepareReaderForWriting advances the reader one message at a time
// (evicting the oldest live message each step) until the incoming write
// region [writerOffset, writerOffset+frameSize) no longer collides with the
// oldest still-live message (spec §4.6.2).
//
// In the common case of identical-size frames, exactly one message is
// evicted: the collision check runs after each single-frame advance rather
// than batch-evicting, which is what gives minimum-eviction its guarantee.
func (c *CacheAdvance[T]) prepareReaderForWriting(writerOffset, frameSize uint64) error {
	for {
		if c.isLogicallyEmpty() {
			return nil
		}

		readerOffset := c.reader.offset
		collides := writerOffset < readerOffset && readerOffset < writerOffset+frameSize

		if !collides {
			return nil
		}

		if err := c.reader.seekToNextMessage(); err != nil {
			return err
		}
	}
}

// isLogicallyEmpty reports whether the cache currently holds no live
// messages, i.e. the reader has caught up to the writer.
func (c *CacheAdvance[T]) isLogicallyEmpty() bool {
	return c.reader.offset == c.writerOffset
}

func (c *CacheAdvance[T]) writeFrameAt(offset uint64, framed []byte) error {
	_, err := c.file.Seek(int64(offset), io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek writer to offset %d: %w", offset, err)
	}

	_, err = c.file.Write(framed)
	if err != nil {
		return fmt.Errorf("write frame at offset %d: %w", offset, err)
	}

	return nil
}

// truncateAt discards any stale bytes at and past offset before the writer
// wraps back to H, so a subsequent read never mistakes leftover bytes from a
// previous, larger message for a live frame.
func (c *CacheAdvance[T]) truncateAt(offset uint64) error {
	if err := c.file.Truncate(int64(offset)); err != nil {
		return fmt.Errorf("truncate at offset %d: %w", offset, err)
	}

	return nil
}

// Messages returns every live message, oldest to newest (spec §4.6.3).
//
// Possible errors: [ErrFileCorrupted], [*IncompatibleHeaderError],
// [ErrFileNotWritable], [ErrCacheClosed], or an I/O error. Decoder errors
// propagate unwrapped.
func (c *CacheAdvance[T]) Messages() ([]T, error) {
	if c.closed {
		return nil, ErrCacheClosed
	}

	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}

	if err := c.reader.seekToOldest(); err != nil {
		return nil, err
	}

	var result []T

	for {
		encoded, ok, err := c.reader.nextEncodedMessage()
		if err != nil {
			return nil, err
		}

		if !ok {
			break
		}

		message, err := c.decoder.Decode(encoded)
		if err != nil {
			return nil, err
		}

		result = append(result, message)
	}

	if err := c.reader.seekTo(c.header.offsetOfOldest); err != nil {
		return nil, err
	}

	return result, nil
}

// IsEmpty reports whether the cache currently holds no live messages (spec
// §4.6.4). Returns [ErrCacheClosed] if the cache has been closed.
func (c *CacheAdvance[T]) IsEmpty() (bool, error) {
	if c.closed {
		return false, ErrCacheClosed
	}

	if err := c.ensureInitialized(); err != nil {
		return false, err
	}

	return c.header.endOfNewest == HeaderSize, nil
}

// IsWritable reports whether the on-disk file is compatible with this
// engine's configuration, without surfacing the category of corruption error
// (spec §4.6.5). It returns false, rather than an error, for any format
// mismatch.
func (c *CacheAdvance[T]) IsWritable() bool {
	return c.header.canWriteToFile()
}

// FileURL returns the path this engine was opened with.
func (c *CacheAdvance[T]) FileURL() string {
	return c.path
}

// Close releases the underlying file handle. After Close, every operation
// that can fail returns [ErrCacheClosed].
func (c *CacheAdvance[T]) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true

	return c.file.Close()
}
