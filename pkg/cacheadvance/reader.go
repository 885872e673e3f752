package cacheadvance

import (
	"fmt"
	"io"

	"github.com/calvinalkan/cacheadvance/pkg/fs"
)

// reader sequentially walks framed messages, handling wraparound and the
// end-of-newest-message sentinel (spec §4.5).
type reader struct {
	file fs.File
	h    *headerHandle

	// offset is the reader's current position in the file. The file handle
	// is shared with the writer and the header handle, so every read first
	// seeks the file back to offset.
	offset uint64
}

func newReader(file fs.File, h *headerHandle) *reader {
	return &reader{file: file, h: h}
}

// seekToOldest positions the reader at the header's current offsetOfOldest.
func (r *reader) seekToOldest() error {
	return r.seekTo(r.h.offsetOfOldest)
}

func (r *reader) seekTo(offset uint64) error {
	_, err := r.file.Seek(int64(offset), io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek reader to offset %d: %w", offset, err)
	}

	r.offset = offset

	return nil
}

// nextEncodedMessage returns the next message's encoded payload, or
// (nil, false, nil) once the reader has reached the header's endOfNewest
// offset. One wrap from EOF (or the end-of-newest sentinel) back to H is
// followed per call chain, per spec §4.5.
func (r *reader) nextEncodedMessage() ([]byte, bool, error) {
	return r.nextEncodedMessageWrapped(false)
}

func (r *reader) nextEncodedMessageWrapped(alreadyWrapped bool) ([]byte, bool, error) {
	if r.offset == r.h.endOfNewest {
		return nil, false, nil
	}

	if err := r.seekTo(r.offset); err != nil {
		return nil, false, err
	}

	sp, err := nextSpan(r.file)
	if err != nil {
		return nil, false, err
	}

	switch sp.kind {
	case spanMessage:
		cursor := r.offset
		frameStart := cursor
		bodyStart := frameStart + frameLengthSize
		bodyEnd := bodyStart + uint64(sp.length)

		noWrapFits := cursor < r.h.endOfNewest && bodyEnd <= r.h.endOfNewest
		wrapFits := cursor >= r.h.endOfNewest && bodyEnd <= r.h.maximumBytes

		if !noWrapFits && !wrapFits {
			return nil, false, fmt.Errorf(
				"frame at offset %d with length %d does not fit within end_of_newest=%d maximum_bytes=%d: %w",
				frameStart, sp.length, r.h.endOfNewest, r.h.maximumBytes, ErrFileCorrupted,
			)
		}

		payload := make([]byte, sp.length)

		n, err := readFull(r.file, payload)
		if err != nil {
			return nil, false, fmt.Errorf("read message body: %w", err)
		}

		if uint32(n) != sp.length {
			return nil, false, fmt.Errorf("message body short read: got %d bytes, want %d: %w", n, sp.length, ErrFileCorrupted)
		}

		r.offset = bodyEnd

		return payload, true, nil

	case spanEndOfNewest:
		if alreadyWrapped {
			return nil, false, fmt.Errorf("encountered a second end-of-newest marker while wrapping: %w", ErrFileCorrupted)
		}

		if err := r.seekTo(HeaderSize); err != nil {
			return nil, false, err
		}

		return r.nextEncodedMessageWrapped(true)

	case spanEmptyRead:
		if r.offset < r.h.endOfNewest {
			return nil, false, fmt.Errorf("unexpected end of file before end_of_newest=%d: %w", r.h.endOfNewest, ErrFileCorrupted)
		}

		if alreadyWrapped {
			return nil, false, fmt.Errorf("encountered end of file a second time while wrapping: %w", ErrFileCorrupted)
		}

		if err := r.seekTo(HeaderSize); err != nil {
			return nil, false, err
		}

		return r.nextEncodedMessageWrapped(true)

	default: // spanInvalid
		return nil, false, fmt.Errorf("torn length prefix at offset %d: %w", r.offset, ErrFileCorrupted)
	}
}

// seekToNextMessage consumes one frame without returning its payload,
// advancing past it exactly as [nextEncodedMessage] would. Used by the
// eviction loop to discard the oldest live message.
func (r *reader) seekToNextMessage() error {
	_, _, err := r.nextEncodedMessage()

	return err
}
