package cacheadvance

import "fmt"

// CA1 file format constants (spec §3).
const (
	// formatVersion is the current on-disk format version.
	formatVersion = uint8(1)

	// HeaderSize is the fixed size in bytes of every cache file's header.
	// This is H in the design notes: the first byte offset of the message
	// region.
	HeaderSize = 64
)

// Mode flags for overwritesOldMessages.
const (
	modeStrict   = uint8(0)
	modeCircular = uint8(1)
)

// Header field offsets (bytes from file start). Each field can be read or
// rewritten independently without touching the rest of the header, which is
// what lets [headerHandle] persist offsetOfOldest/endOfNewest in place rather
// than re-serializing all 64 bytes on every append.
const (
	offVersion                    = 0  // uint8
	offMaximumBytes               = 1  // uint64
	offOverwritesOldMessages      = 9  // uint8
	offOffsetOfOldestMessage      = 10 // uint64
	offOffsetAtEndOfNewestMessage = 18 // uint64
	offReserved                   = 26 // 38 bytes, zero-filled
)

// fileHeader represents the 64-byte fixed-width header record (spec §3).
type fileHeader struct {
	Version                    uint8
	MaximumBytes               uint64
	OverwritesOldMessages      bool
	OffsetOfOldestMessage      uint64
	OffsetAtEndOfNewestMessage uint64
}

// encodeHeader serializes h to a HeaderSize-byte slice.
func encodeHeader(h fileHeader) []byte {
	buf := make([]byte, HeaderSize)

	copy(buf[offVersion:], encodeUint8(h.Version))
	copy(buf[offMaximumBytes:], encodeUint64(h.MaximumBytes))
	copy(buf[offOverwritesOldMessages:], encodeBool(h.OverwritesOldMessages))
	copy(buf[offOffsetOfOldestMessage:], encodeUint64(h.OffsetOfOldestMessage))
	copy(buf[offOffsetAtEndOfNewestMessage:], encodeUint64(h.OffsetAtEndOfNewestMessage))
	// buf[offReserved:] is already zero-filled.

	return buf
}

// decodeHeader deserializes buf into a fileHeader. buf must be exactly
// HeaderSize bytes; this is a caller-enforced invariant (callers check the
// read length before calling), so a mismatch here is a programming error.
func decodeHeader(buf []byte) fileHeader {
	if len(buf) != HeaderSize {
		panic(fmt.Sprintf("cacheadvance: decodeHeader: expected %d bytes, got %d", HeaderSize, len(buf)))
	}

	return fileHeader{
		Version:                    decodeUint8(buf[offVersion : offVersion+1]),
		MaximumBytes:               decodeUint64(buf[offMaximumBytes : offMaximumBytes+8]),
		OverwritesOldMessages:      decodeBool(buf[offOverwritesOldMessages : offOverwritesOldMessages+1]),
		OffsetOfOldestMessage:      decodeUint64(buf[offOffsetOfOldestMessage : offOffsetOfOldestMessage+8]),
		OffsetAtEndOfNewestMessage: decodeUint64(buf[offOffsetAtEndOfNewestMessage : offOffsetAtEndOfNewestMessage+8]),
	}
}

// newHeader builds the header for a freshly initialized, empty cache file.
func newHeader(maximumBytes uint64, overwritesOldMessages bool) fileHeader {
	return fileHeader{
		Version:                    formatVersion,
		MaximumBytes:               maximumBytes,
		OverwritesOldMessages:      overwritesOldMessages,
		OffsetOfOldestMessage:      HeaderSize,
		OffsetAtEndOfNewestMessage: HeaderSize,
	}
}

