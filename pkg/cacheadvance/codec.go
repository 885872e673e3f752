package cacheadvance

import "encoding/binary"

// Fixed-width big-endian integer and boolean codecs used throughout the file
// format. Decoding requires the exact expected length; anything else is a
// caller bug and panics, since these are only ever called against slices this
// package itself sized.

func encodeUint8(v uint8) []byte {
	return []byte{v}
}

func decodeUint8(b []byte) uint8 {
	if len(b) != 1 {
		panic("cacheadvance: decodeUint8: expected 1 byte")
	}

	return b[0]
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)

	return buf
}

func decodeUint32(b []byte) uint32 {
	if len(b) != 4 {
		panic("cacheadvance: decodeUint32: expected 4 bytes")
	}

	return binary.BigEndian.Uint32(b)
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)

	return buf
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		panic("cacheadvance: decodeUint64: expected 8 bytes")
	}

	return binary.BigEndian.Uint64(b)
}

func encodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}

	return []byte{0}
}

func decodeBool(b []byte) bool {
	if len(b) != 1 {
		panic("cacheadvance: decodeBool: expected 1 byte")
	}

	return b[0] != 0
}
