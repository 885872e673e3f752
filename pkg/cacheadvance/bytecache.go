package cacheadvance

import (
	"github.com/calvinalkan/cacheadvance/pkg/fs"
)

// identityCodec is the no-op [Encoder]/[Decoder] pair used by [OpenBytes]: it
// passes payloads through unchanged instead of a format-specific encoding.
type identityCodec struct{}

func (identityCodec) Encode(v []byte) ([]byte, error) {
	return v, nil
}

func (identityCodec) Decode(b []byte) ([]byte, error) {
	// The reader allocates a fresh slice for every message body, so b is
	// not shared with any later read and is safe to return directly.
	return b, nil
}

// ByteCacheOptions configures [OpenBytes]. It mirrors [Options] minus the
// codec, since the byte-payload cache always uses the identity codec.
type ByteCacheOptions struct {
	File                  fs.File
	Path                  string
	MaximumBytes          uint64
	OverwritesOldMessages bool
}

// OpenBytes opens a cache file whose messages are raw byte slices, with no
// marshaling step. This is CacheAdvance parameterized with the identity
// codec (spec §9): a thin convenience for callers who already have an
// encoded representation and want to skip a redundant encode/decode round
// trip.
func OpenBytes(opts ByteCacheOptions) (*CacheAdvance[[]byte], error) {
	return Open(Options[[]byte]{
		File:                  opts.File,
		Path:                  opts.Path,
		MaximumBytes:          opts.MaximumBytes,
		OverwritesOldMessages: opts.OverwritesOldMessages,
		Encoder:               identityCodec{},
		Decoder:               identityCodec{},
	})
}

// OpenBytesReadOnly is the read-only counterpart of [OpenBytes].
func OpenBytesReadOnly(opts ByteCacheOptions) (*CacheAdvance[[]byte], error) {
	return OpenReadOnly(Options[[]byte]{
		File:                  opts.File,
		Path:                  opts.Path,
		MaximumBytes:          opts.MaximumBytes,
		OverwritesOldMessages: opts.OverwritesOldMessages,
		Encoder:               identityCodec{},
		Decoder:               identityCodec{},
	})
}
