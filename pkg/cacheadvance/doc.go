// Package cacheadvance is a single-file, append-only, bounded-capacity
// message log built for high-throughput logging.
//
// Each call to [CacheAdvance.Append] durably persists one encoded message and
// its length prefix before returning; [CacheAdvance.Messages] iterates
// messages in insertion order, oldest to newest. The cache has two modes:
// strict (reject once full) and circular (evict the oldest messages to make
// room for new ones).
//
// cacheadvance is not a transactional store: it is not safe for concurrent
// writers, does not support indexed or random-access reads, and does not
// guarantee recovery of a partially-written message body after a crash. See
// [Open] for the full contract.
//
// # Basic usage
//
//	fsys := fs.NewReal()
//	f, err := fsys.OpenFile(path, os.O_RDWR, 0)
//	if err != nil {
//	    // ...
//	}
//
//	cache, err := cacheadvance.Open(cacheadvance.Options[LogLine]{
//	    File:                  f,
//	    MaximumBytes:          1 << 20,
//	    OverwritesOldMessages: true,
//	    Encoder:               cacheadvance.JSONEncoder[LogLine]{},
//	    Decoder:               cacheadvance.JSONDecoder[LogLine]{},
//	})
//	if err != nil {
//	    // delete and recreate on ErrFileCorrupted / IncompatibleHeaderError
//	}
//
//	err = cache.Append(LogLine{Text: "hello"})
//	lines, err := cache.Messages()
//
// # Concurrency
//
// One engine instance must be driven by a single logical actor throughout
// its lifetime; cacheadvance performs no internal locking and no internal
// parallelism. See §5 of the design notes for the full ordering contract.
package cacheadvance
