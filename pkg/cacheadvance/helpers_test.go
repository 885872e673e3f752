package cacheadvance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/cacheadvance/pkg/fs"
)

// tempCacheFile creates a fresh, empty file under t.TempDir and returns it
// open for reading and writing.
func tempCacheFile(t *testing.T) (fs.File, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cache.bin")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		t.Fatalf("create temp cache file: %v", err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f, path
}

func reopenCacheFile(t *testing.T, path string) fs.File {
	t.Helper()

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		t.Fatalf("reopen temp cache file: %v", err)
	}

	t.Cleanup(func() { _ = f.Close() })

	return f
}

type stringCodec struct{}

func (stringCodec) Encode(v string) ([]byte, error) { return []byte(v), nil }
func (stringCodec) Decode(b []byte) (string, error) { return string(b), nil }

func osReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// corruptByteAt overwrites a single byte of the file at path, independent
// of any open handle, to simulate on-disk damage or an adversarial header.
func corruptByteAt(t *testing.T, path string, offset int, value byte) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file to corrupt: %v", err)
	}

	if offset >= len(data) {
		t.Fatalf("offset %d out of range (len %d)", offset, len(data))
	}

	data[offset] = value

	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write corrupted file: %v", err)
	}
}

func openStrings(t *testing.T, file fs.File, maximumBytes uint64, circular bool) *CacheAdvance[string] {
	t.Helper()

	c, err := Open(Options[string]{
		File:                  file,
		MaximumBytes:          maximumBytes,
		OverwritesOldMessages: circular,
		Encoder:               stringCodec{},
		Decoder:               stringCodec{},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	return c
}
