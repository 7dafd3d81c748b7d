package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// mp4Header is an ISO base media "ftyp" box so payloads look like MP4 to
// anything that sniffs the first bytes.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}

// MediaPayload returns size bytes starting with an MP4 header and padded with
// a repeating pattern. Sizes below the header length truncate it.
func MediaPayload(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	buf := make([]byte, size)
	n := copy(buf, mp4Header)
	for i := n; i < size; i++ {
		buf[i] = 0x42
	}
	return buf
}

// WriteMedia writes MediaPayload(size) to path, creating parent directories.
func WriteMedia(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, MediaPayload(size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
