// Package fileutil writes converted outputs to their final destination.
package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrExists is returned when the destination is present and overwriting was
// not requested.
var ErrExists = errors.New("destination already exists")

// SaveResult describes a completed save.
type SaveResult struct {
	Bytes  int64
	SHA256 string
}

// SaveVerified streams src into a sibling temp file, checks the byte count
// against expectedSize (skipped when negative) and renames the file onto dst.
// dst is never left truncated; the temp file is removed on any failure.
func SaveVerified(dst string, src io.Reader, expectedSize int64, overwrite bool) (SaveResult, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return SaveResult{}, fmt.Errorf("create destination directory: %w", err)
	}
	if !overwrite {
		if _, err := os.Lstat(dst); err == nil {
			return SaveResult{}, fmt.Errorf("%w: %s", ErrExists, dst)
		}
	}

	tmp, err := os.CreateTemp(dir, ".cadence-*.part")
	if err != nil {
		return SaveResult{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	discard := func(err error) (SaveResult, error) {
		_ = os.Remove(tmpPath)
		return SaveResult{}, err
	}

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return discard(fmt.Errorf("write destination: %w", err))
	}
	if expectedSize >= 0 && written != expectedSize {
		return discard(fmt.Errorf("copy size mismatch: expected %d bytes, copied %d bytes", expectedSize, written))
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return discard(fmt.Errorf("set destination mode: %w", err))
	}

	if !overwrite {
		// Link fails when dst appeared while copying.
		if err := os.Link(tmpPath, dst); err != nil {
			if errors.Is(err, os.ErrExist) {
				return discard(fmt.Errorf("%w: %s", ErrExists, dst))
			}
			return discard(fmt.Errorf("place destination: %w", err))
		}
		_ = os.Remove(tmpPath)
	} else if err := os.Rename(tmpPath, dst); err != nil {
		return discard(fmt.Errorf("place destination: %w", err))
	}

	return SaveResult{Bytes: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}
