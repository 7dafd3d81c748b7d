package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveVerified(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out", "talk.mp3")
	content := "ID3 converted audio"

	result, err := SaveVerified(dst, strings.NewReader(content), int64(len(content)), false)
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != content {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	sum := sha256.Sum256([]byte(content))
	if result.Bytes != int64(len(content)) || result.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected result %+v", result)
	}
	assertNoTempFiles(t, filepath.Dir(dst))
}

func TestSaveVerifiedRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "talk.mp3")
	if err := os.WriteFile(dst, []byte("original"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := SaveVerified(dst, strings.NewReader("new"), -1, false); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, _ := os.ReadFile(dst)
	if string(got) != "original" {
		t.Fatalf("destination modified: %q", got)
	}

	if _, err := SaveVerified(dst, strings.NewReader("new"), -1, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = os.ReadFile(dst)
	if string(got) != "new" {
		t.Fatalf("expected overwrite, got %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestSaveVerifiedSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "short.mp3")

	_, err := SaveVerified(dst, strings.NewReader("abc"), 10, false)
	if err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist, stat err=%v", err)
	}
	assertNoTempFiles(t, dir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".cadence-*.part"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}
