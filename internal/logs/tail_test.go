package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cadence/internal/logs"
)

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("offset = %d, want 6", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 {
		t.Fatalf("expected all lines, got %#v err=%v", lines, err)
	}

	lines, offset, err = logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("missing file: lines=%#v offset=%d err=%v", lines, offset, err)
	}
}

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) add(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func waitForLines(t *testing.T, c *collector, want int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if lines := c.snapshot(); len(lines) >= want {
			return lines
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d lines, got %#v", want, c.snapshot())
	return nil
}

func appendLine(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestFollowEmitsCompleteAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadence.log")
	appendLine(t, path, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := &collector{}
	done := make(chan error, 1)
	go func() { done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, got.add) }()

	appendLine(t, path, "par")
	time.Sleep(80 * time.Millisecond)
	if lines := got.snapshot(); len(lines) != 0 {
		t.Fatalf("partial line emitted early: %#v", lines)
	}
	appendLine(t, path, "tial\nnext\n")

	lines := waitForLines(t, got, 2)
	if lines[0] != "partial" || lines[1] != "next" {
		t.Fatalf("unexpected lines: %#v", lines)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not stop")
	}
}

func TestFollowRestartsWhenPointerMoves(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "cadence-1.log")
	second := filepath.Join(dir, "cadence-2.log")
	pointer := filepath.Join(dir, "cadence.log")
	appendLine(t, first, "old run\n")
	if err := os.Symlink(first, pointer); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, offset, _ := logs.Last(pointer, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := &collector{}
	go func() { _ = logs.Follow(ctx, pointer, offset, 20*time.Millisecond, got.add) }()

	time.Sleep(60 * time.Millisecond)
	appendLine(t, second, "new run\n")
	if err := os.Remove(pointer); err != nil {
		t.Fatalf("remove pointer: %v", err)
	}
	if err := os.Symlink(second, pointer); err != nil {
		t.Fatalf("relink pointer: %v", err)
	}

	lines := waitForLines(t, got, 1)
	if lines[0] != "new run" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
}
