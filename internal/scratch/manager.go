package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrOutsideScratch is returned when a caller hands the Manager a path that
// does not live directly inside its directory.
var ErrOutsideScratch = errors.New("path outside scratch directory")

// Manager allocates, creates, and deletes files inside one scratch directory.
// All methods are safe for concurrent use; distinct allocations never share a
// path because each name embeds a fresh UUID.
type Manager struct {
	dir string
	now func() time.Time
}

// Usage summarizes the current scratch footprint.
type Usage struct {
	Files int
	Bytes int64
}

// New resolves dir to an absolute path and creates it when missing.
func New(dir string) (*Manager, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("scratch directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	return &Manager{dir: abs, now: time.Now}, nil
}

// Dir returns the absolute scratch directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Allocate returns an unused path of the form <prefix>-<unix ms>-<uuid>.<ext>.
// The file is not created.
func (m *Manager) Allocate(prefix, extension string) (string, error) {
	prefix = SanitizeName(prefix)
	extension = strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if strings.ContainsAny(extension, `/\`) {
		return "", fmt.Errorf("invalid extension %q", extension)
	}
	name := fmt.Sprintf("%s-%d-%s", prefix, m.now().UnixMilli(), uuid.NewString())
	if extension != "" {
		name += "." + SanitizeName(extension)
	}
	return filepath.Join(m.dir, name), nil
}

// Create opens a new file at an allocated path. It fails if the path already
// exists or lies outside the scratch directory.
func (m *Manager) Create(path string) (*os.File, error) {
	if !m.Owns(path) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideScratch, path)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
}

// Delete removes path. A path that is already gone counts as success so
// completion and cancellation can both clean up without coordinating.
func (m *Manager) Delete(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if !m.Owns(path) {
		return fmt.Errorf("%w: %s", ErrOutsideScratch, path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Exists reports whether path is present.
func (m *Manager) Exists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	_, err := os.Lstat(path)
	return err == nil
}

// Owns reports whether path names an entry directly inside the scratch directory.
func (m *Manager) Owns(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	cleaned := filepath.Clean(path)
	return filepath.Dir(cleaned) == m.dir && filepath.Base(cleaned) != "."
}

// Usage counts regular files and their total size.
func (m *Manager) Usage() (Usage, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return Usage{}, fmt.Errorf("read scratch directory: %w", err)
	}
	var usage Usage
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		usage.Files++
		usage.Bytes += info.Size()
	}
	return usage, nil
}

// SanitizeName replaces every character outside [A-Za-z0-9._-] with an
// underscore and strips leading dots. An empty result becomes "file".
func SanitizeName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" || out == "_" {
		return "file"
	}
	return out
}
