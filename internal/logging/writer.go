// Package logging builds the process logger from configuration and provides
// a size-rotating file writer for log output.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RotatingWriter is an io.WriteCloser that rotates its file by size. Rotated
// files are named <base>-<timestamp><ext>; at most maxBackups of them are
// kept and files older than maxAgeDays are removed.
type RotatingWriter struct {
	mu         sync.Mutex
	file       *os.File
	path       string
	written    int64
	limit      int64
	maxBackups int
	maxAgeDays int
}

// NewRotatingWriter opens path (creating parent directories if needed) and
// returns a writer that rotates once the file exceeds maxSizeMB.
func NewRotatingWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	rw := &RotatingWriter{
		path:       path,
		limit:      int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
		maxAgeDays: maxAgeDays,
	}
	if err := rw.open(); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *RotatingWriter) open() error {
	f, err := os.OpenFile(rw.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	rw.file = f
	rw.written = info.Size()
	return nil
}

// Write implements io.Writer, rotating first if p would exceed the limit.
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.written+int64(len(p)) > rw.limit {
		if err := rw.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := rw.file.Write(p)
	rw.written += int64(n)
	return n, err
}

// Close closes the underlying file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.file == nil {
		return nil
	}
	return rw.file.Close()
}

func (rw *RotatingWriter) rotate() error {
	if rw.file != nil {
		rw.file.Close()
	}

	base, ext := splitLogName(rw.path)
	rotated := fmt.Sprintf("%s-%s%s", base, time.Now().Format("20060102-150405"), ext)
	os.Rename(rw.path, rotated) //nolint:errcheck

	if err := rw.open(); err != nil {
		return err
	}

	// Prune old backups off the write path.
	go rw.prune()

	return nil
}

// prune removes rotated files beyond maxBackups and older than maxAgeDays.
func (rw *RotatingWriter) prune() {
	dir := filepath.Dir(rw.path)
	base, ext := splitLogName(filepath.Base(rw.path))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	prefix := base + "-"
	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ext) && name != filepath.Base(rw.path) {
			rotated = append(rotated, name)
		}
	}

	// Timestamped names sort chronologically.
	sort.Strings(rotated)

	for len(rotated) > rw.maxBackups {
		os.Remove(filepath.Join(dir, rotated[0])) //nolint:errcheck
		rotated = rotated[1:]
	}

	cutoff := time.Now().AddDate(0, 0, -rw.maxAgeDays)
	for _, name := range rotated {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path) //nolint:errcheck
		}
	}
}

// splitLogName splits a log file name into base and extension, defaulting the
// extension to ".log" when absent.
func splitLogName(name string) (base, ext string) {
	ext = filepath.Ext(name)
	base = strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".log"
	}
	return base, ext
}
