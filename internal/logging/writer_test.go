package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRotatingWriter_WriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	rw, err := NewRotatingWriter(path, 1, 3, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("unexpected file contents: %q", data)
	}
}

func TestRotatingWriter_RotatesAtLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	rw, err := NewRotatingWriter(path, 1, 3, 30) // 1 MB limit
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rw.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	if _, err := rw.Write(chunk); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	// Second write would exceed 1 MB, forcing a rotation first.
	if _, err := rw.Write(chunk); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir failed: %v", err)
	}

	var rotated int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "app-") && strings.HasSuffix(e.Name(), ".log") {
			rotated++
		}
	}
	if rotated != 1 {
		t.Fatalf("expected 1 rotated file, found %d", rotated)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Fatalf("expected fresh file holding one chunk, size = %d", info.Size())
	}
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	if err := os.WriteFile(path, []byte("existing\n"), 0o644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	rw, err := NewRotatingWriter(path, 1, 3, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rw.Close()

	if _, err := rw.Write([]byte("more\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "existing\nmore\n" {
		t.Fatalf("unexpected contents: %q", data)
	}
}

func TestSplitLogName(t *testing.T) {
	base, ext := splitLogName("app.log")
	if base != "app" || ext != ".log" {
		t.Errorf("splitLogName(app.log) = %q, %q", base, ext)
	}
	base, ext = splitLogName("noext")
	if base != "noext" || ext != ".log" {
		t.Errorf("splitLogName(noext) = %q, %q", base, ext)
	}
}
