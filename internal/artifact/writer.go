package artifact

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/zeebo/xxh3"

	"sqlitemgr/internal/sqlite"
)

// Written describes one stored artifact.
type Written struct {
	Path      string // slash-separated, relative to the output root
	Digest    uint64 // xxh3 of the file contents
	Rows      int
	Unchanged bool // an identical artifact was already in place
}

// DigestHex returns Digest as 16 hex digits.
func (w Written) DigestHex() string { return fmt.Sprintf("%016x", w.Digest) }

// Writer stores artifacts on a filesystem rooted at the output directory.
// Each artifact is written to a temporary sibling and renamed into place, so
// readers never observe a partial file.
type Writer struct {
	fs billy.Filesystem
}

// NewWriter returns a Writer over fs.
func NewWriter(fs billy.Filesystem) *Writer {
	return &Writer{fs: fs}
}

// OpenWriter creates dir if needed and returns a Writer rooted at it.
func OpenWriter(dir string) (*Writer, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return &Writer{fs: osfs.New(abs)}, nil
}

// FS returns the output filesystem.
func (w *Writer) FS() billy.Filesystem { return w.fs }

// Write stores res as CSV at rel, creating parent directories. An existing
// artifact is replaced unless its contents already match byte for byte, in
// which case it is left untouched and Unchanged is set.
func (w *Writer) Write(rel string, res sqlite.Result) (Written, error) {
	out := Written{Path: rel}

	dir := path.Dir(rel)
	if dir != "." {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return out, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp, err := w.fs.TempFile(dir, "."+path.Base(rel)+".tmp-")
	if err != nil {
		return out, fmt.Errorf("create temp file for %s: %w", rel, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = w.fs.Remove(tmpName) }

	h := xxh3.New()
	rows, err := WriteCSV(io.MultiWriter(tmp, h), res)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close temp file: %w", cerr)
	}
	if err != nil {
		cleanup()
		return out, fmt.Errorf("write %s: %w", rel, err)
	}
	out.Rows = rows
	out.Digest = h.Sum64()

	if prev, ok, err := w.Digest(rel); err != nil {
		cleanup()
		return out, err
	} else if ok && prev == out.Digest {
		cleanup()
		out.Unchanged = true
		return out, nil
	}

	if err := w.fs.Rename(tmpName, rel); err != nil {
		cleanup()
		return out, fmt.Errorf("move %s into place: %w", rel, err)
	}
	return out, nil
}

// Digest hashes the regular file at rel. ok is false when there is none.
func (w *Writer) Digest(rel string) (uint64, bool, error) {
	fi, err := w.fs.Stat(rel)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat %s: %w", rel, err)
	}
	if !fi.Mode().IsRegular() {
		return 0, false, nil
	}

	f, err := w.fs.Open(rel)
	if err != nil {
		return 0, false, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, false, fmt.Errorf("read %s: %w", rel, err)
	}
	return h.Sum64(), true, nil
}
