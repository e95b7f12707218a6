package query

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// DirectoryNotFoundError reports an input root that does not exist or is
// not a directory.
type DirectoryNotFoundError struct {
	Path string
	Err  error
}

func (e *DirectoryNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query directory %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("query directory %s: not a directory", e.Path)
}

func (e *DirectoryNotFoundError) Unwrap() error { return e.Err }

// WalkError reports a directory entry that could not be read during a walk.
// The walk continues past it.
type WalkError struct {
	RelPath string
	Err     error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("walk %s: %v", e.RelPath, e.Err)
}

func (e *WalkError) Unwrap() error { return e.Err }

// Walker enumerates query files below the root of a filesystem.
type Walker struct {
	fs   billy.Filesystem
	base string // OS directory backing fs, empty when unknown
}

// NewWalker returns a Walker over fs. Descriptors carry RelPath as their
// SourcePath.
func NewWalker(fs billy.Filesystem) *Walker {
	return &Walker{fs: fs}
}

// OpenWalker validates dir and returns a Walker rooted at it. It fails with
// *DirectoryNotFoundError when dir is missing or is not a directory.
func OpenWalker(dir string) (*Walker, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, &DirectoryNotFoundError{Path: dir, Err: err}
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, &DirectoryNotFoundError{Path: dir, Err: err}
	}
	if !fi.IsDir() {
		return nil, &DirectoryNotFoundError{Path: dir}
	}
	return &Walker{fs: osfs.New(abs), base: abs}, nil
}

// FS returns the filesystem the walker reads from.
func (w *Walker) FS() billy.Filesystem { return w.fs }

// All yields every query file in lexical traversal order: the entries of a
// directory sorted by name, sub-directories descended where they sort. Each
// call walks the filesystem again. Unreadable directories are yielded as a
// *WalkError and skipped.
func (w *Walker) All() iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		w.walk("", yield)
	}
}

// List collects All into a slice, stopping at the first error.
func (w *Walker) List() ([]Descriptor, error) {
	var out []Descriptor
	for d, err := range w.All() {
		if err != nil {
			return out, err
		}
		out = append(out, d)
	}
	return out, nil
}

// walk visits dir and reports whether iteration should continue.
func (w *Walker) walk(dir string, yield func(Descriptor, error) bool) bool {
	readPath := dir
	if readPath == "" {
		readPath = "."
	}
	entries, err := w.fs.ReadDir(readPath)
	if err != nil {
		return yield(Descriptor{RelPath: readPath}, &WalkError{RelPath: readPath, Err: err})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, fi := range entries {
		rel := fi.Name()
		if dir != "" {
			rel = path.Join(dir, fi.Name())
		}
		switch {
		case fi.IsDir():
			if !w.walk(rel, yield) {
				return false
			}
		case isQueryFile(fi):
			if !yield(w.descriptor(rel), nil) {
				return false
			}
		}
	}
	return true
}

func (w *Walker) descriptor(rel string) Descriptor {
	src := rel
	if w.base != "" {
		src = filepath.Join(w.base, filepath.FromSlash(rel))
	}
	return Descriptor{RelPath: rel, SourcePath: src}
}

func isQueryFile(fi os.FileInfo) bool {
	if !fi.Mode().IsRegular() {
		return false
	}
	name := fi.Name()
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.EqualFold(path.Ext(name), Extension)
}

// IsDirectoryNotFound reports whether err is a *DirectoryNotFoundError.
func IsDirectoryNotFound(err error) bool {
	var dnf *DirectoryNotFoundError
	return errors.As(err, &dnf)
}
