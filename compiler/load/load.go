// Package load finds schema files on disk, reads them and watches them
// for changes.
package load

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Ext is the extension of schema files.
const Ext = ".schema"

// ErrLoad is matched by errors of Discover and Load.
var ErrLoad = errors.New("kvgen: load schema")

// Error reports a path that could not be discovered or read.
type Error struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("kvgen: load %s: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether the target is ErrLoad.
func (e *Error) Is(target error) bool { return target == ErrLoad }

// File is a schema file read from disk.
type File struct {
	Path   string
	Source string
}

// IsSchema reports whether path names a schema file.
func IsSchema(path string) bool {
	return filepath.Ext(path) == Ext && !hidden(filepath.Base(path))
}

// hidden reports whether a file or directory name is skipped during
// discovery: dot files, and names starting with an underscore as the go
// tool does.
func hidden(name string) bool {
	return len(name) > 1 && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_"))
}

// Discover returns the schema files named by paths, sorted and without
// duplicates. A file path is taken as given whatever its extension; a
// directory is searched recursively for *.schema files, skipping hidden
// and underscore-prefixed entries.
func Discover(paths ...string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, &Error{Path: p, Cause: err}
		}
		if !info.IsDir() {
			files = append(files, filepath.Clean(p))
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && hidden(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if IsSchema(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, &Error{Path: p, Cause: err}
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// Load discovers and reads the schema files named by paths.
func Load(paths ...string) ([]*File, error) {
	names, err := Discover(paths...)
	if err != nil {
		return nil, err
	}
	files := make([]*File, 0, len(names))
	for _, name := range names {
		src, err := os.ReadFile(name)
		if err != nil {
			return nil, &Error{Path: name, Cause: err}
		}
		files = append(files, &File{Path: name, Source: string(src)})
	}
	return files, nil
}
