package vfs

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

// OSDirectory is a Directory over a real filesystem directory
type OSDirectory struct {
	path string
}

func NewOSDirectory(path string) *OSDirectory {
	return &OSDirectory{path: path}
}

func (d *OSDirectory) Name() string      { return filepath.Base(d.path) }
func (d *OSDirectory) IsDirectory() bool { return true }
func (d *OSDirectory) Path() string      { return d.path }

// List returns entry names sorted, so pack scanning is deterministic
func (d *OSDirectory) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to list %q", d.path)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func (d *OSDirectory) GetElement(name string) (Element, error) {
	path := filepath.Join(d.path, name)
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to stat %q", path)
	}
	if st.IsDir() {
		return NewOSDirectory(path), nil
	}
	return &OSFile{path: path}, nil
}

func (d *OSDirectory) MakeDirectory(name string) (Directory, error) {
	path := filepath.Join(d.path, name)
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return nil, errors.Wrapf(err, "Failed to create directory %q", path)
	}
	return NewOSDirectory(path), nil
}

// File returns handle of name inside of d, file may not exist yet
func (d *OSDirectory) File(name string) File {
	return &OSFile{path: filepath.Join(d.path, name)}
}

type OSFile struct {
	path string
}

func (f *OSFile) Name() string      { return filepath.Base(f.path) }
func (f *OSFile) IsDirectory() bool { return false }
func (f *OSFile) Path() string      { return f.path }

func (f *OSFile) Size() int64 {
	st, err := os.Stat(f.path)
	if err != nil {
		return 0
	}
	return st.Size()
}

func (f *OSFile) Open() (io.ReadCloser, error) {
	r, err := os.Open(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open %q", f.path)
	}
	return r, nil
}

func (f *OSFile) Create() (io.WriteCloser, error) {
	w, err := os.Create(f.path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create %q", f.path)
	}
	return w, nil
}
