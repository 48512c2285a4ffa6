package vfs

import (
	"io"

	"github.com/pkg/errors"
)

// Lookup walks down the directory tree by path components
func Lookup(d Directory, parts ...string) (Element, error) {
	var e Element = d
	for _, part := range parts {
		dir, ok := e.(Directory)
		if !ok {
			return nil, errors.Errorf("%q is not a directory", e.Name())
		}
		next, err := dir.GetElement(part)
		if err != nil {
			return nil, err
		}
		e = next
	}
	return e, nil
}

func LookupDirectory(d Directory, parts ...string) (Directory, error) {
	e, err := Lookup(d, parts...)
	if err != nil {
		return nil, err
	}
	dir, ok := e.(Directory)
	if !ok {
		return nil, errors.Errorf("%q is not a directory", e.Name())
	}
	return dir, nil
}

func Exists(d Directory, parts ...string) bool {
	_, err := Lookup(d, parts...)
	return err == nil
}

func ReadFile(d Directory, parts ...string) ([]byte, error) {
	e, err := Lookup(d, parts...)
	if err != nil {
		return nil, err
	}
	f, ok := e.(File)
	if !ok {
		return nil, errors.Errorf("%q is directory, not a file", e.Name())
	}
	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// MakeDirectory creates missing directories along parts and returns the last one
func MakeDirectory(d Directory, parts ...string) (Directory, error) {
	for _, part := range parts {
		next, err := d.MakeDirectory(part)
		if err != nil {
			return nil, err
		}
		d = next
	}
	return d, nil
}

// WriteFile creates or truncates file name inside of d and fills it from src
func WriteFile(d Directory, name string, src io.Reader) error {
	w, err := d.File(name).Create()
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Wrapf(err, "Cannot copy data to file %q", name)
	}
	return w.Close()
}
