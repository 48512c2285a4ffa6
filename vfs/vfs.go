// Package vfs abstracts asset pack trees, so pack lookups never build os paths by hand.
package vfs

import (
	"io"
)

// Element carries only its name until it is listed, read or written
type Element interface {
	Name() string
	IsDirectory() bool
}

type File interface {
	Element
	Size() int64
	Open() (io.ReadCloser, error)
	// Create truncates existing content
	Create() (io.WriteCloser, error)
}

type Directory interface {
	Element
	List() ([]string, error)
	GetElement(name string) (Element, error)
	MakeDirectory(name string) (Directory, error)
	File(name string) File
}

// Located is implemented by elements backed by a real filesystem path
type Located interface {
	Path() string
}
