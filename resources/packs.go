package resources

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/vfs"
)

// directories that mark a directory as an asset pack root
var packMarkers = []string{"models", "materials", "entity", "animations", "textures"}

type Pack struct {
	Name string
	dir  *vfs.OSDirectory
}

func NewPack(path string) *Pack {
	return &Pack{
		Name: filepath.Base(path),
		dir:  vfs.NewOSDirectory(path),
	}
}

func (p *Pack) Path() string { return p.dir.Path() }

func (p *Pack) Directory() vfs.Directory { return p.dir }

func (p *Pack) Has(parts ...string) bool {
	return vfs.Exists(p.dir, parts...)
}

func (p *Pack) Read(parts ...string) ([]byte, error) {
	return vfs.ReadFile(p.dir, parts...)
}

func looksLikePack(path string) bool {
	for _, marker := range packMarkers {
		if s, err := os.Stat(filepath.Join(path, marker)); err == nil && s.IsDir() {
			return true
		}
	}
	return false
}

// DiscoverPacks expands a path list into ordered pack roots. An element that
// is a pack itself is taken as is, otherwise its subdirectories are roots.
func DiscoverPacks(pathList string) ([]string, error) {
	var roots []string
	for _, element := range filepath.SplitList(pathList) {
		if element == "" {
			continue
		}
		element, err := homedir.Expand(element)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to expand %q", element)
		}
		if s, err := os.Stat(element); err != nil {
			return nil, errors.Wrapf(err, "Asset pack root %q", element)
		} else if !s.IsDir() {
			return nil, errors.Errorf("Asset pack root %q is not a directory", element)
		}

		if looksLikePack(element) {
			roots = append(roots, element)
			continue
		}

		entries, err := os.ReadDir(element)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to list %q", element)
		}
		var sub []string
		for _, e := range entries {
			if e.IsDir() {
				sub = append(sub, filepath.Join(element, e.Name()))
			}
		}
		sort.Strings(sub)
		roots = append(roots, sub...)
	}
	return roots, nil
}
