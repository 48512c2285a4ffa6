package exporter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/vfs"
)

// TextureFile is a texture reference of exported materials and the scene file it came from
type TextureFile struct {
	Ref    string
	Source string
}

type Result struct {
	Name       string
	Model      *badger.Model
	Materials  []*badger.MetaMaterial
	Animations *badger.AnimationSet
	Textures   []TextureFile
}

func (r *Result) Material(name string) *badger.MetaMaterial {
	for _, m := range r.Materials {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Write lays out result as an asset pack rooted at dir
func (r *Result) Write(dir string) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.Wrapf(err, "Failed to create output directory")
	}
	root := vfs.NewOSDirectory(dir)

	write := func(parts []string, name string, data []byte) error {
		d, err := vfs.MakeDirectory(root, parts...)
		if err != nil {
			return errors.Wrapf(err, "Failed to create %s", strings.Join(parts, "/"))
		}
		if err := vfs.WriteFile(d, name, bytes.NewReader(data)); err != nil {
			return errors.Wrapf(err, "Failed to write %s", name)
		}
		log.Debug("Written", "file", filepath.Join(append(append([]string{dir}, parts...), name)...))
		return nil
	}

	data, err := badger.MarshalModel(r.Model)
	if err != nil {
		return errors.Wrapf(err, "Failed to marshal model")
	}
	if err := write([]string{"models", "entity"}, r.Name+".model.json", data); err != nil {
		return err
	}

	for _, m := range r.Materials {
		data, err := badger.MarshalMetaMaterial(m)
		if err != nil {
			return errors.Wrapf(err, "Failed to marshal material %q", m.Name)
		}
		if err := write([]string{"materials", "meta_materials"}, m.Name+".json", data); err != nil {
			return err
		}
	}

	if r.Animations != nil && len(r.Animations.Animations) != 0 {
		data, err := badger.MarshalAnimationSet(r.Animations)
		if err != nil {
			return errors.Wrapf(err, "Failed to marshal animations")
		}
		if err := write([]string{"animations"}, r.Name+".animations.json", data); err != nil {
			return err
		}
	}

	for _, t := range r.Textures {
		if err := r.copyTexture(root, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) copyTexture(root vfs.Directory, t TextureFile) error {
	if t.Source == "" {
		log.Warnf("Texture %q has no source file, skipping copy", t.Ref)
		return nil
	}
	f, err := os.Open(t.Source)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("Texture %q source %q is missing, skipping copy", t.Ref, t.Source)
			return nil
		}
		return errors.Wrapf(err, "Failed to open texture %q", t.Source)
	}
	defer f.Close()

	parts := strings.Split(t.Ref, "/")
	d, err := vfs.MakeDirectory(root, parts[:len(parts)-1]...)
	if err != nil {
		return errors.Wrapf(err, "Failed to create texture directory")
	}
	name := parts[len(parts)-1] + strings.ToLower(filepath.Ext(t.Source))
	if err := vfs.WriteFile(d, name, f); err != nil {
		return errors.Wrapf(err, "Failed to copy texture %q", t.Source)
	}
	return nil
}
