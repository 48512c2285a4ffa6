package gltfutils

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/charmbracelet/log"
	_ "github.com/ftrvxmtrx/tga"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"golang.org/x/image/draw"

	"github.com/mogaika/badger_converter/scene"
)

const extTextureWebP = "EXT_texture_webp"

type textureKey string

type exportedTexture struct {
	id uint32
	ok bool
}

func (ec *exportContext) texturePath(t *scene.Texture) (string, bool) {
	candidates := []string{t.FileName}
	if ec.opts.TextureDir != "" && t.RelativeFileName != "" {
		candidates = append(candidates, filepath.Join(ec.opts.TextureDir, t.RelativeFileName))
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, true
		}
	}
	return "", false
}

// texture embeds texture image once per file, false when the file can't be used
func (ec *exportContext) texture(t *scene.Texture) (uint32, bool) {
	path, found := ec.texturePath(t)
	if !found {
		log.Warnf("Texture %q file %q not found, skipping", t.Name, t.FileName)
		return 0, false
	}

	et := ec.GetCachedOr(textureKey(path), func() interface{} {
		id, err := ec.addTexture(path)
		if err != nil {
			log.Warnf("Texture %q skipped: %v", path, err)
			return exportedTexture{}
		}
		return exportedTexture{id: id, ok: true}
	}).(exportedTexture)
	return et.id, et.ok
}

func (ec *exportContext) addTexture(path string) (uint32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to read texture")
	}

	img, err := DecodeImage(data, path)
	if err != nil {
		return 0, err
	}
	img = Downscale(img, ec.opts.MaxTextureSize)

	var buf bytes.Buffer
	mime := "image/png"
	if ec.opts.WebP {
		mime = "image/webp"
		err = nativewebp.Encode(&buf, img, nil)
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to encode %s", mime)
	}

	doc := ec.Doc
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	imgId, err := modeler.WriteImage(doc, name, mime, &buf)
	if err != nil {
		return 0, errors.Wrapf(err, "Failed to write image")
	}
	// WriteImage leaves buffer length stale
	doc.Buffers[0].ByteLength = uint32(len(doc.Buffers[0].Data))

	if len(doc.Samplers) == 0 {
		doc.Samplers = append(doc.Samplers, &gltf.Sampler{
			MagFilter: gltf.MagNearest,
			MinFilter: gltf.MinNearest,
			WrapS:     gltf.WrapRepeat,
			WrapT:     gltf.WrapRepeat,
		})
	}
	texture := &gltf.Texture{Sampler: gltf.Index(0)}
	if ec.opts.WebP {
		texture.Extensions = gltf.Extensions{extTextureWebP: map[string]interface{}{"source": imgId}}
		addExtension(doc, extTextureWebP)
	} else {
		texture.Source = gltf.Index(imgId)
	}
	doc.Textures = append(doc.Textures, texture)
	log.Debug("Embedded texture", "file", path, "mime", mime, "size", img.Bounds().Size())
	return uint32(len(doc.Textures) - 1), nil
}

func addExtension(doc *gltf.Document, ext string) {
	for _, e := range doc.ExtensionsUsed {
		if e == ext {
			return
		}
	}
	doc.ExtensionsUsed = append(doc.ExtensionsUsed, ext)
	doc.ExtensionsRequired = append(doc.ExtensionsRequired, ext)
}

// DecodeImage sniffs png/jpeg by content, anything unrecognized with .tga name is decoded as tga
func DecodeImage(data []byte, name string) (image.Image, error) {
	kind, _ := filetype.Match(data)
	if kind == filetype.Unknown && !strings.EqualFold(filepath.Ext(name), ".tga") {
		return nil, errors.Errorf("Unknown image format of %q", name)
	}
	if kind != filetype.Unknown && !filetype.IsImage(data) {
		return nil, errors.Errorf("%q is %s, not an image", name, kind.MIME.Value)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode %q", name)
	}
	log.Debug("Decoded image", "file", name, "format", format)
	return img, nil
}

// Downscale fits image into maxSize square keeping aspect, maxSize <= 0 disables it
func Downscale(img image.Image, maxSize int) image.Image {
	rect := img.Bounds()
	w, h := rect.Dx(), rect.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Src, nil)
	return dst
}
