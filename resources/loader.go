package resources

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/charmbracelet/log"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/utils"
	"github.com/mogaika/badger_converter/vfs"
)

type Kind string

const (
	KindModel      Kind = "model"
	KindMaterial   Kind = "material"
	KindEntity     Kind = "entity"
	KindAnimations Kind = "animations"
	KindTexture    Kind = "texture"
)

var Kinds = []Kind{KindModel, KindMaterial, KindEntity, KindAnimations}

type location struct {
	dir    []string
	suffix string
}

// search locations inside of each pack, in priority order
var locations = map[Kind][]location{
	KindModel:      {{[]string{"models", "entity"}, ".model.json"}},
	KindMaterial:   {{[]string{"materials", "meta_materials"}, ".json"}, {[]string{"materials"}, ".json"}},
	KindEntity:     {{[]string{"entity"}, ".entity.json"}},
	KindAnimations: {{[]string{"animations"}, ".animations.json"}},
}

const minSuggestionSimilarity = 0.5

// Loader resolves documents across ordered asset packs, earlier packs win.
// Results are memoized by name, one cache per kind. Not safe for concurrent use.
type Loader struct {
	cfg   *config.Config
	packs []*Pack

	models     map[string]*badger.Model
	materials  map[string]*badger.MetaMaterial
	entities   map[string]*badger.Entity
	animations map[string]*badger.AnimationSet
}

func NewLoader(cfg *config.Config, roots ...string) *Loader {
	l := &Loader{
		cfg:        cfg,
		packs:      make([]*Pack, len(roots)),
		models:     make(map[string]*badger.Model),
		materials:  make(map[string]*badger.MetaMaterial),
		entities:   make(map[string]*badger.Entity),
		animations: make(map[string]*badger.AnimationSet),
	}
	for i, root := range roots {
		l.packs[i] = NewPack(root)
	}
	return l
}

func (l *Loader) Packs() []*Pack { return l.packs }

func (l *Loader) Config() *config.Config { return l.cfg }

// find returns first pack containing the document and path parts of it
func (l *Loader) find(kind Kind, name string) (*Pack, []string, []string) {
	var searched []string
	for _, pack := range l.packs {
		for _, loc := range locations[kind] {
			parts := append(append([]string{}, loc.dir...), name+loc.suffix)
			if pack.Has(parts...) {
				return pack, parts, searched
			}
			searched = append(searched, filepath.Join(append([]string{pack.Path()}, parts...)...))
		}
	}
	return nil, nil, searched
}

func (l *Loader) read(kind Kind, name string) (*Pack, string, []byte, error) {
	pack, parts, searched := l.find(kind, name)
	if pack == nil {
		return nil, "", nil, &badger.AssetNotFoundError{
			Kind:       string(kind),
			Name:       name,
			Searched:   searched,
			Suggestion: l.suggest(kind, name),
		}
	}
	document := filepath.Join(append([]string{pack.Path()}, parts...)...)
	data, err := pack.Read(parts...)
	if err != nil {
		return nil, "", nil, errors.Wrapf(err, "Failed to read %q", document)
	}
	log.Debugf("Loading %s %q from %q", kind, name, document)
	return pack, document, data, nil
}

func (l *Loader) GetModel(name string) (*badger.Model, error) {
	return l.getModel(name, 0)
}

func (l *Loader) getModel(name string, depth int) (*badger.Model, error) {
	if m, ok := l.models[name]; ok {
		return m, nil
	}
	if depth > l.cfg.MaxInheritanceDepth {
		return nil, &badger.InheritanceDepthError{Kind: string(KindModel), Name: name, Depth: l.cfg.MaxInheritanceDepth}
	}

	_, document, data, err := l.read(KindModel, name)
	if err != nil {
		return nil, err
	}
	m, err := badger.ParseModel(document, data)
	if err != nil {
		return nil, err
	}

	for i := range m.Geometries {
		g := &m.Geometries[i]
		if g.BonesReference == "" {
			continue
		}
		parent, err := l.getModel(g.InheritedModel(), depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "Model %q inherits bones of %q", name, g.BonesReference)
		}
		if len(parent.Geometries) == 0 {
			return nil, &badger.SchemaError{
				Document: document,
				Field:    "minecraft:geometry.bones",
				Reason:   "inherited model " + g.BonesReference + " has no geometry",
			}
		}
		// cached models are shared, inheriting one must not alias its bones
		var bones []badger.Bone
		if err := copier.CopyWithOption(&bones, parent.Geometries[0].Bones, copier.Option{DeepCopy: true}); err != nil {
			return nil, errors.Wrapf(err, "Failed to copy inherited bones")
		}
		g.Bones = bones
	}

	l.models[name] = m
	utils.LogDump("Resolved model "+name, m)
	return m, nil
}

func (l *Loader) GetMaterial(name string) (*badger.MetaMaterial, error) {
	if m, ok := l.materials[name]; ok {
		return m, nil
	}

	pack, document, data, err := l.read(KindMaterial, name)
	if err != nil {
		return nil, err
	}
	m, err := badger.ParseMetaMaterial(document, data)
	if err != nil {
		return nil, err
	}

	for _, ref := range []*string{&m.Textures.Diffuse, &m.Textures.Coeff, &m.Textures.Emissive, &m.Textures.Normal} {
		if *ref == "" {
			continue
		}
		resolved, err := l.ResolveTexture(pack, *ref)
		if err != nil {
			return nil, errors.Wrapf(err, "Material %q", name)
		}
		*ref = resolved
	}

	l.materials[name] = m
	return m, nil
}

// ResolveTexture looks for texture reference in owner pack first, then in every pack in order.
// Every candidate is tried as is and with each configured extension.
func (l *Loader) ResolveTexture(owner *Pack, ref string) (string, error) {
	parts := strings.Split(filepath.ToSlash(ref), "/")

	candidates := make([]*Pack, 0, len(l.packs)+1)
	if owner != nil {
		candidates = append(candidates, owner)
	}
	candidates = append(candidates, l.packs...)

	var searched []string
	for _, pack := range candidates {
		for _, ext := range append([]string{""}, l.cfg.TextureExtensions...) {
			p := append([]string{}, parts...)
			p[len(p)-1] += ext
			if e, err := vfs.Lookup(pack.Directory(), p...); err == nil && !e.IsDirectory() {
				abs, err := filepath.Abs(e.(vfs.Located).Path())
				if err != nil {
					return "", errors.Wrapf(err, "Failed to get absolute path of texture %q", ref)
				}
				return abs, nil
			}
		}
		searched = append(searched, filepath.Join(pack.Path(), ref))
	}
	return "", &badger.AssetNotFoundError{Kind: string(KindTexture), Name: ref, Searched: searched}
}

func (l *Loader) GetEntity(name string) (*badger.Entity, error) {
	return l.getEntity(name, 0)
}

func (l *Loader) getEntity(name string, depth int) (*badger.Entity, error) {
	if e, ok := l.entities[name]; ok {
		return e, nil
	}
	if depth > l.cfg.MaxInheritanceDepth {
		return nil, &badger.InheritanceDepthError{Kind: string(KindEntity), Name: name, Depth: l.cfg.MaxInheritanceDepth}
	}

	_, document, data, err := l.read(KindEntity, name)
	if err != nil {
		return nil, err
	}
	e, err := badger.ParseEntity(document, data)
	if err != nil {
		return nil, err
	}

	// applied in declaration order, so first declared template wins
	for _, templateName := range e.TemplateNames() {
		parent, err := l.getEntity(templateName, depth+1)
		if err != nil {
			return nil, errors.Wrapf(err, "Entity %q template %q", name, templateName)
		}
		e.ApplyTemplate(parent)
	}

	l.entities[name] = e
	return e, nil
}

// GetAnimations returns ok=false without error when no pack has animations for name
func (l *Loader) GetAnimations(name string) (*badger.AnimationSet, bool, error) {
	if s, ok := l.animations[name]; ok {
		return s, true, nil
	}
	if pack, _, _ := l.find(KindAnimations, name); pack == nil {
		return nil, false, nil
	}
	_, document, data, err := l.read(KindAnimations, name)
	if err != nil {
		return nil, false, err
	}
	s, err := badger.ParseAnimationSet(document, data)
	if err != nil {
		return nil, false, err
	}
	l.animations[name] = s
	return s, true, nil
}

// List returns sorted unique asset names of kind available in any pack
func (l *Loader) List(kind Kind) ([]string, error) {
	seen := make(map[string]struct{})
	for _, pack := range l.packs {
		for _, loc := range locations[kind] {
			dir, err := vfs.LookupDirectory(pack.Directory(), loc.dir...)
			if err != nil {
				continue
			}
			names, err := dir.List()
			if err != nil {
				return nil, errors.Wrapf(err, "Failed to list %s of pack %q", kind, pack.Name)
			}
			for _, name := range names {
				if strings.HasSuffix(name, loc.suffix) {
					seen[strings.TrimSuffix(name, loc.suffix)] = struct{}{}
				}
			}
		}
	}
	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

func (l *Loader) suggest(kind Kind, name string) string {
	names, err := l.List(kind)
	if err != nil {
		return ""
	}
	best, bestSimilarity := "", minSuggestionSimilarity
	metric := metrics.NewLevenshtein()
	for _, candidate := range names {
		if similarity := strutil.Similarity(name, candidate, metric); similarity > bestSimilarity {
			best, bestSimilarity = candidate, similarity
		}
	}
	return best
}
