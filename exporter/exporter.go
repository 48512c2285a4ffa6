// Package exporter flattens a scene graph into badger assets: one model with
// a single geometry, meta materials, an animation set and texture references.
package exporter

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/scene"
	"github.com/mogaika/badger_converter/utils"
)

const (
	meshNodePrefix = "meshNode_"
	stackSuffix    = "_stack"
	textureRefDir  = "textures/entity/"
)

type Exporter struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Exporter {
	return &Exporter{cfg: cfg}
}

type exportContext struct {
	cfg   *config.Config
	scene *scene.Scene

	result    *Result
	materials map[string]*badger.MetaMaterial
	textures  map[string]struct{}
}

// Export converts s into assets named after name. Scene is only read.
func (e *Exporter) Export(s *scene.Scene, name string) (*Result, error) {
	ec := &exportContext{
		cfg:       e.cfg,
		scene:     s,
		result:    &Result{Name: name},
		materials: make(map[string]*badger.MetaMaterial),
		textures:  make(map[string]struct{}),
	}

	geometry := badger.Geometry{Identifier: badger.GeometryPrefix + name}

	log.Debug("Exporting skeleton", "scene", s.Name)
	geometry.Bones = ec.exportSkeleton()
	if len(geometry.Bones) == 0 {
		bone := badger.NewRootBone()
		bone.Name = e.cfg.RootBoneName
		geometry.Bones = append(geometry.Bones, bone)
	}
	if _, err := badger.NewSkeleton(geometry.Bones); err != nil {
		return nil, err
	}

	meshNodes := 0
	if err := s.Root.Walk(func(n *scene.Node) error {
		m := n.Mesh()
		if m == nil {
			return nil
		}
		meshNodes++
		bm, err := ec.exportMesh(n, m, len(geometry.Meshes))
		if err != nil {
			return err
		}
		geometry.Meshes = append(geometry.Meshes, bm)
		return nil
	}); err != nil {
		return nil, err
	}
	log.Infof("Exported %d bones and %d meshes", len(geometry.Bones), meshNodes)

	ec.result.Model = &badger.Model{
		FormatVersion: e.cfg.ModelFormatVersion,
		Geometries:    []badger.Geometry{geometry},
	}

	animations, err := ec.exportAnimations()
	if err != nil {
		return nil, err
	}
	ec.result.Animations = animations

	return ec.result, nil
}

func vec3(v mgl64.Vec3) badger.Vector3 { return badger.Vector3{v[0], v[1], v[2]} }

func parentJoint(n *scene.Node) *scene.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.IsJoint() {
			return p
		}
	}
	return nil
}

// exportSkeleton emits joints in pre-order, so parents always precede children
// and siblings keep their declaration order
func (ec *exportContext) exportSkeleton() []badger.Bone {
	var bones []badger.Bone
	ec.scene.Root.Walk(func(n *scene.Node) error {
		if !n.IsJoint() {
			return nil
		}
		bone := badger.Bone{
			Name:             n.Name,
			Pivot:            vec3(n.Translation),
			Scale:            vec3(n.Scaling),
			BindPoseRotation: vec3(n.Rotation),
		}
		if p := parentJoint(n); p != nil {
			bone.Parent = p.Name
		}
		for _, c := range n.Children {
			if c.IsJoint() || c.Mesh() != nil {
				continue
			}
			if bone.Locators == nil {
				bone.Locators = make(map[string]badger.BoneLocator)
			}
			bone.Locators[c.Name] = badger.BoneLocator{
				Offset:       vec3(c.Translation),
				Rotation:     vec3(c.Rotation),
				DiscardScale: c.InheritType == scene.InheritRrs,
			}
		}
		log.Debug("Exported bone", "name", bone.Name, "parent", bone.Parent)
		bones = append(bones, bone)
		return nil
	})
	return bones
}

// meshName recovers name from "meshNode_<n>_<name>", other node names are kept as is
func meshName(n *scene.Node) string {
	rest, ok := strings.CutPrefix(n.Name, meshNodePrefix)
	if !ok {
		return n.Name
	}
	digits, name, _ := strings.Cut(rest, "_")
	if _, err := strconv.Atoi(digits); err != nil {
		return n.Name
	}
	return name
}

func (ec *exportContext) exportMesh(n *scene.Node, m *scene.Mesh, index int) (badger.Mesh, error) {
	bm := badger.Mesh{Name: meshName(n)}
	label := n.Name

	if !m.IsTriangulated() {
		return bm, &badger.UntriangulatedMeshError{
			Mesh:            label,
			Polygons:        m.PolygonCount(),
			PolygonVertices: len(m.PolygonVertices),
		}
	}
	if err := m.Validate(); err != nil {
		return bm, err
	}

	log.Debug("Exporting positions", "mesh", label, "count", len(m.ControlPoints))
	bm.Positions = make([]badger.Vector3, len(m.ControlPoints))
	for i, p := range m.ControlPoints {
		bm.Positions[i] = vec3(p)
	}
	bm.Triangles = append([]int32(nil), m.PolygonVertices...)

	log.Debug("Exporting normals", "mesh", label, "sets", len(m.Normals))
	for _, e := range m.Normals {
		values, err := e.ControlPointValues(m)
		if err != nil {
			return bm, errors.Wrapf(err, "Mesh %q normals", label)
		}
		set := make([]badger.Vector4, len(values))
		for i, v := range values {
			set[i] = badger.Vector4(v)
		}
		bm.Normals = append(bm.Normals, set)
	}

	log.Debug("Exporting UVs", "mesh", label, "sets", len(m.UVs))
	for _, e := range m.UVs {
		values, err := e.ControlPointValues(m)
		if err != nil {
			return bm, errors.Wrapf(err, "Mesh %q uvs", label)
		}
		set := make([]badger.Vector2, len(values))
		for i, v := range values {
			set[i] = badger.FlipV(badger.Vector2(v))
		}
		bm.UVs = append(bm.UVs, set)
	}

	log.Debug("Exporting vertex colors", "mesh", label, "sets", len(m.Colors))
	for _, e := range m.Colors {
		values, err := e.ControlPointValues(m)
		if err != nil {
			return bm, errors.Wrapf(err, "Mesh %q colors", label)
		}
		set := make([]badger.Vector4, len(values))
		for i, v := range values {
			set[i] = badger.Vector4(v)
		}
		bm.Colors = append(bm.Colors, set)
	}

	if err := ec.exportInfluences(&bm, m, label); err != nil {
		return bm, err
	}

	log.Debug("Exporting material", "mesh", label)
	material, err := ec.meshMaterial(n, m, label)
	if err != nil {
		return bm, err
	}
	if bm.Material, err = ec.exportMaterial(material); err != nil {
		return bm, err
	}

	if err := bm.Validate(ec.result.Name+".model.json", fmt.Sprintf("minecraft:geometry[0].meshes[%d]", index)); err != nil {
		return bm, err
	}
	return bm, nil
}

// exportInfluences collects (joint, weight) contributions of every cluster per control point.
// Unskinned meshes still get one full weight per control point.
func (ec *exportContext) exportInfluences(bm *badger.Mesh, m *scene.Mesh, label string) error {
	clusters := 0
	for _, skin := range m.Skins {
		clusters += len(skin.Clusters)
	}
	if clusters == 0 {
		bm.Weights = make([][]float64, len(m.ControlPoints))
		for i := range bm.Weights {
			bm.Weights[i] = []float64{1}
		}
		return nil
	}

	log.Debug("Exporting weights", "mesh", label, "clusters", clusters)
	bm.Indices = make([][]string, len(m.ControlPoints))
	bm.Weights = make([][]float64, len(m.ControlPoints))
	for i := range bm.Indices {
		bm.Indices[i] = []string{}
		bm.Weights[i] = []float64{}
	}
	for _, skin := range m.Skins {
		for _, c := range skin.Clusters {
			if c.Link == nil {
				return errors.Errorf("Mesh %q: cluster %q has no linked joint", label, c.Name)
			}
			if len(c.Indices) != len(c.Weights) {
				return errors.Errorf("Mesh %q: cluster %q has %d indices and %d weights",
					label, c.Name, len(c.Indices), len(c.Weights))
			}
			for i, cp := range c.Indices {
				if cp < 0 || int(cp) >= len(m.ControlPoints) {
					return errors.Errorf("Mesh %q: cluster %q references control point %d out of range",
						label, c.Name, cp)
				}
				bm.Indices[cp] = append(bm.Indices[cp], c.Link.Name)
				bm.Weights[cp] = append(bm.Weights[cp], c.Weights[i])
			}
		}
	}
	return nil
}

func (ec *exportContext) meshMaterial(n *scene.Node, m *scene.Mesh, label string) (*scene.Material, error) {
	if len(n.Materials) == 0 {
		return nil, &badger.MissingMaterialError{Mesh: label}
	}
	if len(n.Materials) > 1 {
		log.Warnf("Mesh %q has %d materials, using first", label, len(n.Materials))
	}
	index := 0
	if m.MaterialLayer != nil && len(m.MaterialLayer.Direct) != 0 {
		i, err := m.MaterialLayer.At(0)
		if err != nil {
			return nil, errors.Wrapf(err, "Mesh %q material layer", label)
		}
		index = int(i)
	}
	if index < 0 || index >= len(n.Materials) {
		return nil, &badger.MissingMaterialError{Mesh: label}
	}
	return n.Materials[index], nil
}

// exportMaterial registers meta material of m once per name and returns the name
func (ec *exportContext) exportMaterial(m *scene.Material) (string, error) {
	name, baseName := badger.SplitMaterialName(m.Name, ec.cfg.MaterialDelimiter)
	if name == "" {
		return "", &badger.SchemaError{Document: m.Name, Field: "name", Reason: "material name is empty"}
	}
	if existing, ok := ec.materials[name]; ok {
		if existing.BaseName != baseName {
			log.Warnf("Material %q used with base names %q and %q, keeping first", name, existing.BaseName, baseName)
		}
		return name, nil
	}

	mm := &badger.MetaMaterial{
		FormatVersion: ec.cfg.MaterialFormatVersion,
		Name:          name,
		BaseName:      baseName,
		Culling:       ec.cfg.Culling,
	}
	if p := m.Property(scene.PropertyBadgerMaterial); p != nil {
		mm.Material = p.String()
	}
	if p := m.Property(scene.PropertyBadgerCulling); p != nil && p.String() != "" {
		mm.Culling = p.String()
	}

	slots := []struct {
		dst   *string
		paths []string
	}{
		{&mm.Textures.Diffuse, []string{scene.PBSColorMap, scene.StandardDiffuseColor}},
		{&mm.Textures.Normal, []string{scene.PBSNormalMap, scene.StandardNormalMap}},
		{&mm.Textures.Coeff, []string{scene.PBSMetallicMap, scene.PBSRoughnessMap}},
		{&mm.Textures.Emissive, []string{scene.PBSEmissiveMap, scene.StandardEmissiveColor}},
	}
	for _, slot := range slots {
		for _, path := range slot.paths {
			if t := m.TextureOf(path); t != nil {
				*slot.dst = ec.exportTexture(t)
				break
			}
		}
	}

	log.Debug("Exported material", "name", name, "base", baseName)
	ec.materials[name] = mm
	ec.result.Materials = append(ec.result.Materials, mm)
	return name, nil
}

func textureSource(t *scene.Texture) string {
	if t.FileName != "" {
		return t.FileName
	}
	return t.RelativeFileName
}

func (ec *exportContext) exportTexture(t *scene.Texture) string {
	source := textureSource(t)
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(source, "\\", "/")))
	if source == "" {
		base = t.Name
	}
	ref := textureRefDir + strings.TrimSuffix(base, filepath.Ext(base))
	if _, ok := ec.textures[ref]; !ok {
		ec.textures[ref] = struct{}{}
		ec.result.Textures = append(ec.result.Textures, TextureFile{Ref: ref, Source: source})
	}
	return ref
}

func (ec *exportContext) exportAnimations() (*badger.AnimationSet, error) {
	if len(ec.scene.Stacks) == 0 {
		return nil, nil
	}
	set := &badger.AnimationSet{
		FormatVersion: ec.cfg.AnimationFormatVersion,
		Animations:    make(map[string]badger.Animation, len(ec.scene.Stacks)),
	}
	for _, st := range ec.scene.Stacks {
		name := badger.AnimationPrefix + strings.TrimSuffix(st.Name, stackSuffix)
		log.Debug("Exporting animation", "name", name, "layers", len(st.Layers))
		anim := badger.Animation{
			AnimTimeUpdate: ec.cfg.AnimTimeUpdate,
			BlendWeight:    ec.cfg.BlendWeight,
			Bones:          make(map[string]badger.AnimationBone),
		}
		for _, layer := range st.Layers {
			for _, cn := range layer.CurveNodes {
				if err := ec.exportCurveNode(name, &anim, cn); err != nil {
					return nil, err
				}
			}
		}
		set.Animations[name] = anim
	}
	return set, nil
}

func (ec *exportContext) exportCurveNode(animation string, anim *badger.Animation, cn *scene.AnimCurveNode) error {
	node := cn.Name
	if cn.Target != nil {
		node = cn.Target.Name
	}
	fail := func(format string, a ...interface{}) error {
		return &badger.UnsupportedCurveError{
			Animation: animation,
			Node:      node,
			Property:  cn.Property,
			Reason:    fmt.Sprintf(format, a...),
		}
	}

	if cn.Target == nil {
		return fail("curve node %q drives no node", cn.Name)
	}
	if len(cn.ExtraTargets) != 0 {
		return fail("curve node %q drives %d properties, extra %v", cn.Name, 1+len(cn.ExtraTargets), cn.ExtraTargets)
	}
	if !cn.Target.IsJoint() {
		return fail("target is not a skeleton joint")
	}
	if len(cn.Unsupported) != 0 {
		return fail("unexpected channels %v", cn.Unsupported)
	}

	var bind mgl64.Vec3
	switch cn.Property {
	case scene.PropertyTranslation:
		bind = cn.Target.Translation
	case scene.PropertyRotation:
		bind = cn.Target.Rotation
	default:
		return fail("only translation and rotation can be animated")
	}

	for i, c := range cn.Channels {
		if c == nil {
			return fail("missing channel %s", scene.Channels[i])
		}
	}
	x, y, z := cn.Channels[0], cn.Channels[1], cn.Channels[2]
	if len(x.Keys) != len(y.Keys) || len(x.Keys) != len(z.Keys) {
		return fail("channels have %d, %d and %d keys", len(x.Keys), len(y.Keys), len(z.Keys))
	}

	keys := make(badger.Keyframes, len(x.Keys))
	for k := range x.Keys {
		t := x.Keys[k].Time
		if y.Keys[k].Time != t || z.Keys[k].Time != t {
			return fail("key %d has different times per channel", k)
		}
		rounded := utils.Float32Round(t)
		if prev, ok := keys[rounded]; ok {
			log.Warnf("Animation %q: %s key %d at %vs collides with earlier key, keeping later %v over %v",
				animation, node, k, t, x.Keys[k].Value, prev.Post)
		}
		keys[rounded] = badger.Keyframe{
			LerpMode: ec.cfg.LerpMode,
			Post: badger.Vector3{
				utils.Float32Round(x.Keys[k].Value - bind[0]),
				utils.Float32Round(y.Keys[k].Value - bind[1]),
				utils.Float32Round(z.Keys[k].Value - bind[2]),
			},
		}
	}

	bone := anim.Bones[cn.Target.Name]
	track := &bone.Position
	if cn.Property == scene.PropertyRotation {
		track = &bone.Rotation
	}
	if *track == nil {
		*track = keys
	} else {
		for t, key := range keys {
			(*track)[t] = key
		}
	}
	anim.Bones[cn.Target.Name] = bone
	return nil
}
