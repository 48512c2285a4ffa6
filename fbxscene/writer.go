package fbxscene

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/scene"
	"github.com/mogaika/badger_converter/utils/fbxbuilder"
)

// key attribute flags of AnimationCurve
const (
	keyInterpolationConstant = 0x00000002
	keyInterpolationLinear   = 0x00000004
	keyInterpolationCubic    = 0x00000008
)

type writer struct {
	b *fbxbuilder.FBXBuilder
	s *scene.Scene
}

func (w *writer) id(object interface{}) int64 {
	return w.b.GetCachedOr(object, func() interface{} {
		return w.b.GenerateId()
	}).(int64)
}

// Build converts scene into FBX builder, so callers can attach side files before writing
func Build(s *scene.Scene, filename string) (*fbxbuilder.FBXBuilder, error) {
	w := &writer{
		b: fbxbuilder.NewFBXBuilder(filename),
		s: s,
	}

	for _, t := range s.Textures {
		w.writeTexture(t)
	}
	for _, impl := range s.Implementations {
		w.writeImplementation(impl)
	}
	for _, m := range s.Materials {
		if err := w.writeMaterial(m); err != nil {
			return nil, err
		}
	}

	if err := s.Root.Walk(func(n *scene.Node) error {
		if n == s.Root {
			return nil
		}
		parentId := int64(0)
		if n.Parent != nil && n.Parent != s.Root {
			parentId = w.id(n.Parent)
		}
		return w.writeNode(n, parentId)
	}); err != nil {
		return nil, err
	}
	w.writeBindPose()

	for _, st := range s.Stacks {
		w.writeStack(st)
	}
	if len(s.Stacks) != 0 {
		w.b.SetActiveAnimStack(s.Stacks[0].Name)
	}
	return w.b, nil
}

func Write(s *scene.Scene, out io.Writer) error {
	b, err := Build(s, s.Name+".fbx")
	if err != nil {
		return &badger.NativeIOError{Op: "export", Err: err}
	}
	if err := b.Write(out); err != nil {
		return &badger.NativeIOError{Op: "write", Err: err}
	}
	return nil
}

// WriteZip bundles fbx with texture files it references, placed under textures/.
// Textures missing on disk are skipped with a warning.
func WriteZip(s *scene.Scene, out io.Writer) error {
	b, err := Build(s, s.Name+".fbx")
	if err != nil {
		return &badger.NativeIOError{Op: "export", Err: err}
	}
	for _, t := range s.Textures {
		if t.FileName == "" {
			continue
		}
		data, err := os.ReadFile(t.FileName)
		if err != nil {
			log.Warnf("Texture %q is not bundled: %v", t.Name, err)
			continue
		}
		b.AddExportFile(path.Join("textures", filepath.Base(t.FileName)), data)
	}
	if err := b.WriteZip(out, s.Name+".fbx"); err != nil {
		return &badger.NativeIOError{Op: "write", Err: err}
	}
	return nil
}

func WriteFile(s *scene.Scene, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return &badger.NativeIOError{Path: path, Op: "create", Err: err}
	}
	defer f.Close()

	if err := Write(s, f); err != nil {
		if nerr, ok := err.(*badger.NativeIOError); ok {
			nerr.Path = path
		}
		return err
	}
	if err := f.Close(); err != nil {
		return &badger.NativeIOError{Path: path, Op: "close", Err: err}
	}
	return nil
}

func modelClass(n *scene.Node) string {
	switch a := n.Attribute.(type) {
	case *scene.Skeleton:
		return a.Type.String()
	case *scene.Mesh:
		return "Mesh"
	}
	return "Null"
}

func (w *writer) writeNode(n *scene.Node, parentId int64) error {
	id := w.id(n)
	t, r, s := n.Translation, n.Rotation, n.Scaling

	model := bfbx73.Model(id, fbxbuilder.ObjectName(n.Name, "Model"), modelClass(n)).AddNodes(
		bfbx73.Version(232),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("RotationActive", "bool", "", "", fbxbuilder.Bool(n.RotationActive)),
			bfbx73.P("InheritType", "enum", "", "", int32(n.InheritType)),
			bfbx73.P("DefaultAttributeIndex", "int", "Integer", "", int32(0)),
			bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", t[0], t[1], t[2]),
			bfbx73.P("Lcl Rotation", "Lcl Rotation", "", "A", r[0], r[1], r[2]),
			bfbx73.P("Lcl Scaling", "Lcl Scaling", "", "A", s[0], s[1], s[2]),
		),
		bfbx73.Shading(n.Shading == scene.ShadingTexture),
		bfbx73.Culling("CullingOff"),
	)
	w.b.AddObjects(model)
	w.b.Connect(id, parentId)

	switch a := n.Attribute.(type) {
	case *scene.Skeleton:
		attrId := w.id(a)
		w.b.AddObjects(bfbx73.NodeAttribute(attrId, fbxbuilder.ObjectName(a.Name, "NodeAttribute"), a.Type.String()).AddNodes(
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Size", "double", "Number", "", float64(1)),
			),
			bfbx73.TypeFlags("Skeleton"),
		))
		w.b.Connect(attrId, id)
	case *scene.Null:
		attrId := w.id(a)
		w.b.AddObjects(bfbx73.NodeAttribute(attrId, fbxbuilder.ObjectName(a.Name, "NodeAttribute"), "Null").AddNodes(
			bfbx73.TypeFlags("Null"),
		))
		w.b.Connect(attrId, id)
	case *scene.Mesh:
		if err := w.writeMesh(a, id); err != nil {
			return err
		}
	case nil:
	default:
		return errors.Errorf("Node %q: unsupported attribute %T", n.Name, a)
	}

	for _, m := range n.Materials {
		w.b.Connect(w.id(m), id)
	}
	return nil
}

func flattenVec2(values []mgl64.Vec2) []float64 {
	result := make([]float64, 0, len(values)*2)
	for _, v := range values {
		result = append(result, v[0], v[1])
	}
	return result
}

func flattenVec3(values []mgl64.Vec3) []float64 {
	result := make([]float64, 0, len(values)*3)
	for _, v := range values {
		result = append(result, v[0], v[1], v[2])
	}
	return result
}

// xyz part of normals, w goes to separate NormalsW array
func flattenNormals(values []mgl64.Vec4) (xyz, w []float64) {
	xyz = make([]float64, 0, len(values)*3)
	w = make([]float64, 0, len(values))
	for _, v := range values {
		xyz = append(xyz, v[0], v[1], v[2])
		w = append(w, v[3])
	}
	return xyz, w
}

func flattenVec4(values []mgl64.Vec4) []float64 {
	result := make([]float64, 0, len(values)*4)
	for _, v := range values {
		result = append(result, v[0], v[1], v[2], v[3])
	}
	return result
}

// material layers always store resolved indices, the reference mode is ignored by consumers
func materialIndices(e *scene.LayerElement[int32]) ([]int32, error) {
	if e.Reference == scene.Direct {
		return e.Direct, nil
	}
	result := make([]int32, len(e.Index))
	for i := range e.Index {
		v, err := e.At(i)
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

type layerSet struct {
	layers []*fbx.Node
}

func (ls *layerSet) add(index int, elementType string) {
	for len(ls.layers) <= index {
		ls.layers = append(ls.layers, fbxbuilder.Node("Layer", int32(len(ls.layers))).AddNodes(
			bfbx73.Version(100),
		))
	}
	ls.layers[index].AddNode(
		bfbx73.LayerElement().AddNodes(
			bfbx73.Type(elementType),
			fbxbuilder.Node("TypedIndex", int32(index)),
		),
	)
}

func (w *writer) writeMesh(m *scene.Mesh, modelId int64) error {
	if err := m.Validate(); err != nil {
		return err
	}

	indexes := make([]int32, 0, len(m.PolygonVertices))
	pv := 0
	for _, size := range m.PolygonSizes {
		for j := 0; j < size; j++ {
			idx := m.PolygonVertices[pv+j]
			if j == size-1 {
				// last vertex of polygon is stored negated
				idx = -idx - 1
			}
			indexes = append(indexes, idx)
		}
		pv += size
	}

	geometryId := w.id(m)
	geometry := bfbx73.Geometry(geometryId, fbxbuilder.ObjectName(m.Name, "Geometry"), "Mesh").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
		),
		bfbx73.GeometryVersion(124),
		bfbx73.Vertices(flattenVec3(m.ControlPoints)),
		bfbx73.PolygonVertexIndex(indexes),
	)
	layers := &layerSet{}

	for i, e := range m.Normals {
		xyz, w4 := flattenNormals(e.Direct)
		element := fbxbuilder.Node("LayerElementNormal", int32(i)).AddNodes(
			bfbx73.Version(102),
			bfbx73.Name(e.Name),
			bfbx73.MappingInformationType(e.Mapping.String()),
			bfbx73.ReferenceInformationType(e.Reference.String()),
			bfbx73.Normals(xyz),
			fbxbuilder.Node("NormalsW", w4),
		)
		if e.Reference == scene.IndexToDirect {
			element.AddNode(fbxbuilder.Node("NormalsIndex", e.Index))
		}
		geometry.AddNode(element)
		layers.add(i, "LayerElementNormal")
	}

	for i, e := range m.UVs {
		element := fbxbuilder.Node("LayerElementUV", int32(i)).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(e.Name),
			bfbx73.MappingInformationType(e.Mapping.String()),
			bfbx73.ReferenceInformationType(e.Reference.String()),
			bfbx73.UV(flattenVec2(e.Direct)),
		)
		if e.Reference == scene.IndexToDirect {
			element.AddNode(bfbx73.UVIndex(e.Index))
		}
		geometry.AddNode(element)
		layers.add(i, "LayerElementUV")
	}

	for i, e := range m.Colors {
		element := fbxbuilder.Node("LayerElementColor", int32(i)).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(e.Name),
			bfbx73.MappingInformationType(e.Mapping.String()),
			bfbx73.ReferenceInformationType(e.Reference.String()),
			bfbx73.Colors(flattenVec4(e.Direct)),
		)
		if e.Reference == scene.IndexToDirect {
			element.AddNode(fbxbuilder.Node("ColorIndex", e.Index))
		}
		geometry.AddNode(element)
		layers.add(i, "LayerElementColor")
	}

	if e := m.MaterialLayer; e != nil {
		materials, err := materialIndices(e)
		if err != nil {
			return err
		}
		geometry.AddNode(bfbx73.LayerElementMaterial(0).AddNodes(
			bfbx73.Version(101),
			bfbx73.Name(e.Name),
			bfbx73.MappingInformationType(e.Mapping.String()),
			bfbx73.ReferenceInformationType("IndexToDirect"),
			bfbx73.Materials(materials),
		))
		layers.add(0, "LayerElementMaterial")
	}

	geometry.AddNodes(layers.layers...)
	w.b.AddObjects(geometry)
	w.b.Connect(geometryId, modelId)

	for _, skin := range m.Skins {
		if err := w.writeSkin(skin, geometryId); err != nil {
			return errors.Wrapf(err, "Mesh %q", m.Name)
		}
	}
	return nil
}

func (w *writer) writeSkin(skin *scene.Skin, geometryId int64) error {
	skinId := w.id(skin)
	w.b.AddObjects(fbxbuilder.Node("Deformer", skinId, fbxbuilder.ObjectName(skin.Name, "Deformer"), "Skin").AddNodes(
		bfbx73.Version(101),
		fbxbuilder.Node("Link_DeformAcuracy", float64(50)),
	))
	w.b.Connect(skinId, geometryId)

	for _, c := range skin.Clusters {
		if c.Link == nil {
			return errors.Errorf("Cluster %q has no link", c.Name)
		}
		clusterId := w.id(c)
		w.b.AddObjects(fbxbuilder.Node("Deformer", clusterId, fbxbuilder.ObjectName(c.Name, "SubDeformer"), "Cluster").AddNodes(
			bfbx73.Version(100),
			fbxbuilder.Node("UserData", "", ""),
			fbxbuilder.Node("Mode", c.LinkMode.String()),
			fbxbuilder.Node("Indexes", c.Indices),
			fbxbuilder.Node("Weights", c.Weights),
			fbxbuilder.Node("Transform", c.Transform[:]),
			fbxbuilder.Node("TransformLink", c.TransformLink[:]),
		))
		w.b.Connect(clusterId, skinId)
		w.b.Connect(w.id(c.Link), clusterId)
	}
	return nil
}

// bind pose lists global transforms of skinned meshes and their joints
func (w *writer) writeBindPose() {
	var nodes []*scene.Node
	seen := make(map[*scene.Node]bool)
	add := func(n *scene.Node) {
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	for _, n := range w.s.Nodes() {
		m := n.Mesh()
		if m == nil || len(m.Skins) == 0 {
			continue
		}
		add(n)
		for _, skin := range m.Skins {
			for _, c := range skin.Clusters {
				add(c.Link)
			}
		}
	}
	if len(nodes) == 0 {
		return
	}

	pose := fbxbuilder.Node("Pose", w.b.GenerateId(), fbxbuilder.ObjectName("BindPose", "Pose"), "BindPose").AddNodes(
		fbxbuilder.Node("Type", "BindPose"),
		bfbx73.Version(100),
		fbxbuilder.Node("NbPoseNodes", int32(len(nodes))),
	)
	for _, n := range nodes {
		m := scene.EvaluateGlobalTransform(n)
		pose.AddNode(fbxbuilder.Node("PoseNode").AddNodes(
			fbxbuilder.Node("Node", w.id(n)),
			fbxbuilder.Node("Matrix", m[:]),
		))
	}
	w.b.AddObjects(pose)
}

func propertyRecord(p *scene.Property) *fbx.Node {
	name := p.HierarchicalName()
	switch p.Type {
	case scene.PropertyBool:
		return fbxbuilder.Node("P", name, "bool", "", "A+U", fbxbuilder.Bool(p.Bool()))
	case scene.PropertyInt:
		return fbxbuilder.Node("P", name, "int", "Integer", "A+U", int32(p.Int()))
	case scene.PropertyFloat:
		return fbxbuilder.Node("P", name, "double", "Number", "A+U", p.Float())
	case scene.PropertyFloat2:
		v := p.Vec2()
		return fbxbuilder.Node("P", name, "Vector2D", "Vector2", "A+U", v[0], v[1])
	case scene.PropertyFloat3:
		v := p.Vec3()
		return fbxbuilder.Node("P", name, "Vector3D", "Vector", "A+U", v[0], v[1], v[2])
	case scene.PropertyColor:
		v := p.Vec3()
		return fbxbuilder.Node("P", name, "ColorRGB", "Color", "A+U", v[0], v[1], v[2])
	case scene.PropertyString:
		return fbxbuilder.Node("P", name, "KString", "", "U", p.String())
	}
	return fbxbuilder.Node("P", name, "Compound", "", "")
}

func (w *writer) writeMaterial(m *scene.Material) error {
	id := w.id(m)
	props := bfbx73.Properties70()
	for _, p := range m.Properties.Descendants() {
		props.AddNode(propertyRecord(p))
	}
	w.b.AddObjects(bfbx73.Material(id, fbxbuilder.ObjectName(m.Name, "Material"), "").AddNodes(
		bfbx73.Version(102),
		bfbx73.ShadingModel(m.ShadingModel),
		bfbx73.MultiLayer(0),
		props,
	))

	for _, p := range m.Properties.Descendants() {
		for _, t := range p.Textures {
			if w.b.GetCached(t) == nil {
				return errors.Errorf("Material %q property %q: texture %q is not part of the scene", m.Name, p.HierarchicalName(), t.Name)
			}
			w.b.ConnectProperty(w.id(t), id, p.HierarchicalName())
		}
	}
	if m.Implementation != nil {
		if w.b.GetCached(m.Implementation) == nil {
			return errors.Errorf("Material %q: implementation %q is not part of the scene", m.Name, m.Implementation.Name)
		}
		w.b.Connect(w.id(m.Implementation), id)
	}
	return nil
}

func (w *writer) writeTexture(t *scene.Texture) {
	id := w.id(t)
	videoId := w.b.GenerateId()

	w.b.AddObjects(
		fbxbuilder.Node("Video", videoId, fbxbuilder.ObjectName(t.Name, "Video"), "Clip").AddNodes(
			fbxbuilder.Node("Type", "Clip"),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Path", "KString", "XRefUrl", "", t.FileName),
			),
			fbxbuilder.Node("UseMipMap", int32(0)),
			fbxbuilder.Node("Filename", t.FileName),
			fbxbuilder.Node("RelativeFilename", t.RelativeFileName),
		),
		fbxbuilder.Node("Texture", id, fbxbuilder.ObjectName(t.Name, "Texture"), "").AddNodes(
			fbxbuilder.Node("Type", "TextureVideoClip"),
			bfbx73.Version(202),
			fbxbuilder.Node("TextureName", fbxbuilder.ObjectName(t.Name, "Texture")),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("UVSet", "KString", "", "", t.UVSet),
				bfbx73.P("UseMaterial", "bool", "", "", int32(1)),
			),
			fbxbuilder.Node("Media", fbxbuilder.ObjectName(t.Name, "Video")),
			fbxbuilder.Node("FileName", t.FileName),
			fbxbuilder.Node("RelativeFilename", t.RelativeFileName),
			fbxbuilder.Node("ModelUVTranslation", float64(0), float64(0)),
			fbxbuilder.Node("ModelUVScaling", float64(1), float64(1)),
			fbxbuilder.Node("Texture_Alpha_Source", "None"),
		),
	)
	w.b.Connect(videoId, id)
}

func (w *writer) writeImplementation(impl *scene.Implementation) {
	id := w.id(impl)
	w.b.AddObjects(fbxbuilder.Node("Implementation", id, fbxbuilder.ObjectName(impl.Name, "Implementation"), "").AddNodes(
		bfbx73.Version(100),
		bfbx73.Properties70().AddNodes(
			bfbx73.P("ShaderLanguage", "KString", "", "", impl.Language),
			bfbx73.P("ShaderLanguageVersion", "KString", "", "", impl.LanguageVersion),
			bfbx73.P("RenderAPI", "KString", "", "", impl.RenderAPI),
			bfbx73.P("RenderAPIVersion", "KString", "", "", impl.RenderAPIVersion),
			bfbx73.P("RootBindingName", "KString", "", "", impl.RootBindingName),
			fbxbuilder.Node("P", "ShaderGraph", "Blob", "", "", impl.ShaderGraph),
		),
	))

	if table := impl.Table; table != nil {
		tableId := w.id(table)
		node := fbxbuilder.Node("BindingTable", tableId, fbxbuilder.ObjectName(table.Name, "BindingTable"), "").AddNodes(
			bfbx73.Version(100),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("TargetName", "KString", "", "", table.TargetName),
				bfbx73.P("TargetType", "KString", "", "", table.TargetType),
			),
		)
		for _, e := range table.Entries {
			node.AddNode(fbxbuilder.Node("Entry", e.Source, e.SourceType, e.Destination, e.DestinationType))
		}
		w.b.AddObjects(node)
		w.b.Connect(tableId, id)
	}
}

func (w *writer) writeStack(st *scene.AnimStack) {
	id := w.id(st)
	start, stop := st.TimeSpan()
	w.b.AddObjects(fbxbuilder.Node("AnimationStack", id, fbxbuilder.ObjectName(st.Name, "AnimStack"), "").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("LocalStart", "KTime", "Time", "", scene.SecondsToTime(start)),
			bfbx73.P("LocalStop", "KTime", "Time", "", scene.SecondsToTime(stop)),
			bfbx73.P("ReferenceStart", "KTime", "Time", "", scene.SecondsToTime(start)),
			bfbx73.P("ReferenceStop", "KTime", "Time", "", scene.SecondsToTime(stop)),
		),
	))

	for _, l := range st.Layers {
		layerId := w.id(l)
		w.b.AddObjects(fbxbuilder.Node("AnimationLayer", layerId, fbxbuilder.ObjectName(l.Name, "AnimLayer"), "").AddNodes(
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Weight", "Number", "", "A", l.Weight),
				bfbx73.P("BlendMode", "enum", "", "", int32(l.BlendMode)),
			),
		))
		w.b.Connect(layerId, id)

		for _, cn := range l.CurveNodes {
			w.writeCurveNode(cn, layerId)
		}
	}
}

func (w *writer) writeCurveNode(cn *scene.AnimCurveNode, layerId int64) {
	id := w.id(cn)
	props := bfbx73.Properties70()
	for i, channel := range scene.Channels {
		props.AddNode(bfbx73.P(channel, "Number", "", "A", cn.Default[i]))
	}
	w.b.AddObjects(fbxbuilder.Node("AnimationCurveNode", id, fbxbuilder.ObjectName(cn.Name, "AnimCurveNode"), "").AddNodes(props))
	w.b.Connect(id, layerId)
	if cn.Target != nil {
		w.b.ConnectProperty(id, w.id(cn.Target), cn.Property)
	}

	for i, c := range cn.Channels {
		if c == nil {
			continue
		}
		curveId := w.id(c)
		times := make([]int64, len(c.Keys))
		values := make([]float32, len(c.Keys))
		flags := make([]int32, len(c.Keys))
		data := make([]float32, len(c.Keys)*4)
		refs := make([]int32, len(c.Keys))
		for k, key := range c.Keys {
			times[k] = scene.SecondsToTime(key.Time)
			values[k] = float32(key.Value)
			refs[k] = 1
			switch key.Interpolation {
			case scene.InterpolationConstant:
				flags[k] = keyInterpolationConstant
			case scene.InterpolationCubic:
				flags[k] = keyInterpolationCubic
			default:
				flags[k] = keyInterpolationLinear
			}
		}
		w.b.AddObjects(fbxbuilder.Node("AnimationCurve", curveId, fbxbuilder.ObjectName(c.Name, "AnimCurve"), "").AddNodes(
			fbxbuilder.Node("Default", cn.Default[i]),
			fbxbuilder.Node("KeyVer", int32(4009)),
			fbxbuilder.Node("KeyTime", times),
			fbxbuilder.Node("KeyValueFloat", values),
			fbxbuilder.Node("KeyAttrFlags", flags),
			fbxbuilder.Node("KeyAttrDataFloat", data),
			fbxbuilder.Node("KeyAttrRefCount", refs),
		))
		w.b.ConnectProperty(curveId, id, scene.Channels[i])
	}
}
