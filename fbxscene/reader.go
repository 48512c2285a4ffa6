package fbxscene

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/mogaika/fbx"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/scene"
	"github.com/mogaika/badger_converter/utils"
	"github.com/mogaika/badger_converter/utils/fbxbuilder"
)

type reader struct {
	doc *fbxbuilder.Document
	s   *scene.Scene

	nodes           map[int64]*scene.Node
	materials       map[int64]*scene.Material
	textures        map[int64]*scene.Texture
	implementations map[int64]*scene.Implementation
}

// ReadFile reads binary FBX file, scene is named after file without extension
func ReadFile(path string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &badger.NativeIOError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := Read(f, name)
	if err != nil {
		if nerr, ok := err.(*badger.NativeIOError); ok {
			nerr.Path = path
		}
		return nil, err
	}
	return s, nil
}

func Read(r io.Reader, name string) (*scene.Scene, error) {
	root, version, err := fbxbuilder.Read(r)
	if err != nil {
		return nil, &badger.NativeIOError{Op: "read", Err: err}
	}
	doc, err := fbxbuilder.NewDocument(root, version)
	if err != nil {
		return nil, &badger.NativeIOError{Op: "read", Err: err}
	}

	rd := &reader{
		doc:             doc,
		s:               scene.New(name),
		nodes:           make(map[int64]*scene.Node),
		materials:       make(map[int64]*scene.Material),
		textures:        make(map[int64]*scene.Texture),
		implementations: make(map[int64]*scene.Implementation),
	}
	if err := rd.read(); err != nil {
		return nil, &badger.NativeIOError{Op: "import", Err: err}
	}
	return rd.s, nil
}

func (rd *reader) read() error {
	for _, o := range rd.doc.ObjectsByName("Texture") {
		rd.readTexture(o)
	}
	for _, o := range rd.doc.ObjectsByName("Implementation") {
		rd.readImplementation(o)
	}
	for _, o := range rd.doc.ObjectsByName("Material") {
		if err := rd.readMaterial(o); err != nil {
			return err
		}
	}
	if err := rd.readChildren(0, rd.s.Root); err != nil {
		return err
	}
	// skins reference nodes anywhere in hierarchy, so they go after it
	for id, n := range rd.nodes {
		if m := n.Mesh(); m != nil {
			if err := rd.readSkins(id, m); err != nil {
				return errors.Wrapf(err, "Mesh %q", m.Name)
			}
		}
	}
	for _, o := range rd.doc.ObjectsByName("AnimationStack") {
		if err := rd.readStack(o); err != nil {
			return err
		}
	}
	return nil
}

func (rd *reader) readTexture(o *fbx.Node) {
	t := &scene.Texture{
		Name:             fbxbuilder.ObjectDisplayName(o),
		FileName:         fbxbuilder.PropString(fbxbuilder.Child(o, "FileName"), 0),
		RelativeFileName: fbxbuilder.PropString(fbxbuilder.Child(o, "RelativeFilename"), 0),
		UVSet:            fbxbuilder.P70String(o, "UVSet", ""),
	}
	rd.textures[fbxbuilder.ObjectID(o)] = t
	rd.s.AddTexture(t)
}

func (rd *reader) readImplementation(o *fbx.Node) {
	id := fbxbuilder.ObjectID(o)
	impl := &scene.Implementation{
		Name:             fbxbuilder.ObjectDisplayName(o),
		Language:         fbxbuilder.P70String(o, "ShaderLanguage", ""),
		LanguageVersion:  fbxbuilder.P70String(o, "ShaderLanguageVersion", ""),
		RenderAPI:        fbxbuilder.P70String(o, "RenderAPI", ""),
		RenderAPIVersion: fbxbuilder.P70String(o, "RenderAPIVersion", ""),
		RootBindingName:  fbxbuilder.P70String(o, "RootBindingName", ""),
		ShaderGraph:      []byte{},
	}
	if p := fbxbuilder.P70(o, "ShaderGraph"); p != nil {
		if data := fbxbuilder.PropBytes(p, 4); data != nil {
			impl.ShaderGraph = data
		}
	}
	for _, bt := range rd.doc.ChildrenOf(id, "BindingTable") {
		table := &scene.BindingTable{
			Name:       fbxbuilder.ObjectDisplayName(bt),
			TargetName: fbxbuilder.P70String(bt, "TargetName", ""),
			TargetType: fbxbuilder.P70String(bt, "TargetType", ""),
		}
		for _, e := range fbxbuilder.Children(bt, "Entry") {
			table.Entries = append(table.Entries, scene.BindingEntry{
				Source:          fbxbuilder.PropString(e, 0),
				SourceType:      fbxbuilder.PropString(e, 1),
				Destination:     fbxbuilder.PropString(e, 2),
				DestinationType: fbxbuilder.PropString(e, 3),
			})
		}
		impl.Table = table
	}
	rd.implementations[id] = impl
	rd.s.AddImplementation(impl)
}

// propertyValue converts P record into scene property type and value
func propertyValue(p *fbx.Node) (scene.PropertyType, interface{}) {
	v := fbxbuilder.P70Values(p)
	f := func(i int) float64 { return fbxbuilder.PropFloat64(p, 4+i) }

	switch fbxbuilder.PropString(p, 1) {
	case "Compound":
		return scene.PropertyCompound, nil
	case "bool", "Bool":
		return scene.PropertyBool, fbxbuilder.PropInt64(p, 4) != 0
	case "int", "Integer", "enum":
		return scene.PropertyInt, int(fbxbuilder.PropInt64(p, 4))
	case "double", "Number", "float", "Float":
		return scene.PropertyFloat, f(0)
	case "Vector2D", "Vector2":
		if len(v) >= 2 {
			return scene.PropertyFloat2, mgl64.Vec2{f(0), f(1)}
		}
	case "Vector3D", "Vector":
		if len(v) >= 3 {
			return scene.PropertyFloat3, mgl64.Vec3{f(0), f(1), f(2)}
		}
	case "ColorRGB", "Color":
		if len(v) >= 3 {
			return scene.PropertyColor, mgl64.Vec3{f(0), f(1), f(2)}
		}
	case "KString":
		return scene.PropertyString, fbxbuilder.PropString(p, 4)
	}
	return scene.PropertyCompound, nil
}

func (rd *reader) readMaterial(o *fbx.Node) error {
	id := fbxbuilder.ObjectID(o)
	m := scene.NewMaterial(fbxbuilder.ObjectDisplayName(o))
	if sm := fbxbuilder.PropString(fbxbuilder.Child(o, "ShadingModel"), 0); sm != "" {
		m.ShadingModel = sm
	}

	for _, p := range fbxbuilder.Children(fbxbuilder.Child(o, "Properties70"), "P") {
		t, v := propertyValue(p)
		m.SetProperty(fbxbuilder.PropString(p, 0), t, v)
	}

	for _, c := range rd.doc.ConnectionsTo(id) {
		if c.Type != "OP" {
			continue
		}
		t, ok := rd.textures[c.Child]
		if !ok {
			continue
		}
		prop := m.Property(c.Property)
		if prop == nil {
			// texture connected to property without record
			prop = m.SetProperty(c.Property, scene.PropertyCompound, nil)
		}
		prop.ConnectTexture(t)
	}
	for _, implObject := range rd.doc.ChildrenOf(id, "Implementation") {
		m.Implementation = rd.implementations[fbxbuilder.ObjectID(implObject)]
	}

	if err := rd.s.AddMaterial(m); err != nil {
		return err
	}
	rd.materials[id] = m
	return nil
}

func parseSkeletonType(s string) (scene.SkeletonType, bool) {
	for _, t := range []scene.SkeletonType{scene.SkeletonRoot, scene.SkeletonLimb, scene.SkeletonLimbNode, scene.SkeletonEffector} {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}

func (rd *reader) readChildren(parentId int64, parent *scene.Node) error {
	for _, o := range rd.doc.ChildrenOf(parentId, "Model") {
		id := fbxbuilder.ObjectID(o)
		if _, ok := rd.nodes[id]; ok {
			return errors.Errorf("Model %q has several parents", fbxbuilder.ObjectDisplayName(o))
		}
		n, err := rd.readModel(o)
		if err != nil {
			return err
		}
		rd.nodes[id] = n
		parent.AddChild(n)
		if err := rd.readChildren(id, n); err != nil {
			return err
		}
	}
	return nil
}

func (rd *reader) readModel(o *fbx.Node) (*scene.Node, error) {
	id := fbxbuilder.ObjectID(o)
	n := scene.NewNode(fbxbuilder.ObjectDisplayName(o))
	n.Translation = fbxbuilder.P70Vec3(o, "Lcl Translation", [3]float64{})
	n.Rotation = fbxbuilder.P70Vec3(o, "Lcl Rotation", [3]float64{})
	n.Scaling = fbxbuilder.P70Vec3(o, "Lcl Scaling", [3]float64{1, 1, 1})
	n.RotationActive = fbxbuilder.P70Int(o, "RotationActive", 0) != 0
	n.InheritType = scene.InheritType(fbxbuilder.P70Int(o, "InheritType", 0))
	if fbxbuilder.PropInt64(fbxbuilder.Child(o, "Shading"), 0) != 0 {
		n.Shading = scene.ShadingTexture
	}

	for _, a := range rd.doc.ChildrenOf(id, "NodeAttribute") {
		name := fbxbuilder.ObjectDisplayName(a)
		switch fbxbuilder.PropString(fbxbuilder.Child(a, "TypeFlags"), 0) {
		case "Skeleton":
			t, ok := parseSkeletonType(fbxbuilder.ObjectSubClass(a))
			if !ok {
				t = scene.SkeletonLimbNode
			}
			n.Attribute = &scene.Skeleton{Name: name, Type: t}
		case "Null":
			n.Attribute = &scene.Null{Name: name}
		default:
			log.Warnf("Model %q: ignoring node attribute %q of class %q", n.Name, name, fbxbuilder.ObjectSubClass(a))
		}
	}
	if n.Attribute == nil {
		if t, ok := parseSkeletonType(fbxbuilder.ObjectSubClass(o)); ok {
			n.Attribute = &scene.Skeleton{Name: n.Name, Type: t}
		}
	}

	for _, g := range rd.doc.ChildrenOf(id, "Geometry") {
		m, err := readGeometry(g)
		if err != nil {
			return nil, errors.Wrapf(err, "Model %q", n.Name)
		}
		n.Attribute = m
	}

	for _, mo := range rd.doc.ChildrenOf(id, "Material") {
		if m, ok := rd.materials[fbxbuilder.ObjectID(mo)]; ok {
			n.AddMaterial(m)
		}
	}
	return n, nil
}

type elementHeader struct {
	name      string
	mapping   scene.MappingMode
	reference scene.ReferenceMode
}

func readElementHeader(e *fbx.Node) (elementHeader, error) {
	h := elementHeader{name: fbxbuilder.PropString(fbxbuilder.Child(e, "Name"), 0)}
	var err error
	if h.mapping, err = scene.ParseMappingMode(fbxbuilder.PropString(fbxbuilder.Child(e, "MappingInformationType"), 0)); err != nil {
		return h, errors.Wrapf(err, "%s", e.Name)
	}
	if h.reference, err = scene.ParseReferenceMode(fbxbuilder.PropString(fbxbuilder.Child(e, "ReferenceInformationType"), 0)); err != nil {
		return h, errors.Wrapf(err, "%s", e.Name)
	}
	return h, nil
}

func readGeometry(g *fbx.Node) (*scene.Mesh, error) {
	m := scene.NewMesh(fbxbuilder.ObjectDisplayName(g))

	vertices := fbxbuilder.PropFloat64s(fbxbuilder.Child(g, "Vertices"), 0)
	if len(vertices)%3 != 0 {
		return nil, errors.Errorf("Geometry %q: vertices array length %d is not multiple of 3", m.Name, len(vertices))
	}
	m.ControlPoints = make([]mgl64.Vec3, len(vertices)/3)
	for i := range m.ControlPoints {
		m.ControlPoints[i] = mgl64.Vec3{vertices[i*3], vertices[i*3+1], vertices[i*3+2]}
	}

	size := 0
	for _, idx := range fbxbuilder.PropInt32s(fbxbuilder.Child(g, "PolygonVertexIndex"), 0) {
		size++
		if idx < 0 {
			idx = -idx - 1
			m.PolygonSizes = append(m.PolygonSizes, size)
			size = 0
		}
		m.PolygonVertices = append(m.PolygonVertices, idx)
	}
	if size != 0 {
		return nil, errors.Errorf("Geometry %q: last polygon is not terminated", m.Name)
	}

	for _, e := range fbxbuilder.Children(g, "LayerElementNormal") {
		h, err := readElementHeader(e)
		if err != nil {
			return nil, err
		}
		xyz := fbxbuilder.PropFloat64s(fbxbuilder.Child(e, "Normals"), 0)
		w := fbxbuilder.PropFloat64s(fbxbuilder.Child(e, "NormalsW"), 0)
		values := make([]mgl64.Vec4, len(xyz)/3)
		for i := range values {
			values[i] = mgl64.Vec4{xyz[i*3], xyz[i*3+1], xyz[i*3+2], 0}
			if i < len(w) {
				values[i][3] = w[i]
			}
		}
		m.Normals = append(m.Normals, &scene.LayerElement[mgl64.Vec4]{
			Name: h.name, Mapping: h.mapping, Reference: h.reference,
			Direct: values,
			Index:  fbxbuilder.PropInt32s(fbxbuilder.Child(e, "NormalsIndex"), 0),
		})
	}

	for _, e := range fbxbuilder.Children(g, "LayerElementUV") {
		h, err := readElementHeader(e)
		if err != nil {
			return nil, err
		}
		uv := fbxbuilder.PropFloat64s(fbxbuilder.Child(e, "UV"), 0)
		values := make([]mgl64.Vec2, len(uv)/2)
		for i := range values {
			values[i] = mgl64.Vec2{uv[i*2], uv[i*2+1]}
		}
		m.UVs = append(m.UVs, &scene.LayerElement[mgl64.Vec2]{
			Name: h.name, Mapping: h.mapping, Reference: h.reference,
			Direct: values,
			Index:  fbxbuilder.PropInt32s(fbxbuilder.Child(e, "UVIndex"), 0),
		})
	}

	for _, e := range fbxbuilder.Children(g, "LayerElementColor") {
		h, err := readElementHeader(e)
		if err != nil {
			return nil, err
		}
		rgba := fbxbuilder.PropFloat64s(fbxbuilder.Child(e, "Colors"), 0)
		values := make([]mgl64.Vec4, len(rgba)/4)
		for i := range values {
			values[i] = mgl64.Vec4{rgba[i*4], rgba[i*4+1], rgba[i*4+2], rgba[i*4+3]}
		}
		m.Colors = append(m.Colors, &scene.LayerElement[mgl64.Vec4]{
			Name: h.name, Mapping: h.mapping, Reference: h.reference,
			Direct: values,
			Index:  fbxbuilder.PropInt32s(fbxbuilder.Child(e, "ColorIndex"), 0),
		})
	}

	if e := fbxbuilder.Child(g, "LayerElementMaterial"); e != nil {
		h, err := readElementHeader(e)
		if err != nil {
			return nil, err
		}
		m.MaterialLayer = &scene.LayerElement[int32]{
			Name: h.name, Mapping: h.mapping, Reference: scene.Direct,
			Direct: fbxbuilder.PropInt32s(fbxbuilder.Child(e, "Materials"), 0),
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseLinkMode(s string) scene.LinkMode {
	switch s {
	case "Additive":
		return scene.LinkAdditive
	case "TotalOne", "Total1":
		return scene.LinkTotalOne
	}
	return scene.LinkNormalize
}

func matrix(values []float64) mgl64.Mat4 {
	if len(values) != 16 {
		return mgl64.Ident4()
	}
	var m mgl64.Mat4
	copy(m[:], values)
	return m
}

func (rd *reader) readSkins(modelId int64, m *scene.Mesh) error {
	for _, g := range rd.doc.ChildrenOf(modelId, "Geometry") {
		for _, so := range rd.doc.ChildrenOf(fbxbuilder.ObjectID(g), "Deformer") {
			if fbxbuilder.ObjectSubClass(so) != "Skin" {
				continue
			}
			skin := &scene.Skin{Name: fbxbuilder.ObjectDisplayName(so)}
			for _, co := range rd.doc.ChildrenOf(fbxbuilder.ObjectID(so), "Deformer") {
				if fbxbuilder.ObjectSubClass(co) != "Cluster" {
					continue
				}
				c := &scene.Cluster{
					Name:          fbxbuilder.ObjectDisplayName(co),
					LinkMode:      parseLinkMode(fbxbuilder.PropString(fbxbuilder.Child(co, "Mode"), 0)),
					Indices:       fbxbuilder.PropInt32s(fbxbuilder.Child(co, "Indexes"), 0),
					Weights:       fbxbuilder.PropFloat64s(fbxbuilder.Child(co, "Weights"), 0),
					Transform:     matrix(fbxbuilder.PropFloat64s(fbxbuilder.Child(co, "Transform"), 0)),
					TransformLink: matrix(fbxbuilder.PropFloat64s(fbxbuilder.Child(co, "TransformLink"), 0)),
				}
				if len(c.Indices) != len(c.Weights) {
					return errors.Errorf("Cluster %q: %d indexes and %d weights", c.Name, len(c.Indices), len(c.Weights))
				}
				for _, lo := range rd.doc.ChildrenOf(fbxbuilder.ObjectID(co), "Model") {
					c.Link = rd.nodes[fbxbuilder.ObjectID(lo)]
				}
				if c.Link == nil {
					return errors.Errorf("Cluster %q is not linked to any node", c.Name)
				}
				skin.Clusters = append(skin.Clusters, c)
			}
			m.Skins = append(m.Skins, skin)
		}
	}
	return nil
}

func keyValues(n *fbx.Node) []float64 {
	switch v := fbxbuilder.Prop(n, 0).(type) {
	case []float32:
		result := make([]float64, len(v))
		for i := range v {
			// widened through shortest decimal, so 0.1f reads as 0.1
			result[i] = utils.Float32Round(float64(v[i]))
		}
		return result
	}
	return fbxbuilder.PropFloat64s(n, 0)
}

// keyInterpolations expands run-length encoded key attributes
func keyInterpolations(curve *fbx.Node, count int) []scene.Interpolation {
	flags := fbxbuilder.PropInt32s(fbxbuilder.Child(curve, "KeyAttrFlags"), 0)
	refs := fbxbuilder.PropInt32s(fbxbuilder.Child(curve, "KeyAttrRefCount"), 0)

	result := make([]scene.Interpolation, 0, count)
	for i, flag := range flags {
		interpolation := scene.InterpolationLinear
		switch {
		case flag&keyInterpolationConstant != 0:
			interpolation = scene.InterpolationConstant
		case flag&keyInterpolationCubic != 0:
			interpolation = scene.InterpolationCubic
		}
		repeat := 1
		if i < len(refs) {
			repeat = int(refs[i])
		}
		for j := 0; j < repeat && len(result) < count; j++ {
			result = append(result, interpolation)
		}
	}
	for len(result) < count {
		result = append(result, scene.InterpolationLinear)
	}
	return result
}

func readCurve(o *fbx.Node) (*scene.AnimCurve, error) {
	c := &scene.AnimCurve{Name: fbxbuilder.ObjectDisplayName(o)}
	times := fbxbuilder.PropInt64s(fbxbuilder.Child(o, "KeyTime"), 0)
	values := keyValues(fbxbuilder.Child(o, "KeyValueFloat"))
	if len(times) != len(values) {
		return nil, errors.Errorf("Curve %q: %d key times and %d values", c.Name, len(times), len(values))
	}
	interpolations := keyInterpolations(o, len(times))
	for i := range times {
		c.AddKey(scene.TimeToSeconds(times[i]), values[i], interpolations[i])
	}
	return c, nil
}

func (rd *reader) readStack(o *fbx.Node) error {
	st := scene.NewAnimStack(fbxbuilder.ObjectDisplayName(o))
	for _, lo := range rd.doc.ChildrenOf(fbxbuilder.ObjectID(o), "AnimationLayer") {
		l := scene.NewAnimLayer(fbxbuilder.ObjectDisplayName(lo), scene.BlendMode(fbxbuilder.P70Int(lo, "BlendMode", 0)))
		l.Weight = fbxbuilder.P70Float(lo, "Weight", 100)

		for _, cno := range rd.doc.ChildrenOf(fbxbuilder.ObjectID(lo), "AnimationCurveNode") {
			cnId := fbxbuilder.ObjectID(cno)
			cn := scene.NewAnimCurveNode(fbxbuilder.ObjectDisplayName(cno), nil, "")
			for i, channel := range scene.Channels {
				cn.Default[i] = fbxbuilder.P70Float(cno, channel, 0)
			}
			for _, c := range rd.doc.ParentsOf(cnId) {
				if c.Type != "OP" {
					continue
				}
				target, ok := rd.nodes[c.Parent]
				if ok && cn.Target == nil {
					cn.Target = target
					cn.Property = c.Property
					continue
				}
				dest := fmt.Sprintf("object %d", c.Parent)
				if ok {
					dest = target.Name
				}
				cn.ExtraTargets = append(cn.ExtraTargets, dest+"."+c.Property)
			}
			for _, c := range rd.doc.ConnectionsTo(cnId) {
				co := rd.doc.Object(c.Child)
				if co == nil || co.Name != "AnimationCurve" {
					continue
				}
				i, ok := scene.ChannelIndex(c.Property)
				if !ok {
					cn.Unsupported = append(cn.Unsupported, c.Property)
					continue
				}
				curve, err := readCurve(co)
				if err != nil {
					return errors.Wrapf(err, "Stack %q", st.Name)
				}
				cn.Channels[i] = curve
			}
			l.AddCurveNode(cn)
		}
		st.AddLayer(l)
	}
	return rd.s.AddStack(st)
}
