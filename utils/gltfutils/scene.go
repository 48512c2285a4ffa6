package gltfutils

import (
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/badger_converter/scene"
	"github.com/mogaika/badger_converter/utils"
)

type Options struct {
	// longest texture side, 0 keeps original size
	MaxTextureSize int
	WebP           bool
	// searched for texture relative file names when absolute path is missing
	TextureDir string
}

type exportContext struct {
	*GLTFCacher
	opts  Options
	nodes map[*scene.Node]uint32
}

// ExportScene writes scene hierarchy, skinned meshes and materials as glb
func ExportScene(s *scene.Scene, w io.Writer, opts Options) error {
	ec := &exportContext{
		GLTFCacher: NewCacher(),
		opts:       opts,
		nodes:      make(map[*scene.Node]uint32),
	}

	// nodes first so skins can reference joints declared later in the tree
	if err := s.Root.Walk(func(n *scene.Node) error {
		if n == s.Root {
			return nil
		}
		ec.addNode(n)
		return nil
	}); err != nil {
		return err
	}

	if err := s.Root.Walk(func(n *scene.Node) error {
		if n.Mesh() == nil {
			return nil
		}
		return errors.Wrapf(ec.addMesh(n), "Failed to export mesh %q", n.Name)
	}); err != nil {
		return err
	}

	return ExportBinary(w, ec.Doc)
}

func float3(v mgl64.Vec3) [3]float32 {
	return [3]float32(utils.ConvertFloats[float32](v[:]))
}

func (ec *exportContext) addNode(n *scene.Node) uint32 {
	q := mgl64.Mat4ToQuat(scene.EulerToMatrix(n.Rotation)).Normalize()
	gn := &gltf.Node{
		Name:        n.Name,
		Translation: float3(n.Translation),
		Rotation:    [4]float32{float32(q.V[0]), float32(q.V[1]), float32(q.V[2]), float32(q.W)},
		Scale:       float3(n.Scaling),
	}
	if n.InheritType == scene.InheritRrs {
		log.Debug("glTF has no scale inheritance control, parent scale applied", "node", n.Name)
	}

	ec.Doc.Nodes = append(ec.Doc.Nodes, gn)
	id := uint32(len(ec.Doc.Nodes) - 1)
	ec.nodes[n] = id
	if n.Parent != nil {
		if parent, ok := ec.nodes[n.Parent]; ok {
			pn := ec.Doc.Nodes[parent]
			pn.Children = append(pn.Children, id)
		}
	}
	return id
}

// fan triangulation keeps triangles untouched
func triangles(m *scene.Mesh) []uint32 {
	indices := make([]uint32, 0, len(m.PolygonVertices))
	for p := 0; p < m.PolygonCount(); p++ {
		poly := m.Polygon(p)
		for i := 1; i+1 < len(poly); i++ {
			indices = append(indices, uint32(poly[0]), uint32(poly[i]), uint32(poly[i+1]))
		}
	}
	return indices
}

func (ec *exportContext) addMesh(n *scene.Node) error {
	m := n.Mesh()
	doc := ec.Doc
	log.Debug("Exporting glTF mesh", "mesh", m.Name, "vertices", len(m.ControlPoints))

	positions := make([][3]float32, len(m.ControlPoints))
	for i, p := range m.ControlPoints {
		positions[i] = float3(p)
	}
	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(doc, positions),
	}

	if len(m.Normals) != 0 {
		values, err := m.Normals[0].ControlPointValues(m)
		if err != nil {
			return err
		}
		normals := make([][3]float32, len(values))
		for i, v := range values {
			normals[i] = float3(v.Vec3().Normalize())
		}
		attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
	}
	if len(m.UVs) != 0 {
		values, err := m.UVs[0].ControlPointValues(m)
		if err != nil {
			return err
		}
		uvs := make([][2]float32, len(values))
		for i, v := range values {
			uvs[i] = [2]float32{float32(v[0]), float32(1 - v[1])}
		}
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(doc, uvs)
	}
	if len(m.Colors) != 0 {
		values, err := m.Colors[0].ControlPointValues(m)
		if err != nil {
			return err
		}
		colors := make([][4]uint8, len(values))
		for i, v := range values {
			for j := range v {
				colors[i][j] = uint8(utils.Clamp(v[j], 0, 1) * 255)
			}
		}
		attributes["COLOR_0"] = modeler.WriteColor(doc, colors)
	}

	gn := doc.Nodes[ec.nodes[n]]
	if len(m.Skins) != 0 && len(m.Skins[0].Clusters) != 0 {
		skin, err := ec.addSkin(m, m.Skins[0], attributes)
		if err != nil {
			return err
		}
		gn.Skin = gltf.Index(skin)
	}

	primitive := &gltf.Primitive{
		Indices:    gltf.Index(modeler.WriteIndices(doc, triangles(m))),
		Attributes: attributes,
	}
	if len(n.Materials) != 0 {
		if len(n.Materials) > 1 {
			log.Warnf("Mesh %q has %d materials, only the first is exported", m.Name, len(n.Materials))
		}
		primitive.Material = gltf.Index(ec.material(n.Materials[0]))
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: m.Name, Primitives: []*gltf.Primitive{primitive}})
	gn.Mesh = gltf.Index(uint32(len(doc.Meshes) - 1))
	return nil
}

type influence struct {
	joint  uint16
	weight float64
}

// addSkin writes four strongest influences per vertex, weights normalized to one
func (ec *exportContext) addSkin(m *scene.Mesh, skin *scene.Skin, attributes map[string]uint32) (uint32, error) {
	influences := make([][]influence, len(m.ControlPoints))
	joints := make([]uint32, len(skin.Clusters))
	inverseBind := make([]mgl64.Mat4, len(skin.Clusters))

	for ic, c := range skin.Clusters {
		if c.Link == nil {
			return 0, errors.Errorf("Cluster %q has no linked joint", c.Name)
		}
		id, ok := ec.nodes[c.Link]
		if !ok {
			return 0, errors.Errorf("Cluster %q links node %q outside of scene", c.Name, c.Link.Name)
		}
		joints[ic] = id
		inverseBind[ic] = c.TransformLink.Inv().Mul4(c.Transform)

		for i, index := range c.Indices {
			if int(index) >= len(influences) {
				return 0, errors.Errorf("Cluster %q references vertex %d out of range", c.Name, index)
			}
			influences[index] = append(influences[index], influence{joint: uint16(ic), weight: c.Weights[i]})
		}
	}

	joints0 := make([][4]uint16, len(influences))
	weights0 := make([][4]float32, len(influences))
	for i, vi := range influences {
		sort.SliceStable(vi, func(a, b int) bool { return vi[a].weight > vi[b].weight })
		if len(vi) > 4 {
			vi = vi[:4]
		}
		sum := 0.0
		for _, inf := range vi {
			sum += inf.weight
		}
		for j, inf := range vi {
			joints0[i][j] = inf.joint
			if !utils.AlmostEqual(sum, 0, 1e-12) {
				weights0[i][j] = float32(inf.weight / sum)
			}
		}
	}
	attributes["JOINTS_0"] = modeler.WriteJoints(ec.Doc, joints0)
	attributes["WEIGHTS_0"] = modeler.WriteWeights(ec.Doc, weights0)

	ec.Doc.Skins = append(ec.Doc.Skins, &gltf.Skin{
		Name:                skin.Name,
		Joints:              joints,
		InverseBindMatrices: gltf.Index(ec.addMatrices(inverseBind)),
	})
	return uint32(len(ec.Doc.Skins) - 1), nil
}

// addMatrices stores column-major mat4 accessor through vec4 writer
func (ec *exportContext) addMatrices(matrices []mgl64.Mat4) uint32 {
	columns := make([][4]float32, len(matrices)*4)
	for i, mat := range matrices {
		for c := 0; c < 4; c++ {
			col := mat.Col(c)
			columns[i*4+c] = [4]float32{float32(col[0]), float32(col[1]), float32(col[2]), float32(col[3])}
		}
	}
	doc := ec.Doc
	acc := modeler.WriteTangent(doc, columns)
	doc.Accessors[acc].Type = gltf.AccessorMat4
	doc.Accessors[acc].Count /= 4
	doc.BufferViews[*doc.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func (ec *exportContext) material(m *scene.Material) uint32 {
	return ec.GetCachedOr(m, func() interface{} {
		log.Debug("Exporting glTF material", "material", m.Name)
		metallic := float32(0)
		roughness := float32(1)
		color := [4]float32{1, 1, 1, 1}
		if p := m.Property(scene.PBSCompound + scene.PropertySeparator + "base_color"); p != nil {
			if c := p.Vec3(); c != (mgl64.Vec3{}) {
				color = [4]float32{float32(c[0]), float32(c[1]), float32(c[2]), 1}
			}
		}
		if p := m.Property(scene.PBSCompound + scene.PropertySeparator + "metallic"); p != nil {
			metallic = float32(p.Float())
		}
		if p := m.Property(scene.PBSCompound + scene.PropertySeparator + "roughness"); p != nil && p.Float() != 0 {
			roughness = float32(p.Float())
		}

		gm := &gltf.Material{
			Name: m.Name,
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &color,
				MetallicFactor:  &metallic,
				RoughnessFactor: &roughness,
			},
		}

		if p := m.Property(scene.PropertyBadgerCulling); p != nil && p.String() == "none" {
			gm.DoubleSided = true
		}
		if p := m.Property(scene.PropertyBadgerMaterial); p != nil {
			switch kind := p.String(); {
			case strings.Contains(kind, "alphablend"):
				gm.AlphaMode = gltf.AlphaBlend
			case strings.Contains(kind, "alphatest"):
				gm.AlphaMode = gltf.AlphaMask
			}
		}

		if t := firstTexture(m, scene.PBSColorMap, scene.StandardDiffuseColor); t != nil {
			if id, ok := ec.texture(t); ok {
				gm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: id}
			}
		}
		if t := firstTexture(m, scene.PBSNormalMap, scene.StandardNormalMap); t != nil {
			if id, ok := ec.texture(t); ok {
				gm.NormalTexture = &gltf.NormalTexture{Index: gltf.Index(id)}
			}
		}
		if t := firstTexture(m, scene.PBSEmissiveMap, scene.StandardEmissiveColor); t != nil {
			if id, ok := ec.texture(t); ok {
				gm.EmissiveTexture = &gltf.TextureInfo{Index: id}
				gm.EmissiveFactor = [3]float32{1, 1, 1}
			}
		}

		ec.Doc.Materials = append(ec.Doc.Materials, gm)
		return uint32(len(ec.Doc.Materials) - 1)
	}).(uint32)
}

func firstTexture(m *scene.Material, paths ...string) *scene.Texture {
	for _, p := range paths {
		if t := m.TextureOf(p); t != nil {
			return t
		}
	}
	return nil
}
