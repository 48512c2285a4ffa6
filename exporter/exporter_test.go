package exporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/scene"
)

func joint(parent *scene.Node, name string) *scene.Node {
	n := parent.AddChild(scene.NewNode(name))
	n.Attribute = &scene.Skeleton{Name: name, Type: scene.SkeletonLimbNode}
	return n
}

func quad() *scene.Mesh {
	mesh := scene.NewMesh("mesh_0_body")
	mesh.ControlPoints = []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	mesh.AddPolygon(0, 1, 2)
	mesh.AddPolygon(0, 2, 3)
	return mesh
}

func addMeshNode(s *scene.Scene, name string, mesh *scene.Mesh, materials ...*scene.Material) *scene.Node {
	n := s.Root.AddChild(scene.NewNode(name))
	n.Attribute = mesh
	for _, m := range materials {
		n.AddMaterial(m)
	}
	return n
}

func testScene(textureFile string) *scene.Scene {
	s := scene.New("robot")

	root := joint(s.Root, "root_bone")
	root.Attribute.(*scene.Skeleton).Type = scene.SkeletonRoot
	arm := joint(root, "arm")
	arm.Translation = mgl64.Vec3{0, 12, 0}
	arm.Rotation = mgl64.Vec3{0, 0, 45}

	locator := arm.AddChild(scene.NewNode("hand_locator"))
	locator.Attribute = &scene.Null{Name: "hand_locator"}
	locator.Translation = mgl64.Vec3{1, 2, 3}
	locator.InheritType = scene.InheritRrs

	tex := &scene.Texture{Name: "robot_diffuse", FileName: textureFile}
	s.AddTexture(tex)

	mat := scene.NewMaterial("robot_mat___entity_alphatest")
	mat.SetProperty(scene.PBSTypeId, scene.PropertyInt, scene.PBSTypeIdValue)
	mat.SetProperty(scene.PBSColorMap, scene.PropertyFloat3, mgl64.Vec3{}).ConnectTexture(tex)
	mat.SetProperty(scene.PropertyBadgerMaterial, scene.PropertyString, "entity_alphatest")
	if err := s.AddMaterial(mat); err != nil {
		panic(err)
	}

	mesh := quad()
	mesh.Normals = append(mesh.Normals, scene.NewLayerElement("", []mgl64.Vec4{{0, 0, 1, 0}, {0, 0, 1, 0}, {0, 0, 1, 0}, {0, 0, 1, 0}}))

	uvs := scene.NewLayerElement("UVs", []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	uvs.Mapping = scene.ByPolygonVertex
	uvs.Reference = scene.IndexToDirect
	uvs.Index = []int32{0, 1, 2, 0, 2, 3}
	mesh.UVs = append(mesh.UVs, uvs)

	colors := scene.NewLayerElement("", []mgl64.Vec4{{1, 0.5, 0.25, 1}})
	colors.Mapping = scene.AllSame
	mesh.Colors = append(mesh.Colors, colors)

	cluster := &scene.Cluster{Name: "body_arm_cluster", Link: arm, LinkMode: scene.LinkTotalOne}
	cluster.Add(2, 1)
	cluster.Add(3, 0.5)
	rootCluster := &scene.Cluster{Name: "body_root_bone_cluster", Link: root, LinkMode: scene.LinkTotalOne}
	rootCluster.Add(3, 0.5)
	mesh.Skins = append(mesh.Skins, &scene.Skin{Name: "body_skin", Clusters: []*scene.Cluster{cluster, rootCluster}})

	addMeshNode(s, "meshNode_0_body", mesh, mat)

	stack := scene.NewAnimStack("walk_stack")
	layer := stack.AddLayer(scene.NewAnimLayer("walk", scene.BlendAdditive))
	cn := layer.AddCurveNode(scene.NewAnimCurveNode("T", arm, scene.PropertyTranslation))
	cn.Default = arm.Translation
	for i := range scene.Channels {
		cn.Channel(i).AddKey(0, arm.Translation[i], scene.InterpolationLinear)
		cn.Channel(i).AddKey(0.5, arm.Translation[i]+0.1, scene.InterpolationLinear)
	}
	rot := layer.AddCurveNode(scene.NewAnimCurveNode("R", arm, scene.PropertyRotation))
	for i := range scene.Channels {
		rot.Channel(i).AddKey(0.25, arm.Rotation[i]-10, scene.InterpolationLinear)
	}
	if err := s.AddStack(stack); err != nil {
		panic(err)
	}
	return s
}

func TestExportGeometry(t *testing.T) {
	r, err := New(config.Default()).Export(testScene("/packs/a/textures/entity/robot.png"), "robot")
	require.NoError(t, err)

	require.Len(t, r.Model.Geometries, 1)
	g := r.Model.Geometries[0]
	assert.Equal(t, "1.14.0", r.Model.FormatVersion)
	assert.Equal(t, "geometry.robot", g.Identifier)

	require.Len(t, g.Bones, 2)
	assert.Equal(t, "root_bone", g.Bones[0].Name)
	assert.Equal(t, "", g.Bones[0].Parent)
	assert.Equal(t, "arm", g.Bones[1].Name)
	assert.Equal(t, "root_bone", g.Bones[1].Parent)
	assert.Equal(t, badger.Vector3{0, 12, 0}, g.Bones[1].Pivot)
	assert.Equal(t, badger.Vector3{1, 1, 1}, g.Bones[1].Scale)
	assert.Equal(t, badger.Vector3{0, 0, 45}, g.Bones[1].BindPoseRotation)
	assert.Equal(t, map[string]badger.BoneLocator{
		"hand_locator": {Offset: badger.Vector3{1, 2, 3}, DiscardScale: true},
	}, g.Bones[1].Locators)

	require.Len(t, g.Meshes, 1)
	m := g.Meshes[0]
	assert.Equal(t, "body", m.Name)
	assert.Equal(t, "robot_mat", m.Material)
	assert.Equal(t, []int32{0, 1, 2, 0, 2, 3}, m.Triangles)
	assert.Equal(t, []badger.Vector3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}, m.Positions)
	assert.Equal(t, [][]badger.Vector2{{{0, 1}, {1, 1}, {1, 0}, {0, 0}}}, m.UVs)
	require.Len(t, m.Colors, 1)
	assert.Equal(t, badger.Vector4{1, 0.5, 0.25, 1}, m.Colors[0][3])
	require.Len(t, m.Normals, 1)
	assert.Equal(t, badger.Vector4{0, 0, 1, 0}, m.Normals[0][1])

	assert.Equal(t, [][]string{{}, {}, {"arm"}, {"arm", "root_bone"}}, m.Indices)
	assert.Equal(t, [][]float64{{}, {}, {1}, {0.5, 0.5}}, m.Weights)
	assert.Equal(t, []badger.Influence{{Bone: "arm", Weight: 0.5}, {Bone: "root_bone", Weight: 0.5}}, m.Influences(3))
}

func TestExportMaterials(t *testing.T) {
	r, err := New(config.Default()).Export(testScene("C:\\work\\robot.PNG"), "robot")
	require.NoError(t, err)

	require.Len(t, r.Materials, 1)
	mm := r.Materials[0]
	assert.Equal(t, "robot_mat", mm.Name)
	assert.Equal(t, "entity_alphatest", mm.BaseName)
	assert.Equal(t, "entity_alphatest", mm.Material)
	assert.Equal(t, "none", mm.Culling)
	assert.Equal(t, "1.8.0", mm.FormatVersion)
	assert.Equal(t, "textures/entity/robot", mm.Textures.Diffuse)
	assert.Empty(t, mm.Textures.Normal)
	assert.Same(t, mm, r.Material("robot_mat"))

	assert.Equal(t, []TextureFile{{Ref: "textures/entity/robot", Source: "C:\\work\\robot.PNG"}}, r.Textures)
}

func TestExportAnimations(t *testing.T) {
	r, err := New(config.Default()).Export(testScene(""), "robot")
	require.NoError(t, err)

	require.NotNil(t, r.Animations)
	assert.Equal(t, []string{"animation.walk"}, r.Animations.Names())
	walk := r.Animations.Animations["animation.walk"]
	assert.Equal(t, "1.0", walk.BlendWeight)
	require.Contains(t, walk.Bones, "arm")

	arm := walk.Bones["arm"]
	assert.Equal(t, badger.Keyframes{
		0:   {LerpMode: badger.LerpCatmullRom, Post: badger.Vector3{0, 0, 0}},
		0.5: {LerpMode: badger.LerpCatmullRom, Post: badger.Vector3{0.1, 0.1, 0.1}},
	}, arm.Position)
	assert.Equal(t, badger.Keyframes{
		0.25: {LerpMode: badger.LerpCatmullRom, Post: badger.Vector3{-10, -10, -10}},
	}, arm.Rotation)
}

func TestExportKeyTimeCollision(t *testing.T) {
	var out bytes.Buffer
	log.SetOutput(&out)
	defer log.SetOutput(os.Stderr)

	s := testScene("")
	cn := s.Stacks[0].Layers[0].CurveNodes[0]
	tick := 1.0 / scene.TimeUnitsPerSecond
	for i := range scene.Channels {
		cn.Channel(i).AddKey(0.5+tick, cn.Default[i]+0.2, scene.InterpolationLinear)
	}

	r, err := New(config.Default()).Export(s, "robot")
	require.NoError(t, err)
	position := r.Animations.Animations["animation.walk"].Bones["arm"].Position
	assert.Len(t, position, 2)
	assert.Equal(t, badger.Vector3{0.2, 0.2, 0.2}, position[0.5].Post)
	assert.Contains(t, out.String(), "collides")
}

func TestExportRootBonePlaceholder(t *testing.T) {
	s := scene.New("crate")
	mat := scene.NewMaterial("crate")
	require.NoError(t, s.AddMaterial(mat))
	addMeshNode(s, "meshNode_0", quad(), mat)

	r, err := New(config.Default()).Export(s, "crate")
	require.NoError(t, err)

	g := r.Model.Geometries[0]
	require.Len(t, g.Bones, 1)
	assert.Equal(t, badger.Bone{
		Name:  badger.RootBoneName,
		Scale: badger.Vector3{1, 1, 1},
	}, g.Bones[0])
	assert.Equal(t, "", g.Meshes[0].Name)
	assert.Empty(t, g.Meshes[0].Indices)
	assert.Equal(t, [][]float64{{1}, {1}, {1}, {1}}, g.Meshes[0].Weights)

	data, err := badger.MarshalModel(r.Model)
	require.NoError(t, err)
	var doc struct {
		Geometry []struct {
			Meshes []struct {
				Positions [][]float64 `json:"positions"`
				Weights   [][]float64 `json:"weights"`
			} `json:"meshes"`
		} `json:"minecraft:geometry"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	mesh := doc.Geometry[0].Meshes[0]
	assert.Len(t, mesh.Weights, len(mesh.Positions))
	assert.Nil(t, r.Animations)

	require.Len(t, r.Materials, 1)
	assert.Equal(t, "crate", r.Materials[0].Name)
	assert.Equal(t, "", r.Materials[0].BaseName)
}

func TestExportUntriangulated(t *testing.T) {
	s := scene.New("blob")
	mesh := scene.NewMesh("blob")
	mesh.ControlPoints = make([]mgl64.Vec3, 5)
	mesh.AddPolygon(0, 1, 2)
	mesh.AddPolygon(2, 3, 4)
	mesh.AddPolygon(0, 1)
	mesh.AddPolygon(3, 4)
	mat := scene.NewMaterial("blob")
	require.NoError(t, s.AddMaterial(mat))
	addMeshNode(s, "meshNode_0_blob", mesh, mat)

	_, err := New(config.Default()).Export(s, "blob")
	var untriangulated *badger.UntriangulatedMeshError
	require.True(t, errors.As(err, &untriangulated), "got %v", err)
	assert.Equal(t, 4, untriangulated.Polygons)
	assert.Equal(t, 10, untriangulated.PolygonVertices)
}

func TestExportBoneOrder(t *testing.T) {
	s := scene.New("tree")
	root := joint(s.Root, "root")
	a := joint(root, "a")
	joint(a, "a1")
	joint(a, "a2")
	b := joint(root, "b")
	joint(b, "b1")
	group := root.AddChild(scene.NewNode("group"))
	group.Attribute = &scene.Null{Name: "group"}
	joint(group, "c")

	r, err := New(config.Default()).Export(s, "tree")
	require.NoError(t, err)

	g := r.Model.Geometries[0]
	var names, parents []string
	for _, b := range g.Bones {
		names = append(names, b.Name)
		parents = append(parents, b.Parent)
	}
	assert.Equal(t, []string{"root", "a", "a1", "a2", "b", "b1", "c"}, names)
	assert.Equal(t, []string{"", "root", "a", "a", "root", "b", "root"}, parents)
	assert.Contains(t, g.Bones[0].Locators, "group")

	_, err = badger.NewSkeleton(g.Bones)
	assert.NoError(t, err)
	assert.Empty(t, g.Meshes)
}

func TestExportMissingMaterial(t *testing.T) {
	s := scene.New("naked")
	addMeshNode(s, "meshNode_0_naked", quad())

	_, err := New(config.Default()).Export(s, "naked")
	var missing *badger.MissingMaterialError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, "meshNode_0_naked", missing.Mesh)
}

func TestExportMultipleMaterialsUsesFirst(t *testing.T) {
	s := scene.New("duo")
	first := scene.NewMaterial("first___entity")
	second := scene.NewMaterial("second___entity")
	require.NoError(t, s.AddMaterial(first))
	require.NoError(t, s.AddMaterial(second))
	addMeshNode(s, "meshNode_0_duo", quad(), first, second)

	r, err := New(config.Default()).Export(s, "duo")
	require.NoError(t, err)
	assert.Equal(t, "first", r.Model.Geometries[0].Meshes[0].Material)
	require.Len(t, r.Materials, 1)
	assert.Equal(t, "entity", r.Materials[0].BaseName)
}

func TestExportUnsupportedCurves(t *testing.T) {
	for name, mutate := range map[string]func(cn *scene.AnimCurveNode){
		"key count mismatch": func(cn *scene.AnimCurveNode) {
			cn.Channel(1).AddKey(1, 0, scene.InterpolationLinear)
		},
		"key time mismatch": func(cn *scene.AnimCurveNode) {
			cn.Channel(2).Keys[1].Time = 0.75
		},
		"scaling": func(cn *scene.AnimCurveNode) {
			cn.Property = scene.PropertyScaling
		},
		"missing channel": func(cn *scene.AnimCurveNode) {
			cn.Channels[0] = nil
		},
		"extra channel": func(cn *scene.AnimCurveNode) {
			cn.Unsupported = append(cn.Unsupported, "d|W")
		},
		"second destination": func(cn *scene.AnimCurveNode) {
			cn.ExtraTargets = append(cn.ExtraTargets, "root_bone.Lcl Translation")
		},
		"not a joint": func(cn *scene.AnimCurveNode) {
			cn.Target = cn.Target.Children[0]
		},
	} {
		t.Run(name, func(t *testing.T) {
			s := testScene("")
			mutate(s.Stacks[0].Layers[0].CurveNodes[0])

			_, err := New(config.Default()).Export(s, "robot")
			var unsupported *badger.UnsupportedCurveError
			require.True(t, errors.As(err, &unsupported), "got %v", err)
			assert.Equal(t, "animation.walk", unsupported.Animation)
		})
	}
}

func TestResultWrite(t *testing.T) {
	src := t.TempDir()
	texture := filepath.Join(src, "robot.png")
	require.NoError(t, os.WriteFile(texture, []byte("png"), 0666))

	r, err := New(config.Default()).Export(testScene(texture), "robot")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "pack")
	require.NoError(t, r.Write(out))

	data, err := os.ReadFile(filepath.Join(out, "models", "entity", "robot.model.json"))
	require.NoError(t, err)
	model, err := badger.ParseModel("robot.model.json", data)
	require.NoError(t, err)
	assert.Equal(t, "geometry.robot", model.Geometries[0].Identifier)
	assert.Equal(t, r.Model.Geometries[0].Meshes[0].Positions, model.Geometries[0].Meshes[0].Positions)

	data, err = os.ReadFile(filepath.Join(out, "materials", "meta_materials", "robot_mat.json"))
	require.NoError(t, err)
	mm, err := badger.ParseMetaMaterial("robot_mat.json", data)
	require.NoError(t, err)
	assert.Equal(t, "entity_alphatest", mm.BaseName)
	assert.Equal(t, "textures/entity/robot", mm.Textures.Diffuse)

	data, err = os.ReadFile(filepath.Join(out, "animations", "robot.animations.json"))
	require.NoError(t, err)
	set, err := badger.ParseAnimationSet("robot.animations.json", data)
	require.NoError(t, err)
	assert.Contains(t, set.Animations, "animation.walk")

	data, err = os.ReadFile(filepath.Join(out, "textures", "entity", "robot.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}
