package importer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/exporter"
	"github.com/mogaika/badger_converter/fbxscene"
	"github.com/mogaika/badger_converter/resources"
	"github.com/mogaika/badger_converter/scene"
)

const robotModel = `{"format_version": "1.14.0", "minecraft:geometry": [{
	"description": {"identifier": "geometry.robot"},
	"bones": [
		{"name": "root", "pivot": [0, 0, 0]},
		{"name": "arm", "parent": "root", "pivot": [0, 12, 0],
			"\u0001\u0002\u0003\u0004\u0005__": {"bind_pose_rotation": [0, 0, 45]},
			"locators": {"hand": {"offset": [1, 2, 3], "discard_scale": true}}}
	],
	"meshes": [
		{"meta_material": "robot_mat", "model_name": "body",
			"positions": [[0, 0, 0], [1, 0, 0], [1, 1, 0], [0, 1, 0]],
			"triangles": [0, 1, 2, 0, 2, 3],
			"normal_sets": [[[0, 0, 1, 0], [0, 0, 1, 0], [0, 0, 1, 0], [0, 0, 1, 0]]],
			"uv_sets": [[[0, 1], [1, 1], [1, 0], [0, 0]]],
			"color_sets": [[[1, 1, 1, 1], [1, 0, 0, 1], [0, 1, 0, 1], [0, 0, 1, 1]]],
			"weights": [[1], [1], [0.5, 0.5], [1]],
			"indices": [["root"], ["root"], ["root", "arm"], ["arm"]]},
		{"meta_material": "mat_robot_face", "model_name": "face",
			"positions": [[0, 0, 0], [1, 0, 0], [0, 1, 0]],
			"triangles": [0, 1, 2]}
	]}]}`

const robotMaterial = `{"format_version": "1.8.0", "robot_mat:entity_alphatest": {
	"material": "entity_alphatest", "culling": "back",
	"textures": {"diffuseMap": "textures/entity/robot", "coeffMap": "textures/entity/robot_mer"}}}`

const faceMaterial = `{"format_version": "1.8.0", "mat_robot_face": {"textures": {}}}`

const robotEntity = `{"format_version": "1.8.0", "minecraft:client_entity": {"components": {
	"badger:template": "badger:robot_base"}}}`

const robotBaseEntity = `{"format_version": "1.8.0", "minecraft:client_entity": {"components": {
	"badger:face_animation": {"anim_columns": 4, "anim_rows": 2, "blink_frame": 1, "default_frame": 5}}}}`

const robotAnimations = `{"format_version": "1.8.0", "animations": {"animation.wave": {
	"anim_time_update": "query.anim_time + query.delta_time", "blend_weight": "1.0",
	"bones": {"arm": {"lod_distance": 0, "rotation": {
		"0.0": {"lerp_mode": "catmullrom", "post": [0, 0, 0]},
		"0.5": {"lerp_mode": "catmullrom", "post": [10, 0, -5]}}}}}}}`

func writePack(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
		require.NoError(t, os.WriteFile(path, []byte(content), 0666))
	}
	return root
}

func robotPack(t *testing.T) string {
	return writePack(t, map[string]string{
		"models/entity/robot.model.json":              robotModel,
		"materials/meta_materials/robot_mat.json":      robotMaterial,
		"materials/meta_materials/mat_robot_face.json": faceMaterial,
		"entity/robot.entity.json":                     robotEntity,
		"entity/robot_base.entity.json":                robotBaseEntity,
		"animations/robot.animations.json":             robotAnimations,
		"textures/entity/robot.png":                    "png",
		"textures/entity/robot_mer.tga":                "tga",
	})
}

func importRobot(t *testing.T) *scene.Scene {
	cfg := config.Default()
	s, err := New(cfg, resources.NewLoader(cfg, robotPack(t))).Import("robot")
	require.NoError(t, err)
	return s
}

func TestImportSkeleton(t *testing.T) {
	s := importRobot(t)
	assert.Equal(t, "robot", s.Name)

	root := s.FindNode("root")
	require.NotNil(t, root)
	assert.Same(t, s.Root, root.Parent)
	require.NotNil(t, root.Skeleton())
	assert.Equal(t, scene.SkeletonRoot, root.Skeleton().Type)
	assert.Equal(t, "root_bone", root.Skeleton().Name)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, root.Scaling)

	arm := s.FindNode("arm")
	require.NotNil(t, arm)
	assert.Same(t, root, arm.Parent)
	assert.Equal(t, scene.SkeletonLimbNode, arm.Skeleton().Type)
	assert.True(t, arm.RotationActive)
	assert.Equal(t, mgl64.Vec3{0, 12, 0}, arm.Translation)
	assert.Equal(t, mgl64.Vec3{0, 0, 45}, arm.Rotation)

	hand := s.FindNode("hand")
	require.NotNil(t, hand)
	assert.Same(t, arm, hand.Parent)
	require.NotNil(t, hand.Null())
	assert.Equal(t, "hand_locator", hand.Null().Name)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, hand.Translation)
	assert.Equal(t, scene.InheritRrs, hand.InheritType)
}

func TestImportMesh(t *testing.T) {
	s := importRobot(t)

	n := s.FindNode("meshNode_0_body")
	require.NotNil(t, n)
	m := n.Mesh()
	require.NotNil(t, m)
	assert.Equal(t, "mesh_0_body", m.Name)
	assert.Equal(t, scene.ShadingTexture, n.Shading)
	assert.Equal(t, []int{3, 3}, m.PolygonSizes)
	assert.Equal(t, []int32{0, 1, 2, 0, 2, 3}, m.PolygonVertices)

	require.Len(t, m.UVs, 1)
	assert.Equal(t, "UVs", m.UVs[0].Name)
	assert.Equal(t, []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, m.UVs[0].Direct)
	require.Len(t, m.Normals, 1)
	require.Len(t, m.Colors, 1)
	assert.Equal(t, mgl64.Vec4{0, 0, 1, 1}, m.Colors[0].Direct[3])

	require.Len(t, m.Skins, 1)
	skin := m.Skins[0]
	assert.Equal(t, "mesh_0_body_skin", skin.Name)
	require.Len(t, skin.Clusters, 2)
	rootCluster, armCluster := skin.Clusters[0], skin.Clusters[1]
	assert.Equal(t, "mesh_0_body_root_cluster", rootCluster.Name)
	assert.Equal(t, []int32{0, 1, 2}, rootCluster.Indices)
	assert.Equal(t, []float64{1, 1, 0.5}, rootCluster.Weights)
	assert.Equal(t, []int32{2, 3}, armCluster.Indices)
	assert.Equal(t, []float64{0.5, 1}, armCluster.Weights)
	assert.Equal(t, scene.LinkTotalOne, armCluster.LinkMode)
	assert.Same(t, s.FindNode("arm"), armCluster.Link)
	assert.Equal(t, scene.EvaluateGlobalTransform(armCluster.Link), armCluster.TransformLink)
	assert.Equal(t, mgl64.Ident4(), armCluster.Transform)

	face := s.FindNode("meshNode_1_face")
	require.NotNil(t, face)
	assert.Empty(t, face.Mesh().Skins)
}

func TestImportMaterials(t *testing.T) {
	s := importRobot(t)

	require.Len(t, s.Materials, 2)
	m := s.FindMaterial("robot_mat___entity_alphatest")
	require.NotNil(t, m)
	assert.Same(t, m, s.FindNode("meshNode_0_body").Materials[0])

	assert.Equal(t, scene.PBSTypeIdValue, m.Property(scene.PBSTypeId).Int())
	assert.Equal(t, 1.0, m.Property(scene.PBSUseColorMap).Float())
	assert.Equal(t, 0.0, m.Property(scene.PBSUseNormalMap).Float())
	assert.Equal(t, 1.0, m.Property(scene.PBSUseRoughMap).Float())
	assert.Equal(t, mgl64.Vec2{1, 1}, m.Property(scene.PBSUVScale).Vec2())
	assert.Equal(t, "entity_alphatest", m.Property(scene.PropertyBadgerMaterial).String())
	assert.Equal(t, "back", m.Property(scene.PropertyBadgerCulling).String())

	diffuse := m.TextureOf(scene.PBSColorMap)
	require.NotNil(t, diffuse)
	assert.Equal(t, "robot_mat_diffuse", diffuse.Name)
	assert.Equal(t, "robot.png", filepath.Base(diffuse.FileName))
	assert.True(t, filepath.IsAbs(diffuse.FileName))

	coeff := m.TextureOf(scene.PBSMetallicMap)
	require.NotNil(t, coeff)
	assert.Same(t, coeff, m.TextureOf(scene.PBSRoughnessMap))
	assert.Equal(t, "robot_mer.tga", coeff.RelativeFileName)
	assert.Nil(t, m.TextureOf(scene.PBSNormalMap))
	assert.Len(t, s.Textures, 2)

	require.Len(t, s.Implementations, 1)
	impl := s.Implementations[0]
	assert.Same(t, impl, m.Implementation)
	assert.Same(t, impl, s.FindMaterial("mat_robot_face").Implementation)
	assert.Equal(t, "SFX_PBS_SHADER", impl.RenderAPI)
	assert.Equal(t, []byte{}, impl.ShaderGraph)
	require.Len(t, impl.Table.Entries, len(pbsProperties))
	assert.Equal(t, scene.BindingEntry{
		Source:          "Maya|TypeId",
		SourceType:      "FbxPropertyEntry",
		Destination:     "TypeId",
		DestinationType: "FbxSemanticEntry",
	}, impl.Table.Entries[0])
}

func TestImportFaceAnimation(t *testing.T) {
	s := importRobot(t)

	face := s.FindMaterial("mat_robot_face")
	require.NotNil(t, face)
	// default frame 5 of a 4x2 grid is column 1, row 1
	assert.Equal(t, mgl64.Vec2{0.25, 0.5}, face.Property(scene.PBSUVScale).Vec2())
	assert.Equal(t, mgl64.Vec2{0.25, 0.5}, face.Property(scene.PBSUVOffset).Vec2())
}

func TestImportAnimations(t *testing.T) {
	s := importRobot(t)

	require.Len(t, s.Stacks, 1)
	stack := s.Stacks[0]
	assert.Equal(t, "wave_stack", stack.Name)
	require.Len(t, stack.Layers, 1)
	layer := stack.Layers[0]
	assert.Equal(t, "wave", layer.Name)
	assert.Equal(t, scene.BlendAdditive, layer.BlendMode)

	arm := s.FindNode("arm")
	assert.Nil(t, layer.CurveNode(arm, scene.PropertyTranslation))
	cn := layer.CurveNode(arm, scene.PropertyRotation)
	require.NotNil(t, cn)
	assert.Equal(t, []scene.AnimKey{
		{Time: 0, Value: 45, Interpolation: scene.InterpolationLinear},
		{Time: 0.5, Value: 40, Interpolation: scene.InterpolationLinear},
	}, cn.Channel(2).Keys)
	assert.Equal(t, 10.0, cn.Channel(0).Keys[1].Value)
}

func TestImportWithoutOptionalDocuments(t *testing.T) {
	root := writePack(t, map[string]string{
		"models/entity/crate.model.json": `{"format_version": "1.14.0", "minecraft:geometry": [{
			"description": {"identifier": "geometry.crate"},
			"bones": [{"name": "minecraft:geometry_root_bone", "pivot": [0, 0, 0]}],
			"meshes": [{"meta_material": "crate", "positions": [[0, 0, 0], [1, 0, 0], [0, 1, 0]], "triangles": [0, 1, 2]}]}]}`,
		"materials/crate.json": `{"format_version": "1.8.0", "crate": {"textures": {}}}`,
	})
	cfg := config.Default()
	s, err := New(cfg, resources.NewLoader(cfg, root)).Import("crate")
	require.NoError(t, err)
	assert.Empty(t, s.Stacks)
	assert.NotNil(t, s.FindNode("meshNode_0"))
	assert.NotNil(t, s.FindMaterial("crate"))
}

func TestImportErrors(t *testing.T) {
	const material = `{"format_version": "1.8.0", "m": {"textures": {}}}`
	for name, tc := range map[string]struct {
		model  string
		extra  map[string]string
		target interface{}
	}{
		"missing parent": {
			model: `{"format_version": "1.14.0", "minecraft:geometry": [{"description": {"identifier": "geometry.x"},
				"bones": [{"name": "arm", "parent": "ghost", "pivot": [0, 0, 0]}]}]}`,
			target: new(*badger.MissingParentError),
		},
		"unknown skin bone": {
			model: `{"format_version": "1.14.0", "minecraft:geometry": [{"description": {"identifier": "geometry.x"},
				"bones": [{"name": "root", "pivot": [0, 0, 0]}],
				"meshes": [{"meta_material": "m", "positions": [[0, 0, 0], [1, 0, 0], [0, 1, 0]], "triangles": [0, 1, 2],
					"weights": [[1], [1], [1]], "indices": [["root"], ["root"], ["ghost"]]}]}]}`,
			target: new(*badger.SchemaError),
		},
		"two geometries": {
			model: `{"format_version": "1.14.0", "minecraft:geometry": [
				{"description": {"identifier": "geometry.x"}, "bones": []},
				{"description": {"identifier": "geometry.y"}, "bones": []}]}`,
			target: new(*badger.SchemaError),
		},
		"missing material": {
			model: `{"format_version": "1.14.0", "minecraft:geometry": [{"description": {"identifier": "geometry.x"},
				"bones": [], "meshes": [{"meta_material": "nope", "positions": [[0, 0, 0], [1, 0, 0], [0, 1, 0]], "triangles": [0, 1, 2]}]}]}`,
			target: new(*badger.AssetNotFoundError),
		},
		"face material not used": {
			model: `{"format_version": "1.14.0", "minecraft:geometry": [{"description": {"identifier": "geometry.x"}, "bones": []}]}`,
			extra: map[string]string{"entity/x.entity.json": robotBaseEntity},
			target: new(*badger.SchemaError),
		},
		"animated bone not in model": {
			model: `{"format_version": "1.14.0", "minecraft:geometry": [{"description": {"identifier": "geometry.x"},
				"bones": [{"name": "root", "pivot": [0, 0, 0]}]}]}`,
			extra:  map[string]string{"animations/x.animations.json": robotAnimations},
			target: new(*badger.SchemaError),
		},
	} {
		t.Run(name, func(t *testing.T) {
			files := map[string]string{
				"models/entity/x.model.json": tc.model,
				"materials/m.json":           material,
			}
			for k, v := range tc.extra {
				files[k] = v
			}
			cfg := config.Default()
			_, err := New(cfg, resources.NewLoader(cfg, writePack(t, files))).Import("x")
			require.Error(t, err)
			assert.True(t, errors.As(err, tc.target), "got %v", err)
		})
	}
}

func TestImplementationSharedAcrossImports(t *testing.T) {
	cfg := config.Default()
	imp := New(cfg, resources.NewLoader(cfg, robotPack(t)))

	first, err := imp.Import("robot")
	require.NoError(t, err)
	second, err := imp.Import("robot")
	require.NoError(t, err)

	require.Len(t, first.Implementations, 1)
	require.Len(t, second.Implementations, 1)
	assert.Same(t, first.Implementations[0], second.Implementations[0])
	assert.NotSame(t, first.Root, second.Root)
}

// import, write fbx, read it back and export must reproduce the source geometry
func TestRoundTrip(t *testing.T) {
	cfg := config.Default()
	loader := resources.NewLoader(cfg, robotPack(t))
	s, err := New(cfg, loader).Import("robot")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, fbxscene.Write(s, &buf))
	read, err := fbxscene.Read(&buf, "robot")
	require.NoError(t, err)

	r, err := exporter.New(cfg).Export(read, "robot")
	require.NoError(t, err)

	source, err := loader.GetModel("robot")
	require.NoError(t, err)
	want, got := source.Geometries[0], r.Model.Geometries[0]

	assert.Equal(t, want.Identifier, got.Identifier)
	assert.Equal(t, want.Bones, got.Bones)
	require.Len(t, got.Meshes, len(want.Meshes))
	for i := range want.Meshes {
		w, g := want.Meshes[i], got.Meshes[i]
		assert.Equal(t, w.Name, g.Name)
		assert.Equal(t, w.Material, g.Material)
		assert.Equal(t, w.Positions, g.Positions)
		assert.Equal(t, w.Triangles, g.Triangles)
		assert.Equal(t, w.UVs, g.UVs)
		assert.Equal(t, w.Normals, g.Normals)
		assert.Equal(t, w.Colors, g.Colors)
		assert.Equal(t, w.Indices, g.Indices)
		assert.Equal(t, w.Weights, g.Weights)
	}

	mm := r.Material("robot_mat")
	require.NotNil(t, mm)
	assert.Equal(t, "entity_alphatest", mm.BaseName)
	assert.Equal(t, "entity_alphatest", mm.Material)
	assert.Equal(t, "back", mm.Culling)
	assert.Equal(t, "textures/entity/robot", mm.Textures.Diffuse)
	assert.Equal(t, "textures/entity/robot_mer", mm.Textures.Coeff)

	set, ok, err := loader.GetAnimations("robot")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, r.Animations)
	assert.Equal(t, set.Animations["animation.wave"].Bones["arm"].Rotation,
		r.Animations.Animations["animation.wave"].Bones["arm"].Rotation)
}
