package gltfutils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/badger_converter/scene"
)

func writePNG(t *testing.T, path string, w, h int) {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0666))
}

func skinnedScene(texturePath string) *scene.Scene {
	s := scene.New("robot")

	root := s.Root.AddChild(scene.NewNode("root_bone"))
	root.Attribute = &scene.Skeleton{Name: "root_bone_bone", Type: scene.SkeletonRoot}
	arm := root.AddChild(scene.NewNode("arm"))
	arm.Attribute = &scene.Skeleton{Name: "arm_bone", Type: scene.SkeletonLimbNode}
	arm.Translation = mgl64.Vec3{0, 2, 0}
	arm.Rotation = mgl64.Vec3{0, 0, 90}

	mesh := scene.NewMesh("mesh_0_body")
	mesh.ControlPoints = []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	mesh.AddPolygon(0, 1, 2, 3)
	mesh.UVs = append(mesh.UVs, scene.NewLayerElement("UVs", []mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}))

	skin := &scene.Skin{Name: "body_skin"}
	rootCluster := &scene.Cluster{Name: "root", Link: root}
	armCluster := &scene.Cluster{Name: "arm", Link: arm}
	rootCluster.Add(0, 1)
	rootCluster.Add(1, 3)
	armCluster.Add(1, 1)
	armCluster.Add(2, 1)
	for _, c := range []*scene.Cluster{rootCluster, armCluster} {
		c.Transform = mgl64.Ident4()
		c.TransformLink = scene.EvaluateGlobalTransform(c.Link)
		skin.Clusters = append(skin.Clusters, c)
	}
	mesh.Skins = append(mesh.Skins, skin)

	n := s.Root.AddChild(scene.NewNode("meshNode_0_body"))
	n.Attribute = mesh

	m := scene.NewMaterial("robot___entity")
	m.SetProperty(scene.PropertyBadgerCulling, scene.PropertyString, "none")
	m.SetProperty(scene.PropertyBadgerMaterial, scene.PropertyString, "entity_alphatest")
	tex := &scene.Texture{Name: "robot_diffuse", FileName: texturePath, RelativeFileName: filepath.Base(texturePath)}
	m.SetProperty(scene.PBSColorMap, scene.PropertyFloat3, mgl64.Vec3{}).ConnectTexture(tex)
	s.AddTexture(tex)
	_ = s.AddMaterial(m)
	n.AddMaterial(m)
	return s
}

func exportAndDecode(t *testing.T, s *scene.Scene, opts Options) *gltf.Document {
	var buf bytes.Buffer
	require.NoError(t, ExportScene(s, &buf, opts))

	doc := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(doc))
	return doc
}

func TestExportScene(t *testing.T) {
	dir := t.TempDir()
	texture := filepath.Join(dir, "robot.png")
	writePNG(t, texture, 64, 32)

	doc := exportAndDecode(t, skinnedScene(texture), Options{MaxTextureSize: 16})

	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, "root_bone", doc.Nodes[0].Name)
	assert.Equal(t, []uint32{1}, doc.Nodes[0].Children)
	assert.Equal(t, "arm", doc.Nodes[1].Name)
	assert.Equal(t, [3]float32{0, 2, 0}, doc.Nodes[1].Translation)
	assert.InDelta(t, 0.7071, doc.Nodes[1].Rotation[2], 1e-3)
	assert.InDelta(t, 0.7071, doc.Nodes[1].Rotation[3], 1e-3)
	assert.ElementsMatch(t, []uint32{0, 2}, doc.Scenes[0].Nodes)

	require.Len(t, doc.Meshes, 1)
	prim := doc.Meshes[0].Primitives[0]
	for _, attr := range []string{"POSITION", "TEXCOORD_0", "JOINTS_0", "WEIGHTS_0"} {
		assert.Contains(t, prim.Attributes, attr)
	}
	require.NotNil(t, prim.Indices)
	assert.Equal(t, uint32(6), doc.Accessors[*prim.Indices].Count)

	require.Len(t, doc.Skins, 1)
	assert.Equal(t, []uint32{0, 1}, doc.Skins[0].Joints)
	require.NotNil(t, doc.Skins[0].InverseBindMatrices)
	ibm := doc.Accessors[*doc.Skins[0].InverseBindMatrices]
	assert.Equal(t, gltf.AccessorMat4, ibm.Type)
	assert.Equal(t, uint32(2), ibm.Count)
	require.NotNil(t, doc.Nodes[2].Skin)

	require.Len(t, doc.Materials, 1)
	mat := doc.Materials[0]
	assert.True(t, mat.DoubleSided)
	assert.Equal(t, gltf.AlphaMask, mat.AlphaMode)
	require.NotNil(t, mat.PBRMetallicRoughness.BaseColorTexture)
	require.Len(t, doc.Textures, 1)
	require.Len(t, doc.Images, 1)
	assert.Equal(t, "image/png", doc.Images[0].MimeType)
}

func TestExportSceneWebP(t *testing.T) {
	dir := t.TempDir()
	texture := filepath.Join(dir, "robot.png")
	writePNG(t, texture, 8, 8)

	doc := exportAndDecode(t, skinnedScene(texture), Options{WebP: true})
	require.Len(t, doc.Images, 1)
	assert.Equal(t, "image/webp", doc.Images[0].MimeType)
	assert.Contains(t, doc.ExtensionsUsed, extTextureWebP)
	assert.Nil(t, doc.Textures[0].Source)
}

func TestExportSceneMissingTexture(t *testing.T) {
	doc := exportAndDecode(t, skinnedScene(filepath.Join(t.TempDir(), "nope.png")), Options{})
	require.Len(t, doc.Materials, 1)
	assert.Nil(t, doc.Materials[0].PBRMetallicRoughness.BaseColorTexture)
	assert.Empty(t, doc.Textures)
}

func TestTextureDirFallback(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "robot.png"), 4, 4)

	doc := exportAndDecode(t, skinnedScene("/somewhere/else/robot.png"), Options{TextureDir: dir})
	assert.Len(t, doc.Textures, 1)
}

func TestDownscale(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 100, 40))
	assert.Equal(t, image.Pt(50, 20), Downscale(img, 50).Bounds().Size())
	assert.Equal(t, image.Pt(100, 40), Downscale(img, 0).Bounds().Size())
	assert.Equal(t, image.Pt(100, 40), Downscale(img, 200).Bounds().Size())

	tall := image.NewNRGBA(image.Rect(0, 0, 10, 1000))
	assert.Equal(t, image.Pt(1, 100), Downscale(tall, 100).Bounds().Size())
}

func TestDecodeImage(t *testing.T) {
	_, err := DecodeImage([]byte("definitely not an image"), "notes.txt")
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 3, 2))))
	img, err := DecodeImage(buf.Bytes(), "anything.tga")
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3, 2), img.Bounds().Size())
}
