// Package importer builds a scene graph out of badger assets resolved from asset packs.
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/resources"
	"github.com/mogaika/badger_converter/scene"
)

const (
	meshNodePrefix = "meshNode_"
	meshPrefix     = "mesh_"
	stackSuffix    = "_stack"
)

type Importer struct {
	cfg    *config.Config
	loader *resources.Loader

	// generated on first material, reused by every scene of this importer
	implementation *scene.Implementation
}

func New(cfg *config.Config, loader *resources.Loader) *Importer {
	return &Importer{cfg: cfg, loader: loader}
}

type importContext struct {
	*Importer

	name  string
	scene *scene.Scene

	joints    map[string]*scene.Node
	materials map[string]*scene.Material
}

// Import resolves model with all its dependencies and builds a scene named after it
func (imp *Importer) Import(modelName string) (*scene.Scene, error) {
	model, err := imp.loader.GetModel(modelName)
	if err != nil {
		return nil, err
	}
	if len(model.Geometries) != 1 {
		return nil, &badger.SchemaError{
			Document: modelName + ".model.json",
			Field:    "minecraft:geometry",
			Reason:   fmt.Sprintf("exactly one geometry is supported, got %d", len(model.Geometries)),
		}
	}
	geometry := &model.Geometries[0]

	ic := &importContext{
		Importer:  imp,
		name:      modelName,
		scene:     scene.New(modelName),
		joints:    make(map[string]*scene.Node),
		materials: make(map[string]*scene.Material),
	}

	log.Info("Importing bones", "model", modelName, "count", len(geometry.Bones))
	for i := range geometry.Bones {
		if err := ic.importBone(&geometry.Bones[i]); err != nil {
			return nil, err
		}
	}

	log.Info("Importing meshes", "model", modelName, "count", len(geometry.Meshes))
	for i := range geometry.Meshes {
		if err := ic.importMesh(i, &geometry.Meshes[i]); err != nil {
			return nil, errors.Wrapf(err, "Failed to import mesh #%d", i)
		}
	}

	if err := ic.importFaceAnimation(); err != nil {
		return nil, err
	}

	set, ok, err := imp.loader.GetAnimations(modelName)
	if err != nil {
		return nil, err
	}
	if ok {
		log.Info("Importing animations", "model", modelName, "count", len(set.Animations))
		for _, name := range set.Names() {
			if err := ic.importAnimation(name, set.Animations[name]); err != nil {
				return nil, err
			}
		}
	}

	return ic.scene, nil
}

func (ic *importContext) importBone(b *badger.Bone) error {
	log.Debug("Importing bone", "name", b.Name)
	if _, dup := ic.joints[b.Name]; dup {
		return &badger.SchemaError{Document: ic.name + ".model.json", Field: "bones", Reason: fmt.Sprintf("duplicate bone %q", b.Name)}
	}

	parent := ic.scene.Root
	skeletonType := scene.SkeletonRoot
	if b.Parent != "" {
		var ok bool
		if parent, ok = ic.joints[b.Parent]; !ok {
			return &badger.MissingParentError{Bone: b.Name, Parent: b.Parent}
		}
		skeletonType = scene.SkeletonLimbNode
	}

	n := scene.NewNode(b.Name)
	n.Attribute = &scene.Skeleton{Name: b.Name + "_bone", Type: skeletonType}
	n.RotationActive = true
	n.Translation = mgl64.Vec3(b.Pivot)
	n.Rotation = mgl64.Vec3(b.BindPoseRotation)
	n.Scaling = mgl64.Vec3(b.Scale)

	for _, name := range b.LocatorNames() {
		l := b.Locators[name]
		ln := n.AddChild(scene.NewNode(name))
		ln.Attribute = &scene.Null{Name: name + "_locator"}
		ln.Translation = mgl64.Vec3(l.Offset)
		ln.Rotation = mgl64.Vec3(l.Rotation)
		ln.RotationActive = true
		if l.DiscardScale {
			ln.InheritType = scene.InheritRrs
		} else {
			ln.InheritType = scene.InheritRSrs
		}
	}

	parent.AddChild(n)
	ic.joints[b.Name] = n
	return nil
}

func vec4(v badger.Vector4) mgl64.Vec4 { return mgl64.Vec4(v) }

func (ic *importContext) importMesh(index int, bm *badger.Mesh) error {
	document := ic.name + ".model.json"
	if err := bm.Validate(document, fmt.Sprintf("minecraft:geometry[0].meshes[%d]", index)); err != nil {
		return err
	}

	nodeName := meshNodePrefix + strconv.Itoa(index)
	meshName := meshPrefix + strconv.Itoa(index)
	if bm.Name != "" {
		nodeName += "_" + bm.Name
		meshName += "_" + bm.Name
	}

	mesh := scene.NewMesh(meshName)
	n := ic.scene.Root.AddChild(scene.NewNode(nodeName))
	n.Attribute = mesh
	n.Shading = scene.ShadingTexture

	log.Debug("Importing control points", "mesh", meshName, "count", len(bm.Positions))
	mesh.ControlPoints = make([]mgl64.Vec3, len(bm.Positions))
	for i, p := range bm.Positions {
		mesh.ControlPoints[i] = mgl64.Vec3(p)
	}
	for i := 0; i < len(bm.Triangles); i += 3 {
		mesh.AddPolygon(bm.Triangles[i], bm.Triangles[i+1], bm.Triangles[i+2])
	}

	for _, set := range bm.Normals {
		values := make([]mgl64.Vec4, len(set))
		for i, v := range set {
			values[i] = vec4(v)
		}
		mesh.Normals = append(mesh.Normals, scene.NewLayerElement("", values))
	}
	for _, set := range bm.UVs {
		values := make([]mgl64.Vec2, len(set))
		for i, v := range set {
			values[i] = mgl64.Vec2(badger.FlipV(v))
		}
		mesh.UVs = append(mesh.UVs, scene.NewLayerElement("UVs", values))
	}
	for _, set := range bm.Colors {
		values := make([]mgl64.Vec4, len(set))
		for i, v := range set {
			values[i] = vec4(v)
		}
		mesh.Colors = append(mesh.Colors, scene.NewLayerElement("", values))
	}

	if bm.HasSkin() {
		if err := ic.importSkin(n, mesh, bm); err != nil {
			return err
		}
	}

	mesh.MaterialLayer = &scene.LayerElement[int32]{
		Mapping:   scene.AllSame,
		Reference: scene.Direct,
		Direct:    []int32{0},
	}
	material, err := ic.material(bm.Material)
	if err != nil {
		return err
	}
	n.AddMaterial(material)
	return nil
}

// importSkin creates one cluster per referenced bone, in order of first reference
func (ic *importContext) importSkin(n *scene.Node, mesh *scene.Mesh, bm *badger.Mesh) error {
	log.Debug("Assigning mesh to bones", "mesh", mesh.Name)
	skin := &scene.Skin{Name: mesh.Name + "_skin"}
	clusters := make(map[string]*scene.Cluster)

	for i, bones := range bm.Indices {
		for j, bone := range bones {
			c, ok := clusters[bone]
			if !ok {
				link, found := ic.joints[bone]
				if !found {
					return &badger.SchemaError{
						Document: ic.name + ".model.json",
						Field:    fmt.Sprintf("%s.indices[%d][%d]", mesh.Name, i, j),
						Reason:   fmt.Sprintf("bone %q is not defined", bone),
					}
				}
				c = &scene.Cluster{
					Name:     mesh.Name + "_" + bone + "_cluster",
					Link:     link,
					LinkMode: scene.LinkTotalOne,
				}
				clusters[bone] = c
				skin.Clusters = append(skin.Clusters, c)
			}
			c.Add(int32(i), bm.Weights[i][j])
		}
	}

	transform := scene.EvaluateGlobalTransform(n)
	for _, c := range skin.Clusters {
		c.Transform = transform
		c.TransformLink = scene.EvaluateGlobalTransform(c.Link)
	}
	mesh.Skins = append(mesh.Skins, skin)
	return nil
}

func (ic *importContext) importFaceAnimation() error {
	entity, err := ic.loader.GetEntity(ic.name)
	if err != nil {
		var notFound *badger.AssetNotFoundError
		if errors.As(err, &notFound) && notFound.Kind == string(resources.KindEntity) && notFound.Name == ic.name {
			log.Debug("No entity for model", "model", ic.name)
			return nil
		}
		return err
	}
	fa := entity.FaceAnimation
	if fa == nil {
		return nil
	}

	document := ic.name + ".entity.json"
	if fa.Columns <= 0 || fa.Rows <= 0 {
		return &badger.SchemaError{Document: document, Field: "badger:face_animation",
			Reason: fmt.Sprintf("grid %dx%d is empty", fa.Columns, fa.Rows)}
	}
	materialName := "mat_" + ic.name + "_face"
	m, ok := ic.materials[materialName]
	if !ok {
		return &badger.SchemaError{Document: document, Field: "badger:face_animation",
			Reason: fmt.Sprintf("face material %q is not used by the model", materialName)}
	}

	log.Info("Setting UV offset and scale for face material", "material", materialName)
	width := 1.0 / float64(fa.Columns)
	height := 1.0 / float64(fa.Rows)
	column, row := fa.Cell(fa.DefaultFrame)
	m.SetProperty(scene.PBSUVScale, scene.PropertyFloat2, mgl64.Vec2{width, height})
	m.SetProperty(scene.PBSUVOffset, scene.PropertyFloat2, mgl64.Vec2{width * float64(column), height * float64(row)})
	return nil
}

func (ic *importContext) importAnimation(name string, a badger.Animation) error {
	short := strings.TrimPrefix(name, badger.AnimationPrefix)
	log.Debug("Importing animation", "name", short)

	stack := scene.NewAnimStack(short + stackSuffix)
	layer := stack.AddLayer(scene.NewAnimLayer(short, scene.BlendAdditive))

	for _, boneName := range a.BoneNames() {
		n, ok := ic.joints[boneName]
		if !ok {
			return &badger.SchemaError{
				Document: ic.name + ".animations.json",
				Field:    "animations." + name + ".bones." + boneName,
				Reason:   "bone is not defined in the model",
			}
		}
		track := a.Bones[boneName]
		addKeyframes(layer, n, "T", scene.PropertyTranslation, n.Translation, track.Position)
		addKeyframes(layer, n, "R", scene.PropertyRotation, n.Rotation, track.Rotation)
	}

	return ic.scene.AddStack(stack)
}

// addKeyframes keys the property at bind value plus post delta, linearly
func addKeyframes(layer *scene.AnimLayer, n *scene.Node, curveName, property string, bind mgl64.Vec3, keys badger.Keyframes) {
	if len(keys) == 0 {
		return
	}
	cn := layer.AddCurveNode(scene.NewAnimCurveNode(curveName, n, property))
	cn.Default = bind
	for _, t := range keys.Times() {
		post := keys[t].Post
		for i := range scene.Channels {
			cn.Channel(i).AddKey(t, bind[i]+post[i], scene.InterpolationLinear)
		}
	}
}
