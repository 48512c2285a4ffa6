package badger

import (
	"sort"
	"strings"
)

// Reserved key of the bone record holding the bind pose rotation.
// The renderer expects it verbatim.
const BindPoseKey = "\x01\x02\x03\x04\x05__"

const RootBoneName = "minecraft:geometry_root_bone"

const (
	ModelFormatVersion     = "1.14.0"
	MaterialFormatVersion  = "1.8.0"
	EntityFormatVersion    = "1.8.0"
	AnimationFormatVersion = "1.8.0"
)

const (
	GeometryPrefix  = "geometry."
	AnimationPrefix = "animation."
)

const (
	MaterialDelimiter      = ":"
	SceneMaterialDelimiter = "___"
)

type Vector2 [2]float64
type Vector3 [3]float64
type Vector4 [4]float64

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

// FlipV converts a texture coordinate between top-left and bottom-left origin.
func FlipV(uv Vector2) Vector2 { return Vector2{uv[0], 1 - uv[1]} }

type BoneLocator struct {
	Offset       Vector3
	Rotation     Vector3
	DiscardScale bool
}

type Bone struct {
	Name             string
	Parent           string
	Pivot            Vector3
	Scale            Vector3
	BindPoseRotation Vector3
	Locators         map[string]BoneLocator
}

func NewRootBone() Bone {
	return Bone{
		Name:  RootBoneName,
		Scale: Vector3{1, 1, 1},
	}
}

// LocatorNames returns locator names in stable order
func (b *Bone) LocatorNames() []string {
	names := make([]string, 0, len(b.Locators))
	for name := range b.Locators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Influence struct {
	Bone   string
	Weight float64
}

type Mesh struct {
	Name     string
	Material string

	Positions []Vector3
	Triangles []int32

	Normals [][]Vector4
	UVs     [][]Vector2
	Colors  [][]Vector4

	// per position bone names and weights, Indices[i][j] is paired with Weights[i][j]
	Indices [][]string
	Weights [][]float64
}

func (m *Mesh) HasSkin() bool { return len(m.Indices) != 0 }

func (m *Mesh) Influences(vertex int) []Influence {
	if vertex >= len(m.Indices) {
		return nil
	}
	result := make([]Influence, len(m.Indices[vertex]))
	for i, bone := range m.Indices[vertex] {
		result[i].Bone = bone
		if vertex < len(m.Weights) && i < len(m.Weights[vertex]) {
			result[i].Weight = m.Weights[vertex][i]
		}
	}
	return result
}

type Geometry struct {
	Identifier string
	Bones      []Bone
	// set when bones are inherited from another model ("geometry.<name>")
	BonesReference string
	Meshes         []Mesh
}

// InheritedModel returns name of the model the bones are taken from
func (g *Geometry) InheritedModel() string {
	return strings.TrimPrefix(g.BonesReference, GeometryPrefix)
}

type Model struct {
	FormatVersion string
	Geometries    []Geometry
}

type Textures struct {
	Diffuse  string
	Coeff    string
	Emissive string
	Normal   string
}

func (t Textures) IsEmpty() bool {
	return t.Diffuse == "" && t.Coeff == "" && t.Emissive == "" && t.Normal == ""
}

type MetaMaterial struct {
	FormatVersion string
	Name          string
	BaseName      string
	Material      string
	Culling       string
	Textures      Textures
}

// FullName is the document key: name and base name joined with ':'
func (m *MetaMaterial) FullName() string {
	return JoinMaterialName(m.Name, m.BaseName, MaterialDelimiter)
}

// SplitMaterialName splits on the last delimiter occurrence.
func SplitMaterialName(full, delimiter string) (name, baseName string) {
	if i := strings.LastIndex(full, delimiter); i >= 0 {
		return full[:i], full[i+len(delimiter):]
	}
	return full, ""
}

func JoinMaterialName(name, baseName, delimiter string) string {
	if baseName == "" {
		return name
	}
	return name + delimiter + baseName
}

type FaceAnimation struct {
	Columns      int
	Rows         int
	BlinkFrame   int
	DefaultFrame int
}

// Cell returns grid column and row of frame
func (fa *FaceAnimation) Cell(frame int) (column, row int) {
	if fa.Columns <= 0 {
		return 0, 0
	}
	return frame % fa.Columns, frame / fa.Columns
}

type Entity struct {
	FormatVersion string
	FaceAnimation *FaceAnimation
	Templates     []string
	// components this converter does not interpret, kept as raw json values
	Extra map[string]interface{}
}

// TemplateNames strips namespace prefixes ("badger:base" -> "base")
func (e *Entity) TemplateNames() []string {
	names := make([]string, len(e.Templates))
	for i, t := range e.Templates {
		if j := strings.IndexByte(t, ':'); j >= 0 {
			t = t[j+1:]
		}
		names[i] = t
	}
	return names
}

// ApplyTemplate fills components missing on e from parent. Set components are never overwritten.
func (e *Entity) ApplyTemplate(parent *Entity) {
	if e.FaceAnimation == nil && parent.FaceAnimation != nil {
		fa := *parent.FaceAnimation
		e.FaceAnimation = &fa
	}
	for key, value := range parent.Extra {
		if e.Extra == nil {
			e.Extra = make(map[string]interface{})
		}
		if _, ok := e.Extra[key]; !ok {
			e.Extra[key] = cloneValue(value)
		}
	}
}

type Keyframe struct {
	LerpMode string
	Post     Vector3
}

// Keyframes maps time in seconds to a delta from the default pose
type Keyframes map[float64]Keyframe

func (k Keyframes) Times() []float64 {
	times := make([]float64, 0, len(k))
	for t := range k {
		times = append(times, t)
	}
	sort.Float64s(times)
	return times
}

type AnimationBone struct {
	LODDistance float64
	Position    Keyframes
	Rotation    Keyframes
}

type Animation struct {
	AnimTimeUpdate string
	BlendWeight    string
	Bones          map[string]AnimationBone
}

func (a *Animation) BoneNames() []string {
	names := make([]string, 0, len(a.Bones))
	for name := range a.Bones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type AnimationSet struct {
	FormatVersion string
	Animations    map[string]Animation
}

func (s *AnimationSet) Names() []string {
	names := make([]string, 0, len(s.Animations))
	for name := range s.Animations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
