package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

type MappingMode int

const (
	ByControlPoint MappingMode = iota
	ByPolygonVertex
	ByPolygon
	AllSame
)

var mappingNames = map[MappingMode]string{
	ByControlPoint:  "ByControlPoint",
	ByPolygonVertex: "ByPolygonVertex",
	ByPolygon:       "ByPolygon",
	AllSame:         "AllSame",
}

func (m MappingMode) String() string { return mappingNames[m] }

func ParseMappingMode(s string) (MappingMode, error) {
	// older writers use ByVertice for control points
	if s == "ByVertice" || s == "ByVertex" {
		return ByControlPoint, nil
	}
	for mode, name := range mappingNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, errors.Errorf("Unknown mapping mode %q", s)
}

type ReferenceMode int

const (
	Direct ReferenceMode = iota
	IndexToDirect
)

func (r ReferenceMode) String() string {
	if r == IndexToDirect {
		return "IndexToDirect"
	}
	return "Direct"
}

func ParseReferenceMode(s string) (ReferenceMode, error) {
	switch s {
	case "Direct":
		return Direct, nil
	case "IndexToDirect", "Index":
		return IndexToDirect, nil
	}
	return 0, errors.Errorf("Unknown reference mode %q", s)
}

// LayerElement is a per-vertex (or per-polygon) data channel of a mesh
type LayerElement[T any] struct {
	Name      string
	Mapping   MappingMode
	Reference ReferenceMode
	Direct    []T
	Index     []int32
}

func NewLayerElement[T any](name string, values []T) *LayerElement[T] {
	return &LayerElement[T]{
		Name:      name,
		Mapping:   ByControlPoint,
		Reference: Direct,
		Direct:    values,
	}
}

// At returns value for mapping slot i (control point, polygon vertex or polygon index)
func (e *LayerElement[T]) At(i int) (T, error) {
	var zero T
	if e.Mapping == AllSame {
		i = 0
	}
	if e.Reference == IndexToDirect {
		if i < 0 || i >= len(e.Index) {
			return zero, errors.Errorf("Layer element %q: index slot %d out of range %d", e.Name, i, len(e.Index))
		}
		i = int(e.Index[i])
	}
	if i < 0 || i >= len(e.Direct) {
		return zero, errors.Errorf("Layer element %q: value %d out of range %d", e.Name, i, len(e.Direct))
	}
	return e.Direct[i], nil
}

// ControlPointValues collapses element to one value per control point.
// For polygon-vertex mapped data the last polygon vertex referencing a control point wins.
func (e *LayerElement[T]) ControlPointValues(m *Mesh) ([]T, error) {
	result := make([]T, len(m.ControlPoints))
	switch e.Mapping {
	case ByControlPoint, AllSame:
		for i := range result {
			v, err := e.At(i)
			if err != nil {
				return nil, err
			}
			result[i] = v
		}
	case ByPolygonVertex:
		for pv, cp := range m.PolygonVertices {
			v, err := e.At(pv)
			if err != nil {
				return nil, err
			}
			if int(cp) >= len(result) {
				return nil, errors.Errorf("Mesh %q: polygon vertex %d references control point %d out of range", m.Name, pv, cp)
			}
			result[cp] = v
		}
	case ByPolygon:
		pv := 0
		for p, size := range m.PolygonSizes {
			v, err := e.At(p)
			if err != nil {
				return nil, err
			}
			for j := 0; j < size; j++ {
				result[m.PolygonVertices[pv+j]] = v
			}
			pv += size
		}
	}
	return result, nil
}

type Mesh struct {
	Name string

	ControlPoints []mgl64.Vec3
	// flat list of control point indices, split by PolygonSizes
	PolygonVertices []int32
	PolygonSizes    []int

	Normals []*LayerElement[mgl64.Vec4]
	UVs     []*LayerElement[mgl64.Vec2]
	Colors  []*LayerElement[mgl64.Vec4]

	// polygon to material index of owning node
	MaterialLayer *LayerElement[int32]

	Skins []*Skin
}

func NewMesh(name string) *Mesh {
	return &Mesh{Name: name}
}

func (m *Mesh) AttributeName() string { return m.Name }

func (m *Mesh) AddPolygon(indices ...int32) {
	m.PolygonVertices = append(m.PolygonVertices, indices...)
	m.PolygonSizes = append(m.PolygonSizes, len(indices))
}

func (m *Mesh) PolygonCount() int { return len(m.PolygonSizes) }

// Polygon returns control point indices of polygon p
func (m *Mesh) Polygon(p int) []int32 {
	start := 0
	for i := 0; i < p; i++ {
		start += m.PolygonSizes[i]
	}
	return m.PolygonVertices[start : start+m.PolygonSizes[p]]
}

// IsTriangulated reports whether every polygon has exactly three vertices
func (m *Mesh) IsTriangulated() bool {
	if len(m.PolygonVertices) != len(m.PolygonSizes)*3 {
		return false
	}
	for _, size := range m.PolygonSizes {
		if size != 3 {
			return false
		}
	}
	return true
}

func (m *Mesh) Validate() error {
	total := 0
	for _, size := range m.PolygonSizes {
		total += size
	}
	if total != len(m.PolygonVertices) {
		return errors.Errorf("Mesh %q: polygon sizes sum to %d, have %d polygon vertices", m.Name, total, len(m.PolygonVertices))
	}
	for i, cp := range m.PolygonVertices {
		if cp < 0 || int(cp) >= len(m.ControlPoints) {
			return errors.Errorf("Mesh %q: polygon vertex %d references control point %d out of range", m.Name, i, cp)
		}
	}
	return nil
}

type LinkMode int

const (
	LinkNormalize LinkMode = iota
	LinkAdditive
	LinkTotalOne
)

func (l LinkMode) String() string {
	switch l {
	case LinkAdditive:
		return "Additive"
	case LinkTotalOne:
		return "TotalOne"
	}
	return "Normalize"
}

type Cluster struct {
	Name     string
	Link     *Node
	LinkMode LinkMode
	Indices  []int32
	Weights  []float64
	// global transforms of mesh and joint at bind time
	Transform     mgl64.Mat4
	TransformLink mgl64.Mat4
}

func (c *Cluster) Add(index int32, weight float64) {
	c.Indices = append(c.Indices, index)
	c.Weights = append(c.Weights, weight)
}

type Skin struct {
	Name     string
	Clusters []*Cluster
}

func (s *Skin) FindCluster(link *Node) *Cluster {
	for _, c := range s.Clusters {
		if c.Link == link {
			return c
		}
	}
	return nil
}
