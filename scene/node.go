package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

type InheritType int

const (
	InheritRrSs InheritType = iota
	InheritRSrs
	// parent scale is not propagated
	InheritRrs
)

type ShadingMode int

const (
	ShadingHard ShadingMode = iota
	ShadingFlat
	ShadingLight
	ShadingTexture
)

type Attribute interface {
	AttributeName() string
}

type SkeletonType int

const (
	SkeletonRoot SkeletonType = iota
	SkeletonLimb
	SkeletonLimbNode
	SkeletonEffector
)

func (t SkeletonType) String() string {
	switch t {
	case SkeletonRoot:
		return "Root"
	case SkeletonLimb:
		return "Limb"
	case SkeletonLimbNode:
		return "LimbNode"
	case SkeletonEffector:
		return "Effector"
	}
	return "Unknown"
}

type Skeleton struct {
	Name string
	Type SkeletonType
}

func (s *Skeleton) AttributeName() string { return s.Name }

type Null struct {
	Name string
}

func (n *Null) AttributeName() string { return n.Name }

type Node struct {
	Name     string
	Parent   *Node
	Children []*Node

	Attribute Attribute

	// Euler XYZ in degrees
	Translation mgl64.Vec3
	Rotation    mgl64.Vec3
	Scaling     mgl64.Vec3

	RotationActive bool
	InheritType    InheritType

	Materials []*Material
	Shading   ShadingMode
}

func NewNode(name string) *Node {
	return &Node{
		Name:    name,
		Scaling: mgl64.Vec3{1, 1, 1},
	}
}

func (n *Node) AddChild(c *Node) *Node {
	c.Parent = n
	n.Children = append(n.Children, c)
	return c
}

func (n *Node) Skeleton() *Skeleton {
	s, _ := n.Attribute.(*Skeleton)
	return s
}

func (n *Node) Mesh() *Mesh {
	m, _ := n.Attribute.(*Mesh)
	return m
}

func (n *Node) Null() *Null {
	nl, _ := n.Attribute.(*Null)
	return nl
}

func (n *Node) IsJoint() bool { return n.Skeleton() != nil }

// Walk visits n and its descendants in pre-order, children in insertion order
func (n *Node) Walk(visit func(*Node) error) error {
	stack := []*Node{n}
	for len(stack) != 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := visit(cur); err != nil {
			return err
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
	return nil
}

// FindNode is a depth-first search including n itself
func (n *Node) FindNode(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.FindNode(name); found != nil {
			return found
		}
	}
	return nil
}

func (n *Node) AddMaterial(m *Material) int {
	for i, existing := range n.Materials {
		if existing == m {
			return i
		}
	}
	n.Materials = append(n.Materials, m)
	return len(n.Materials) - 1
}
