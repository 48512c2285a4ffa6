// Package scene is an in-memory FBX-like scene graph: node hierarchy with
// attributes, meshes with layer elements and skins, materials with
// hierarchical properties and animation stacks.
package scene

import (
	"github.com/pkg/errors"
)

type Scene struct {
	Name string
	Root *Node

	Materials       []*Material
	Textures        []*Texture
	Implementations []*Implementation
	Stacks          []*AnimStack
}

func New(name string) *Scene {
	return &Scene{
		Name: name,
		Root: NewNode("RootNode"),
	}
}

// Nodes returns every node below root in pre-order
func (s *Scene) Nodes() []*Node {
	var result []*Node
	s.Root.Walk(func(n *Node) error {
		if n != s.Root {
			result = append(result, n)
		}
		return nil
	})
	return result
}

func (s *Scene) FindNode(name string) *Node {
	return s.Root.FindNode(name)
}

func (s *Scene) FindMaterial(name string) *Material {
	for _, m := range s.Materials {
		if m.Name == name {
			return m
		}
	}
	return nil
}

func (s *Scene) FindStack(name string) *AnimStack {
	for _, st := range s.Stacks {
		if st.Name == name {
			return st
		}
	}
	return nil
}

func (s *Scene) AddMaterial(m *Material) error {
	if s.FindMaterial(m.Name) != nil {
		return errors.Errorf("Material %q already exists", m.Name)
	}
	s.Materials = append(s.Materials, m)
	return nil
}

func (s *Scene) AddTexture(t *Texture) {
	s.Textures = append(s.Textures, t)
}

func (s *Scene) AddImplementation(i *Implementation) {
	s.Implementations = append(s.Implementations, i)
}

func (s *Scene) AddStack(st *AnimStack) error {
	if s.FindStack(st.Name) != nil {
		return errors.Errorf("Animation stack %q already exists", st.Name)
	}
	s.Stacks = append(s.Stacks, st)
	return nil
}
