package scene

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

type PropertyType int

const (
	PropertyCompound PropertyType = iota
	PropertyBool
	PropertyInt
	PropertyFloat
	PropertyFloat2
	PropertyFloat3
	PropertyColor
	PropertyString
)

// PropertySeparator joins compound property names ("Maya|uv_scale")
const PropertySeparator = "|"

type Property struct {
	Name     string
	Type     PropertyType
	Value    interface{}
	Parent   *Property
	Children []*Property
	Textures []*Texture
}

// HierarchicalName is the name with all compound ancestors, root excluded
func (p *Property) HierarchicalName() string {
	if p.Parent == nil || p.Parent.Parent == nil {
		return p.Name
	}
	return p.Parent.HierarchicalName() + PropertySeparator + p.Name
}

func (p *Property) Child(name string) *Property {
	for _, c := range p.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (p *Property) add(name string, t PropertyType, value interface{}) *Property {
	if c := p.Child(name); c != nil {
		c.Type = t
		c.Value = value
		return c
	}
	c := &Property{Name: name, Type: t, Value: value, Parent: p}
	p.Children = append(p.Children, c)
	return c
}

// Descendants returns every non-root property below p in pre-order
func (p *Property) Descendants() []*Property {
	var result []*Property
	for _, c := range p.Children {
		result = append(result, c)
		result = append(result, c.Descendants()...)
	}
	return result
}

func (p *Property) ConnectTexture(t *Texture) {
	p.Textures = append(p.Textures, t)
}

func (p *Property) Bool() bool {
	b, _ := p.Value.(bool)
	return b
}

func (p *Property) Float() float64 {
	switch v := p.Value.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

func (p *Property) Int() int {
	if v, ok := p.Value.(int); ok {
		return v
	}
	return int(p.Float())
}

func (p *Property) String() string {
	s, _ := p.Value.(string)
	return s
}

func (p *Property) Vec2() mgl64.Vec2 {
	v, _ := p.Value.(mgl64.Vec2)
	return v
}

func (p *Property) Vec3() mgl64.Vec3 {
	v, _ := p.Value.(mgl64.Vec3)
	return v
}

type Texture struct {
	Name             string
	FileName         string
	RelativeFileName string
	UVSet            string
}

type BindingEntry struct {
	Source          string
	SourceType      string
	Destination     string
	DestinationType string
}

type BindingTable struct {
	Name       string
	TargetName string
	TargetType string
	Entries    []BindingEntry
}

type Implementation struct {
	Name             string
	RenderAPI        string
	RenderAPIVersion string
	Language         string
	LanguageVersion  string
	RootBindingName  string
	ShaderGraph      []byte
	Table            *BindingTable
}

type Material struct {
	Name         string
	ShadingModel string
	// compound root, its children are top level properties
	Properties     *Property
	Implementation *Implementation
}

func NewMaterial(name string) *Material {
	return &Material{
		Name:         name,
		ShadingModel: "unknown",
		Properties:   &Property{Type: PropertyCompound},
	}
}

// Property finds property by hierarchical name
func (m *Material) Property(path string) *Property {
	p := m.Properties
	for _, part := range strings.Split(path, PropertySeparator) {
		if p = p.Child(part); p == nil {
			return nil
		}
	}
	return p
}

// SetProperty creates or updates property by hierarchical name, creating compounds on the way
func (m *Material) SetProperty(path string, t PropertyType, value interface{}) *Property {
	parts := strings.Split(path, PropertySeparator)
	p := m.Properties
	for _, part := range parts[:len(parts)-1] {
		if c := p.Child(part); c != nil {
			p = c
		} else {
			p = p.add(part, PropertyCompound, nil)
		}
	}
	return p.add(parts[len(parts)-1], t, value)
}

// TextureOf returns first texture connected to property at path
func (m *Material) TextureOf(path string) *Texture {
	if p := m.Property(path); p != nil && len(p.Textures) != 0 {
		return p.Textures[0]
	}
	return nil
}
