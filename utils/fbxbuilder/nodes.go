package fbxbuilder

import (
	"strings"

	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
)

// FBX time units per second
const TimeUnitsPerSecond = 46186158000

// separates object name and class in object name properties
const NameClassSeparator = "\x00\x01"

// Node creates node not covered by bfbx73 builders. Property values must
// be of FBX primitive types (int16, bool, int32, float32, float64, int64,
// string, []byte) or their slices.
func Node(name string, properties ...interface{}) *fbx.Node {
	return &fbx.Node{
		Name:       name,
		Properties: properties,
	}
}

func ObjectName(name, class string) string {
	return name + NameClassSeparator + class
}

// SplitObjectName splits "Name\x00\x01Class". Text files store it as "Class::Name".
func SplitObjectName(s string) (name, class string) {
	if i := strings.Index(s, NameClassSeparator); i >= 0 {
		return s[:i], s[i+len(NameClassSeparator):]
	}
	if i := strings.Index(s, "::"); i >= 0 {
		return s[i+2:], s[:i]
	}
	return s, ""
}

func Child(n *fbx.Node, name string) *fbx.Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Nodes {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func Children(n *fbx.Node, name string) []*fbx.Node {
	if n == nil {
		return nil
	}
	var result []*fbx.Node
	for _, c := range n.Nodes {
		if c.Name == name {
			result = append(result, c)
		}
	}
	return result
}

// Path follows chain of first children by names
func Path(n *fbx.Node, names ...string) *fbx.Node {
	for _, name := range names {
		if n = Child(n, name); n == nil {
			return nil
		}
	}
	return n
}

func Prop(n *fbx.Node, i int) interface{} {
	if n == nil || i >= len(n.Properties) {
		return nil
	}
	return n.Properties[i]
}

func PropString(n *fbx.Node, i int) string {
	switch v := Prop(n, i).(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

func PropInt64(n *fbx.Node, i int) int64 {
	switch v := Prop(n, i).(type) {
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case bool:
		if v {
			return 1
		}
	case float32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func PropFloat64(n *fbx.Node, i int) float64 {
	switch v := Prop(n, i).(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	case int16, int32, int64, bool:
		return float64(PropInt64(n, i))
	}
	return 0
}

func PropFloat64s(n *fbx.Node, i int) []float64 {
	switch v := Prop(n, i).(type) {
	case []float64:
		return v
	case []float32:
		result := make([]float64, len(v))
		for j := range v {
			result[j] = float64(v[j])
		}
		return result
	}
	return nil
}

func PropInt32s(n *fbx.Node, i int) []int32 {
	switch v := Prop(n, i).(type) {
	case []int32:
		return v
	case []int64:
		result := make([]int32, len(v))
		for j := range v {
			result[j] = int32(v[j])
		}
		return result
	}
	return nil
}

func PropInt64s(n *fbx.Node, i int) []int64 {
	switch v := Prop(n, i).(type) {
	case []int64:
		return v
	case []int32:
		result := make([]int64, len(v))
		for j := range v {
			result[j] = int64(v[j])
		}
		return result
	}
	return nil
}

func PropBytes(n *fbx.Node, i int) []byte {
	switch v := Prop(n, i).(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

// P70 finds "P" record by property name inside of Properties70 of object
func P70(object *fbx.Node, name string) *fbx.Node {
	for _, p := range Children(Child(object, "Properties70"), "P") {
		if PropString(p, 0) == name {
			return p
		}
	}
	return nil
}

// P70Values returns values of property record (after name, type, label and flags)
func P70Values(p *fbx.Node) []interface{} {
	if p == nil || len(p.Properties) < 4 {
		return nil
	}
	return p.Properties[4:]
}

func P70Vec3(object *fbx.Node, name string, def [3]float64) [3]float64 {
	p := P70(object, name)
	if p == nil || len(p.Properties) < 7 {
		return def
	}
	return [3]float64{PropFloat64(p, 4), PropFloat64(p, 5), PropFloat64(p, 6)}
}

func P70Int(object *fbx.Node, name string, def int64) int64 {
	p := P70(object, name)
	if p == nil || len(p.Properties) < 5 {
		return def
	}
	return PropInt64(p, 4)
}

func P70Float(object *fbx.Node, name string, def float64) float64 {
	p := P70(object, name)
	if p == nil || len(p.Properties) < 5 {
		return def
	}
	return PropFloat64(p, 4)
}

func P70String(object *fbx.Node, name string, def string) string {
	p := P70(object, name)
	if p == nil || len(p.Properties) < 5 {
		return def
	}
	return PropString(p, 4)
}

// SetP70 replaces or appends property record of object
func SetP70(object *fbx.Node, p *fbx.Node) {
	props := object.GetOrAddNode(bfbx73.Properties70())
	for i, existing := range props.Nodes {
		if existing.Name == "P" && PropString(existing, 0) == PropString(p, 0) {
			props.Nodes[i] = p
			return
		}
	}
	props.AddNode(p)
}

// Bool converts to FBX property boolean representation
func Bool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
