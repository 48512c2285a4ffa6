package fbxbuilder

import (
	"github.com/mogaika/fbx"
	"github.com/pkg/errors"
)

type Connection struct {
	Type     string
	Child    int64
	Parent   int64
	Property string
}

// Document indexes objects and connections of a parsed FBX tree
type Document struct {
	Root    *fbx.Node
	Version uint32

	Objects     []*fbx.Node
	ObjectByID  map[int64]*fbx.Node
	Connections []Connection

	children map[int64][]Connection
	parents  map[int64][]Connection
}

func NewDocument(root *fbx.Node, version uint32) (*Document, error) {
	if version < 7000 {
		return nil, errors.Errorf("FBX version %d is not supported, need 7000 or newer", version)
	}
	d := &Document{
		Root:       root,
		Version:    version,
		ObjectByID: make(map[int64]*fbx.Node),
		children:   make(map[int64][]Connection),
		parents:    make(map[int64][]Connection),
	}

	for _, o := range Path(root, "Objects").Nodes {
		if len(o.Properties) < 3 {
			return nil, errors.Errorf("Object %q has %d properties, want at least 3", o.Name, len(o.Properties))
		}
		id := PropInt64(o, 0)
		if _, ok := d.ObjectByID[id]; ok {
			return nil, errors.Errorf("Duplicate object id %d", id)
		}
		d.ObjectByID[id] = o
		d.Objects = append(d.Objects, o)
	}

	for _, c := range Children(Child(root, "Connections"), "C") {
		con := Connection{
			Type:     PropString(c, 0),
			Child:    PropInt64(c, 1),
			Parent:   PropInt64(c, 2),
			Property: PropString(c, 3),
		}
		if con.Type != "OO" && con.Type != "OP" {
			continue
		}
		d.Connections = append(d.Connections, con)
		d.children[con.Parent] = append(d.children[con.Parent], con)
		d.parents[con.Child] = append(d.parents[con.Child], con)
	}
	return d, nil
}

func (d *Document) Object(id int64) *fbx.Node {
	return d.ObjectByID[id]
}

// ChildrenOf returns child objects connected to parent, optionally filtered by record name ("Model")
func (d *Document) ChildrenOf(parent int64, name string) []*fbx.Node {
	var result []*fbx.Node
	for _, c := range d.children[parent] {
		if o := d.ObjectByID[c.Child]; o != nil && (name == "" || o.Name == name) {
			result = append(result, o)
		}
	}
	return result
}

// ParentsOf returns connections where id is a child
func (d *Document) ParentsOf(id int64) []Connection {
	return d.parents[id]
}

// ConnectionsTo returns connections where id is a parent
func (d *Document) ConnectionsTo(id int64) []Connection {
	return d.children[id]
}

func (d *Document) ObjectsByName(name string) []*fbx.Node {
	var result []*fbx.Node
	for _, o := range d.Objects {
		if o.Name == name {
			result = append(result, o)
		}
	}
	return result
}

func ObjectID(o *fbx.Node) int64 { return PropInt64(o, 0) }

func ObjectDisplayName(o *fbx.Node) string {
	name, _ := SplitObjectName(PropString(o, 1))
	return name
}

func ObjectSubClass(o *fbx.Node) string { return PropString(o, 2) }
