package badger

import (
	"fmt"
	"strings"
)

type SchemaError struct {
	Document string
	Field    string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Document, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", e.Document, e.Field, e.Reason)
}

type AssetNotFoundError struct {
	Kind     string
	Name     string
	Searched []string
	// closest existing asset name of the same kind, if any
	Suggestion string
}

func (e *AssetNotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found in any asset pack", e.Kind, e.Name)
	if len(e.Searched) != 0 {
		msg += fmt.Sprintf(" (searched %s)", strings.Join(e.Searched, ", "))
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(", did you mean %q?", e.Suggestion)
	}
	return msg
}

type UntriangulatedMeshError struct {
	Mesh            string
	Polygons        int
	PolygonVertices int
}

func (e *UntriangulatedMeshError) Error() string {
	return fmt.Sprintf("mesh %q is not triangulated: %d polygons reference %d vertices, want %d",
		e.Mesh, e.Polygons, e.PolygonVertices, e.Polygons*3)
}

type UnsupportedCurveError struct {
	Animation string
	Node      string
	Property  string
	Reason    string
}

func (e *UnsupportedCurveError) Error() string {
	return fmt.Sprintf("animation %q: node %q property %q: unsupported curve: %s",
		e.Animation, e.Node, e.Property, e.Reason)
}

type MissingParentError struct {
	Bone   string
	Parent string
}

func (e *MissingParentError) Error() string {
	return fmt.Sprintf("bone %q references parent %q which is not defined before it", e.Bone, e.Parent)
}

type MissingMaterialError struct {
	Mesh string
}

func (e *MissingMaterialError) Error() string {
	return fmt.Sprintf("mesh %q has no material", e.Mesh)
}

type InheritanceDepthError struct {
	Kind  string
	Name  string
	Depth int
}

func (e *InheritanceDepthError) Error() string {
	return fmt.Sprintf("%s %q: inheritance chain deeper than %d, probably a cycle", e.Kind, e.Name, e.Depth)
}

// NativeIOError wraps failures of reading or writing scene files.
type NativeIOError struct {
	Path string
	Op   string
	Err  error
}

func (e *NativeIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("scene %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("scene %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *NativeIOError) Unwrap() error { return e.Err }
func (e *NativeIOError) Cause() error  { return e.Err }
