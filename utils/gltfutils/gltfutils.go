package gltfutils

import (
	"io"

	"github.com/qmuntal/gltf"
)

// GLTFCacher holds document under construction and memoizes exported parts by key
type GLTFCacher struct {
	Doc   *gltf.Document
	cache map[interface{}]interface{}
}

func NewCacher() *GLTFCacher {
	return &GLTFCacher{
		Doc:   gltf.NewDocument(),
		cache: make(map[interface{}]interface{}),
	}
}

func (gc *GLTFCacher) AddCache(key interface{}, value interface{}) {
	gc.cache[key] = value
}

func (gc *GLTFCacher) GetCached(key interface{}) interface{} {
	return gc.cache[key]
}

func (gc *GLTFCacher) GetCachedOr(key interface{}, create func() interface{}) interface{} {
	if v, ok := gc.cache[key]; ok {
		return v
	}
	v := create()
	gc.cache[key] = v
	return v
}

// ExportBinary adds every node without parent to default scene and writes glb
func ExportBinary(w io.Writer, doc *gltf.Document) error {
	child := make(map[uint32]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	if len(doc.Scenes) == 0 {
		doc.Scenes = append(doc.Scenes, &gltf.Scene{})
		doc.Scene = gltf.Index(0)
	}
	doc.Scenes[0].Nodes = doc.Scenes[0].Nodes[:0]
	for iNode := range doc.Nodes {
		if !child[uint32(iNode)] {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(iNode))
		}
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return encoder.Encode(doc)
}
