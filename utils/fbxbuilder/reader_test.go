package fbxbuilder

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"math"
	"testing"

	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordWriter emits binary records for tests, offsets are 32 or 64 bit by version
type recordWriter struct {
	buf     bytes.Buffer
	version uint32
}

func newRecordWriter(version uint32) *recordWriter {
	w := &recordWriter{version: version}
	w.buf.WriteString(binaryMagic)
	binary.Write(&w.buf, binary.LittleEndian, version)
	return w
}

func (w *recordWriter) offset(v uint64) {
	if w.version >= 7500 {
		binary.Write(&w.buf, binary.LittleEndian, v)
	} else {
		binary.Write(&w.buf, binary.LittleEndian, uint32(v))
	}
}

func (w *recordWriter) null() {
	w.offset(0)
	w.offset(0)
	w.offset(0)
	w.buf.WriteByte(0)
}

// record writes node with encoded properties and children written by body
func (w *recordWriter) record(name string, props [][]byte, body func()) {
	start := w.buf.Len()
	w.offset(0)
	w.offset(uint64(len(props)))
	propLen := 0
	for _, p := range props {
		propLen += len(p)
	}
	w.offset(uint64(propLen))
	w.buf.WriteByte(byte(len(name)))
	w.buf.WriteString(name)
	for _, p := range props {
		w.buf.Write(p)
	}
	if body != nil {
		body()
		w.null()
	}
	end := uint64(w.buf.Len())
	data := w.buf.Bytes()
	if w.version >= 7500 {
		binary.LittleEndian.PutUint64(data[start:], end)
	} else {
		binary.LittleEndian.PutUint32(data[start:], uint32(end))
	}
}

func propString(s string) []byte {
	b := []byte{'S', 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[1:], uint32(len(s)))
	return append(b, s...)
}

func propInt64(v int64) []byte {
	b := make([]byte, 9)
	b[0] = 'L'
	binary.LittleEndian.PutUint64(b[1:], uint64(v))
	return b
}

func propInt32(v int32) []byte {
	b := make([]byte, 5)
	b[0] = 'I'
	binary.LittleEndian.PutUint32(b[1:], uint32(v))
	return b
}

func propBool(v bool) []byte {
	if v {
		return []byte{'C', 1}
	}
	return []byte{'C', 0}
}

func propDoubles(v []float64, compress bool) []byte {
	var raw bytes.Buffer
	for _, f := range v {
		binary.Write(&raw, binary.LittleEndian, math.Float64bits(f))
	}
	data := raw.Bytes()
	encoding := uint32(0)
	if compress {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		zw.Write(data)
		zw.Close()
		data = z.Bytes()
		encoding = 1
	}
	b := []byte{'d'}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(v)))
	b = binary.LittleEndian.AppendUint32(b, encoding)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func TestParseBinary(t *testing.T) {
	for _, version := range []uint32{7400, 7500} {
		w := newRecordWriter(version)
		w.record("Objects", nil, func() {
			w.record("Geometry", [][]byte{propInt64(42), propString("cube\x00\x01Geometry"), propString("Mesh")}, func() {
				w.record("Vertices", [][]byte{propDoubles([]float64{0, 1, 2, 3.5}, true)}, nil)
				w.record("Flags", [][]byte{propInt32(-7), propBool(true), propDoubles([]float64{9}, false)}, nil)
			})
		})
		w.record("Connections", nil, func() {
			w.record("C", [][]byte{propString("OO"), propInt64(42), propInt64(0)}, nil)
		})
		w.null()

		root, v, err := Parse(w.buf.Bytes())
		require.NoError(t, err, "version %d", version)
		assert.Equal(t, version, v)
		require.Len(t, root.Nodes, 2)

		geometry := Path(root, "Objects", "Geometry")
		require.NotNil(t, geometry)
		assert.Equal(t, int64(42), ObjectID(geometry))
		assert.Equal(t, "cube", ObjectDisplayName(geometry))
		assert.Equal(t, "Mesh", ObjectSubClass(geometry))
		assert.Equal(t, []float64{0, 1, 2, 3.5}, PropFloat64s(Child(geometry, "Vertices"), 0))

		flags := Child(geometry, "Flags")
		assert.Equal(t, int32(-7), Prop(flags, 0))
		assert.Equal(t, true, Prop(flags, 1))
		assert.Equal(t, []float64{9}, Prop(flags, 2))

		doc, err := NewDocument(root, v)
		require.NoError(t, err)
		assert.Len(t, doc.ChildrenOf(0, "Geometry"), 1)
		assert.Len(t, doc.ChildrenOf(0, "Model"), 0)
	}
}

func TestParseRejectsText(t *testing.T) {
	_, _, err := Parse([]byte("; FBX 7.4.0 project file\nFBXHeaderExtension:  {\n}"))
	assert.ErrorIs(t, err, ErrNotBinary)

	w := newRecordWriter(7400)
	w.record("Broken", [][]byte{{'Q'}}, nil)
	_, _, err = Parse(w.buf.Bytes())
	assert.Error(t, err)
}

func TestBuilderRoundTrip(t *testing.T) {
	f := NewFBXBuilder("cube.fbx")
	modelId := f.GenerateId()
	geometryId := f.GenerateId()
	f.AddObjects(
		bfbx73.Model(modelId, ObjectName("cube", "Model"), "Mesh").AddNodes(
			bfbx73.Version(232),
			bfbx73.Properties70().AddNodes(
				bfbx73.P("Lcl Translation", "Lcl Translation", "", "A", float64(1), float64(2), float64(3)),
			),
		),
		bfbx73.Geometry(geometryId, ObjectName("cube", "Geometry"), "Mesh").AddNodes(
			bfbx73.Vertices([]float64{0, 0, 0, 1, 0, 0, 0, 1, 0}),
			bfbx73.PolygonVertexIndex([]int32{0, 1, -3}),
		),
		Node("AnimationStack", f.GenerateId(), ObjectName("idle", "AnimStack"), ""),
	)
	f.Connect(modelId, 0)
	f.Connect(geometryId, modelId)
	f.SetActiveAnimStack("idle")

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	root, version, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(FBX_VERSION), version)
	doc, err := NewDocument(root, version)
	require.NoError(t, err)

	models := doc.ChildrenOf(0, "Model")
	require.Len(t, models, 1)
	assert.Equal(t, "cube", ObjectDisplayName(models[0]))
	assert.Equal(t, [3]float64{1, 2, 3}, P70Vec3(models[0], "Lcl Translation", [3]float64{}))
	assert.Equal(t, [3]float64{1, 1, 1}, P70Vec3(models[0], "Lcl Scaling", [3]float64{1, 1, 1}))

	geometries := doc.ChildrenOf(modelId, "Geometry")
	require.Len(t, geometries, 1)
	assert.Equal(t, []int32{0, 1, -3}, PropInt32s(Child(geometries[0], "PolygonVertexIndex"), 0))
	assert.Len(t, doc.ObjectsByName("AnimationStack"), 1)

	var stackCount int64
	for _, ot := range Children(Child(root, "Definitions"), "ObjectType") {
		if PropString(ot, 0) == "AnimationStack" {
			stackCount = PropInt64(Child(ot, "Count"), 0)
		}
	}
	assert.Equal(t, int64(1), stackCount)
	assert.Equal(t, "idle", P70String(Path(root, "Documents", "Document"), "ActiveAnimStackName", ""))
}

func TestSplitObjectName(t *testing.T) {
	tests := []struct{ in, name, class string }{
		{"cube\x00\x01Model", "cube", "Model"},
		{"Model::cube", "cube", "Model"},
		{"plain", "plain", ""},
	}
	for _, test := range tests {
		name, class := SplitObjectName(test.in)
		assert.Equal(t, test.name, name)
		assert.Equal(t, test.class, class)
	}
}
