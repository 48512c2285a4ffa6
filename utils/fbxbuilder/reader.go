package fbxbuilder

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"math"

	"github.com/mogaika/fbx"
	"github.com/pkg/errors"

	"github.com/mogaika/badger_converter/config"
	"github.com/mogaika/badger_converter/utils"
)

const binaryMagic = "Kaydara FBX Binary  \x00\x1a\x00"

var ErrNotBinary = errors.New("not a binary fbx file")

type binaryParser struct {
	buf     []byte
	pos     int
	version uint32
}

// Read parses binary FBX into node tree; returned root node holds top level records
func Read(r io.Reader) (*fbx.Node, uint32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "Unable to read fbx")
	}
	return Parse(data)
}

func Parse(data []byte) (*fbx.Node, uint32, error) {
	if len(data) < len(binaryMagic)+4 || string(data[:len(binaryMagic)]) != binaryMagic {
		return nil, 0, errors.Wrapf(ErrNotBinary, "header %s", utils.DumpToOneLineString(data[:min(len(data), len(binaryMagic))]))
	}
	p := &binaryParser{buf: data, pos: len(binaryMagic)}
	p.version = binary.LittleEndian.Uint32(data[p.pos:])
	p.pos += 4

	root := &fbx.Node{}
	for p.pos < len(p.buf) {
		n, err := p.node()
		if err != nil {
			return nil, 0, errors.Wrapf(err, "At offset 0x%x", p.pos)
		}
		if n == nil {
			break
		}
		root.Nodes = append(root.Nodes, n)
	}
	return root, p.version, nil
}

func (p *binaryParser) need(n int) error {
	if n < 0 || p.pos+n > len(p.buf) {
		return errors.Errorf("Unexpected end of file: need %d bytes at 0x%x", n, p.pos)
	}
	return nil
}

func (p *binaryParser) offset() (uint64, error) {
	if p.version >= 7500 {
		if err := p.need(8); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(p.buf[p.pos:])
		p.pos += 8
		return v, nil
	}
	if err := p.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += 4
	return uint64(v), nil
}

func (p *binaryParser) bytes(n int) ([]byte, error) {
	if err := p.need(n); err != nil {
		return nil, err
	}
	b := p.buf[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

func (p *binaryParser) u32() (uint32, error) {
	b, err := p.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// node returns nil on null record that terminates a node list
func (p *binaryParser) node() (*fbx.Node, error) {
	end, err := p.offset()
	if err != nil {
		return nil, err
	}
	propCount, err := p.offset()
	if err != nil {
		return nil, err
	}
	if _, err := p.offset(); err != nil {
		return nil, err
	}
	nameLen, err := p.bytes(1)
	if err != nil {
		return nil, err
	}
	if end == 0 {
		return nil, nil
	}
	if end > uint64(len(p.buf)) {
		return nil, errors.Errorf("Node end offset 0x%x out of file", end)
	}
	name, err := p.bytes(int(nameLen[0]))
	if err != nil {
		return nil, err
	}

	n := &fbx.Node{Name: string(name), Properties: make([]interface{}, 0, propCount)}
	for i := uint64(0); i < propCount; i++ {
		v, err := p.property()
		if err != nil {
			return nil, errors.Wrapf(err, "Node %q property %d", n.Name, i)
		}
		n.Properties = append(n.Properties, v)
	}

	for uint64(p.pos) < end {
		child, err := p.node()
		if err != nil {
			return nil, err
		}
		if child == nil {
			break
		}
		n.Nodes = append(n.Nodes, child)
	}
	p.pos = int(end)
	return n, nil
}

func (p *binaryParser) property() (interface{}, error) {
	code, err := p.bytes(1)
	if err != nil {
		return nil, err
	}
	switch code[0] {
	case 'Y':
		b, err := p.bytes(2)
		if err != nil {
			return nil, err
		}
		return int16(binary.LittleEndian.Uint16(b)), nil
	case 'C':
		b, err := p.bytes(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case 'I':
		v, err := p.u32()
		return int32(v), err
	case 'F':
		v, err := p.u32()
		return math.Float32frombits(v), err
	case 'D':
		b, err := p.bytes(8)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case 'L':
		b, err := p.bytes(8)
		if err != nil {
			return nil, err
		}
		return int64(binary.LittleEndian.Uint64(b)), nil
	case 'S', 'R':
		l, err := p.u32()
		if err != nil {
			return nil, err
		}
		b, err := p.bytes(int(l))
		if err != nil {
			return nil, err
		}
		if code[0] == 'S' {
			return config.DecodeString(b), nil
		}
		return append([]byte{}, b...), nil
	case 'f', 'd', 'l', 'i', 'b':
		return p.array(code[0])
	}
	return nil, errors.Errorf("Unknown property type %q", code[0])
}

func (p *binaryParser) array(code byte) (interface{}, error) {
	count, err := p.u32()
	if err != nil {
		return nil, err
	}
	encoding, err := p.u32()
	if err != nil {
		return nil, err
	}
	length, err := p.u32()
	if err != nil {
		return nil, err
	}
	raw, err := p.bytes(int(length))
	if err != nil {
		return nil, err
	}

	elemSize := map[byte]int{'f': 4, 'd': 8, 'l': 8, 'i': 4, 'b': 1}[code]
	switch encoding {
	case 0:
	case 1:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "Array zlib header")
		}
		defer zr.Close()
		raw = make([]byte, int(count)*elemSize)
		if _, err := io.ReadFull(zr, raw); err != nil {
			return nil, errors.Wrapf(err, "Array zlib data")
		}
	default:
		return nil, errors.Errorf("Unknown array encoding %d", encoding)
	}
	if len(raw) < int(count)*elemSize {
		return nil, errors.Errorf("Array of %d elements has only %d bytes", count, len(raw))
	}

	switch code {
	case 'f':
		v := make([]float32, count)
		for i := range v {
			v[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return v, nil
	case 'd':
		v := make([]float64, count)
		for i := range v {
			v[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return v, nil
	case 'l':
		v := make([]int64, count)
		for i := range v {
			v[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		return v, nil
	case 'i':
		v := make([]int32, count)
		for i := range v {
			v[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		return v, nil
	default:
		v := make([]bool, count)
		for i := range v {
			v[i] = raw[i] != 0
		}
		return v, nil
	}
}
