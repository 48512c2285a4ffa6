package badger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// ParseTree decodes a json document into generic values.
// Numbers are kept as json.Number so integers survive untouched.
func ParseTree(document string, data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, &SchemaError{Document: document, Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	return v, nil
}

func MarshalTree(v interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to marshal")
	}
	return data, nil
}

// value is a position inside a decoded document, used to produce errors with field paths
type value struct {
	doc  string
	path string
	v    interface{}
}

func root(document string, v interface{}) value {
	return value{doc: document, v: v}
}

func (n value) errorf(format string, a ...interface{}) error {
	return &SchemaError{Document: n.doc, Field: n.path, Reason: fmt.Sprintf(format, a...)}
}

func (n value) key(k string) value {
	path := k
	if n.path != "" {
		path = n.path + "." + k
	}
	var v interface{}
	if m, ok := n.v.(map[string]interface{}); ok {
		v = m[k]
	}
	return value{doc: n.doc, path: path, v: v}
}

func (n value) index(i int) value {
	var v interface{}
	if a, ok := n.v.([]interface{}); ok && i < len(a) {
		v = a[i]
	}
	return value{doc: n.doc, path: fmt.Sprintf("%s[%d]", n.path, i), v: v}
}

func (n value) present() bool { return n.v != nil }

func (n value) object() (map[string]interface{}, error) {
	if n.v == nil {
		return nil, n.errorf("missing")
	}
	m, ok := n.v.(map[string]interface{})
	if !ok {
		return nil, n.errorf("expected object, got %s", typeName(n.v))
	}
	return m, nil
}

func (n value) array() ([]interface{}, error) {
	if n.v == nil {
		return nil, n.errorf("missing")
	}
	a, ok := n.v.([]interface{})
	if !ok {
		return nil, n.errorf("expected array, got %s", typeName(n.v))
	}
	return a, nil
}

// nil when absent
func (n value) optionalArray() ([]interface{}, error) {
	if !n.present() {
		return nil, nil
	}
	return n.array()
}

func (n value) str() (string, error) {
	if n.v == nil {
		return "", n.errorf("missing")
	}
	s, ok := n.v.(string)
	if !ok {
		return "", n.errorf("expected string, got %s", typeName(n.v))
	}
	return s, nil
}

func (n value) optionalStr() (string, error) {
	if !n.present() {
		return "", nil
	}
	return n.str()
}

// scalar accepts both strings and numbers, used for molang expression fields
func (n value) scalar() (string, error) {
	switch v := n.v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", n.errorf("expected string or number, got %s", typeName(n.v))
	}
}

func (n value) float() (float64, error) {
	switch v := n.v.(type) {
	case nil:
		return 0, n.errorf("missing")
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, n.errorf("bad number %q", v.String())
		}
		return f, nil
	case float64:
		return v, nil
	default:
		return 0, n.errorf("expected number, got %s", typeName(n.v))
	}
}

func (n value) integer() (int, error) {
	switch v := n.v.(type) {
	case nil:
		return 0, n.errorf("missing")
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, n.errorf("expected integer, got %q", v.String())
		}
		return int(i), nil
	case float64:
		if v != float64(int(v)) {
			return 0, n.errorf("expected integer, got %v", v)
		}
		return int(v), nil
	default:
		return 0, n.errorf("expected integer, got %s", typeName(n.v))
	}
}

func (n value) int32() (int32, error) {
	i, err := n.integer()
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, n.errorf("integer %d does not fit into 32 bits", i)
	}
	return int32(i), nil
}

func (n value) boolean() (bool, error) {
	if n.v == nil {
		return false, n.errorf("missing")
	}
	b, ok := n.v.(bool)
	if !ok {
		return false, n.errorf("expected boolean, got %s", typeName(n.v))
	}
	return b, nil
}

// floats decodes a fixed size numeric array
func (n value) floats(dst []float64) error {
	a, err := n.array()
	if err != nil {
		return err
	}
	if len(a) != len(dst) {
		return n.errorf("expected %d components, got %d", len(dst), len(a))
	}
	for i := range dst {
		if dst[i], err = n.index(i).float(); err != nil {
			return err
		}
	}
	return nil
}

func (n value) vector3() (v Vector3, err error) {
	err = n.floats(v[:])
	return
}

func (n value) formatVersion() (string, error) {
	s, err := n.str()
	if err != nil {
		return "", err
	}
	if _, err := semver.NewVersion(s); err != nil {
		return "", n.errorf("bad version %q: %v", s, err)
	}
	return s, nil
}

func typeName(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = cloneValue(e)
		}
		return m
	case []interface{}:
		a := make([]interface{}, len(t))
		for i, e := range t {
			a[i] = cloneValue(e)
		}
		return a
	default:
		return v
	}
}

func encodeVector3(v Vector3) []interface{} { return []interface{}{v[0], v[1], v[2]} }

// FormatTime produces animation time keys: shortest exact decimal, always with a point
func FormatTime(t float64) string {
	s := strconv.FormatFloat(t, 'f', -1, 64)
	for _, c := range s {
		if c == '.' {
			return s
		}
	}
	return s + ".0"
}
