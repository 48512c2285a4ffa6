package badger

import (
	"strings"
	"testing"

	"github.com/Pallinder/go-randomdata"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetaMaterial(t *testing.T) {
	doc := `{"format_version": "1.8.0", "robot_body:entity_alphatest": {
		"culling": "none",
		"textures": {"diffuseMap": "textures/entity/robot", "normalMap": "textures/entity/robot_n"}}}`

	m, err := ParseMetaMaterial("robot_body.json", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "robot_body", m.Name)
	assert.Equal(t, "entity_alphatest", m.BaseName)
	assert.Equal(t, "none", m.Culling)
	assert.Equal(t, Textures{Diffuse: "textures/entity/robot", Normal: "textures/entity/robot_n"}, m.Textures)
}

func TestMetaMaterialNameRoundTrip(t *testing.T) {
	names := []struct{ name, base string }{
		{"plain", ""},
		{"robot_body", "entity_alphatest"},
		{"ns.robot", "base"},
	}
	for i := 0; i < 16; i++ {
		names = append(names, struct{ name, base string }{
			strings.ToLower(randomdata.SillyName()), strings.ToLower(randomdata.Noun()),
		})
	}

	for _, n := range names {
		m := &MetaMaterial{FormatVersion: MaterialFormatVersion, Name: n.name, BaseName: n.base, Culling: "none"}
		data, err := MarshalMetaMaterial(m)
		require.NoError(t, err)
		m2, err := ParseMetaMaterial("m.json", data)
		require.NoError(t, err)
		assert.Equal(t, m, m2)
	}
}

func TestSplitMaterialName(t *testing.T) {
	tests := []struct {
		in, delimiter, name, base string
	}{
		{"a", ":", "a", ""},
		{"a:b", ":", "a", "b"},
		{"a:b:c", ":", "a:b", "c"},
		{"mat___base", "___", "mat", "base"},
		{"mat_x___base___v", "___", "mat_x___base", "v"},
	}
	for _, test := range tests {
		name, base := SplitMaterialName(test.in, test.delimiter)
		assert.Equal(t, test.name, name, test.in)
		assert.Equal(t, test.base, base, test.in)
		assert.Equal(t, test.in, JoinMaterialName(name, base, test.delimiter))
	}
}

func TestMetaMaterialEntryCount(t *testing.T) {
	for _, doc := range []string{
		`{"format_version": "1.8.0"}`,
		`{"format_version": "1.8.0", "a": {"textures": {}}, "b": {"textures": {}}}`,
	} {
		_, err := ParseMetaMaterial("m.json", []byte(doc))
		var se *SchemaError
		assert.True(t, errors.As(err, &se), doc)
	}
}

func TestMetaMaterialOmitsEmptyTextures(t *testing.T) {
	tree := EncodeMetaMaterial(&MetaMaterial{FormatVersion: "1.8.0", Name: "m", Textures: Textures{Diffuse: "d"}})
	info := tree.(map[string]interface{})["m"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"diffuseMap": "d"}, info["textures"])
	assert.NotContains(t, info, "culling")
	assert.NotContains(t, info, "material")
}
