package badger

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAnimationsJson = `{
	"format_version": "1.8.0",
	"animations": {
		"animation.robot.walk": {
			"anim_time_update": "query.modified_distance_moved",
			"blend_weight": 1,
			"bones": {
				"head": {
					"lod_distance": 0,
					"rotation": {
						"0.0": {"lerp_mode": "catmullrom", "post": [0, 0, 0]},
						"0.5": {"lerp_mode": "catmullrom", "post": [10, 0, 0]},
						"1.25": [0, 5, 0]
					}
				},
				"root": {"position": {"0.0": {"post": [0, 1, 0]}}}
			}
		}
	}
}`

func TestParseAnimationSet(t *testing.T) {
	s, err := ParseAnimationSet("robot.animations.json", []byte(testAnimationsJson))
	require.NoError(t, err)
	require.Equal(t, []string{"animation.robot.walk"}, s.Names())

	walk := s.Animations["animation.robot.walk"]
	assert.Equal(t, "query.modified_distance_moved", walk.AnimTimeUpdate)
	assert.Equal(t, "1", walk.BlendWeight)
	assert.Equal(t, []string{"head", "root"}, walk.BoneNames())

	head := walk.Bones["head"]
	assert.Equal(t, []float64{0, 0.5, 1.25}, head.Rotation.Times())
	assert.Equal(t, Keyframe{LerpMode: LerpCatmullRom, Post: Vector3{10, 0, 0}}, head.Rotation[0.5])
	assert.Equal(t, Keyframe{LerpMode: LerpLinear, Post: Vector3{0, 5, 0}}, head.Rotation[1.25])
	assert.Nil(t, head.Position)
}

func TestAnimationSetRoundTrip(t *testing.T) {
	s, err := ParseAnimationSet("robot.animations.json", []byte(testAnimationsJson))
	require.NoError(t, err)
	data, err := MarshalAnimationSet(s)
	require.NoError(t, err)
	s2, err := ParseAnimationSet("robot.animations.json", data)
	require.NoError(t, err)
	assert.Equal(t, s, s2)
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		in  float64
		out string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.5, "0.5"},
		{0.041666666666666664, "0.041666666666666664"},
		{12.25, "12.25"},
	}
	for _, test := range tests {
		assert.Equal(t, test.out, FormatTime(test.in))
	}
}

func TestAnimationBadTimeKey(t *testing.T) {
	doc := `{"format_version": "1.8.0", "animations": {"a": {"bones": {"b": {"position": {"soon": {"post": [0,0,0]}}}}}}}`
	_, err := ParseAnimationSet("a.animations.json", []byte(doc))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "animations.a.bones.b.position.soon", se.Field)
}
