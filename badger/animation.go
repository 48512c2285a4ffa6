package badger

import (
	"strconv"
)

const (
	LerpLinear     = "linear"
	LerpCatmullRom = "catmullrom"
)

func ParseAnimationSet(document string, data []byte) (*AnimationSet, error) {
	tree, err := ParseTree(document, data)
	if err != nil {
		return nil, err
	}
	return DecodeAnimationSet(document, tree)
}

func MarshalAnimationSet(s *AnimationSet) ([]byte, error) {
	return MarshalTree(EncodeAnimationSet(s))
}

func DecodeAnimationSet(document string, tree interface{}) (*AnimationSet, error) {
	r := root(document, tree)
	if _, err := r.object(); err != nil {
		return nil, err
	}

	s := &AnimationSet{}
	var err error
	if s.FormatVersion, err = r.key("format_version").formatVersion(); err != nil {
		return nil, err
	}

	animations := r.key("animations")
	obj, err := animations.object()
	if err != nil {
		return nil, err
	}
	s.Animations = make(map[string]Animation, len(obj))
	for name := range obj {
		a, err := decodeAnimation(animations.key(name))
		if err != nil {
			return nil, err
		}
		s.Animations[name] = a
	}
	return s, nil
}

func decodeAnimation(n value) (a Animation, err error) {
	if _, err = n.object(); err != nil {
		return
	}
	if a.AnimTimeUpdate, err = n.key("anim_time_update").scalar(); err != nil {
		return
	}
	if a.BlendWeight, err = n.key("blend_weight").scalar(); err != nil {
		return
	}

	a.Bones = make(map[string]AnimationBone)
	bones := n.key("bones")
	if !bones.present() {
		return
	}
	obj, err := bones.object()
	if err != nil {
		return
	}
	for name := range obj {
		b := bones.key(name)
		var ab AnimationBone
		if lod := b.key("lod_distance"); lod.present() {
			if ab.LODDistance, err = lod.float(); err != nil {
				return
			}
		}
		if ab.Position, err = decodeKeyframes(b.key("position")); err != nil {
			return
		}
		if ab.Rotation, err = decodeKeyframes(b.key("rotation")); err != nil {
			return
		}
		a.Bones[name] = ab
	}
	return
}

func decodeKeyframes(n value) (Keyframes, error) {
	if !n.present() {
		return nil, nil
	}
	obj, err := n.object()
	if err != nil {
		return nil, err
	}
	frames := make(Keyframes, len(obj))
	for key := range obj {
		k := n.key(key)
		t, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, k.errorf("time key %q is not a number", key)
		}

		var kf Keyframe
		if _, isArray := k.v.([]interface{}); isArray {
			// shorthand: plain vector without interpolation info
			kf.LerpMode = LerpLinear
			if kf.Post, err = k.vector3(); err != nil {
				return nil, err
			}
		} else {
			if kf.LerpMode, err = k.key("lerp_mode").optionalStr(); err != nil {
				return nil, err
			}
			if kf.Post, err = k.key("post").vector3(); err != nil {
				return nil, err
			}
		}
		frames[t] = kf
	}
	return frames, nil
}

func EncodeAnimationSet(s *AnimationSet) interface{} {
	animations := make(map[string]interface{}, len(s.Animations))
	for name, a := range s.Animations {
		bones := make(map[string]interface{}, len(a.Bones))
		for boneName, b := range a.Bones {
			j := map[string]interface{}{"lod_distance": b.LODDistance}
			if len(b.Position) != 0 {
				j["position"] = encodeKeyframes(b.Position)
			}
			if len(b.Rotation) != 0 {
				j["rotation"] = encodeKeyframes(b.Rotation)
			}
			bones[boneName] = j
		}
		animations[name] = map[string]interface{}{
			"anim_time_update": a.AnimTimeUpdate,
			"blend_weight":     a.BlendWeight,
			"bones":            bones,
		}
	}
	return map[string]interface{}{
		"format_version": s.FormatVersion,
		"animations":     animations,
	}
}

func encodeKeyframes(k Keyframes) interface{} {
	j := make(map[string]interface{}, len(k))
	for t, kf := range k {
		frame := map[string]interface{}{"post": encodeVector3(kf.Post)}
		if kf.LerpMode != "" {
			frame["lerp_mode"] = kf.LerpMode
		}
		j[FormatTime(t)] = frame
	}
	return j
}
