package badger

import (
	"strings"
)

func ParseModel(document string, data []byte) (*Model, error) {
	tree, err := ParseTree(document, data)
	if err != nil {
		return nil, err
	}
	return DecodeModel(document, tree)
}

func MarshalModel(m *Model) ([]byte, error) {
	return MarshalTree(EncodeModel(m))
}

func DecodeModel(document string, tree interface{}) (*Model, error) {
	r := root(document, tree)
	if _, err := r.object(); err != nil {
		return nil, err
	}

	m := &Model{}
	var err error
	if m.FormatVersion, err = r.key("format_version").formatVersion(); err != nil {
		return nil, err
	}

	geometries := r.key("minecraft:geometry")
	list, err := geometries.array()
	if err != nil {
		return nil, err
	}
	m.Geometries = make([]Geometry, len(list))
	for i := range list {
		if err := decodeGeometry(geometries.index(i), &m.Geometries[i]); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func decodeGeometry(n value, g *Geometry) error {
	if _, err := n.object(); err != nil {
		return err
	}
	var err error
	if g.Identifier, err = n.key("description").key("identifier").str(); err != nil {
		return err
	}

	bones := n.key("bones")
	if ref, ok := bones.v.(string); ok {
		if !strings.HasPrefix(ref, GeometryPrefix) || len(ref) == len(GeometryPrefix) {
			return bones.errorf("inheritance reference %q must look like %s<name>", ref, GeometryPrefix)
		}
		g.BonesReference = ref
	} else {
		list, err := bones.array()
		if err != nil {
			return err
		}
		g.Bones = make([]Bone, len(list))
		for i := range list {
			if err := decodeBone(bones.index(i), &g.Bones[i]); err != nil {
				return err
			}
		}
	}

	meshes := n.key("meshes")
	list, err := meshes.optionalArray()
	if err != nil {
		return err
	}
	g.Meshes = make([]Mesh, len(list))
	for i := range list {
		if err := decodeMesh(meshes.index(i), &g.Meshes[i]); err != nil {
			return err
		}
	}
	return nil
}

func decodeBone(n value, b *Bone) error {
	if _, err := n.object(); err != nil {
		return err
	}
	var err error
	if b.Name, err = n.key("name").str(); err != nil {
		return err
	}
	if b.Parent, err = n.key("parent").optionalStr(); err != nil {
		return err
	}
	if b.Pivot, err = n.key("pivot").vector3(); err != nil {
		return err
	}
	b.Scale = Vector3{1, 1, 1}
	if scale := n.key("scale"); scale.present() {
		if b.Scale, err = scale.vector3(); err != nil {
			return err
		}
	}
	if info := n.key(BindPoseKey); info.present() {
		if b.BindPoseRotation, err = info.key("bind_pose_rotation").vector3(); err != nil {
			return err
		}
	}

	if locators := n.key("locators"); locators.present() {
		m, err := locators.object()
		if err != nil {
			return err
		}
		b.Locators = make(map[string]BoneLocator, len(m))
		for name := range m {
			l := locators.key(name)
			var loc BoneLocator
			if loc.Offset, err = l.key("offset").vector3(); err != nil {
				return err
			}
			if rot := l.key("rotation"); rot.present() {
				if loc.Rotation, err = rot.vector3(); err != nil {
					return err
				}
			}
			if ds := l.key("discard_scale"); ds.present() {
				if loc.DiscardScale, err = ds.boolean(); err != nil {
					return err
				}
			}
			b.Locators[name] = loc
		}
	}
	return nil
}

func decodeMesh(n value, m *Mesh) error {
	if _, err := n.object(); err != nil {
		return err
	}
	var err error
	if m.Material, err = n.key("meta_material").str(); err != nil {
		return err
	}
	if m.Name, err = n.key("model_name").optionalStr(); err != nil {
		return err
	}

	positions := n.key("positions")
	list, err := positions.array()
	if err != nil {
		return err
	}
	m.Positions = make([]Vector3, len(list))
	for i := range list {
		if m.Positions[i], err = positions.index(i).vector3(); err != nil {
			return err
		}
	}

	triangles := n.key("triangles")
	if list, err = triangles.array(); err != nil {
		return err
	}
	m.Triangles = make([]int32, len(list))
	for i := range list {
		if m.Triangles[i], err = triangles.index(i).int32(); err != nil {
			return err
		}
	}

	if m.Normals, err = decodeSets4(n.key("normal_sets")); err != nil {
		return err
	}
	if m.Colors, err = decodeSets4(n.key("color_sets")); err != nil {
		return err
	}

	uvSets := n.key("uv_sets")
	if list, err = uvSets.optionalArray(); err != nil {
		return err
	}
	for i := range list {
		set := uvSets.index(i)
		items, err := set.array()
		if err != nil {
			return err
		}
		uvs := make([]Vector2, len(items))
		for j := range items {
			if err := set.index(j).floats(uvs[j][:]); err != nil {
				return err
			}
		}
		m.UVs = append(m.UVs, uvs)
	}

	weights := n.key("weights")
	if list, err = weights.optionalArray(); err != nil {
		return err
	}
	for i := range list {
		vertex := weights.index(i)
		items, err := vertex.array()
		if err != nil {
			return err
		}
		w := make([]float64, len(items))
		for j := range items {
			if w[j], err = vertex.index(j).float(); err != nil {
				return err
			}
		}
		m.Weights = append(m.Weights, w)
	}

	indices := n.key("indices")
	if list, err = indices.optionalArray(); err != nil {
		return err
	}
	for i := range list {
		vertex := indices.index(i)
		items, err := vertex.array()
		if err != nil {
			return err
		}
		names := make([]string, len(items))
		for j := range items {
			if names[j], err = vertex.index(j).str(); err != nil {
				return err
			}
		}
		m.Indices = append(m.Indices, names)
	}
	return nil
}

func decodeSets4(n value) ([][]Vector4, error) {
	list, err := n.optionalArray()
	if err != nil {
		return nil, err
	}
	var result [][]Vector4
	for i := range list {
		set := n.index(i)
		items, err := set.array()
		if err != nil {
			return nil, err
		}
		vs := make([]Vector4, len(items))
		for j := range items {
			if err := set.index(j).floats(vs[j][:]); err != nil {
				return nil, err
			}
		}
		result = append(result, vs)
	}
	return result, nil
}

func EncodeModel(m *Model) interface{} {
	geometries := make([]interface{}, len(m.Geometries))
	for i := range m.Geometries {
		geometries[i] = encodeGeometry(&m.Geometries[i])
	}
	return map[string]interface{}{
		"format_version":     m.FormatVersion,
		"minecraft:geometry": geometries,
	}
}

func encodeGeometry(g *Geometry) interface{} {
	var bones interface{}
	if g.BonesReference != "" {
		bones = g.BonesReference
	} else {
		list := make([]interface{}, len(g.Bones))
		for i := range g.Bones {
			list[i] = encodeBone(&g.Bones[i])
		}
		bones = list
	}
	meshes := make([]interface{}, len(g.Meshes))
	for i := range g.Meshes {
		meshes[i] = encodeMesh(&g.Meshes[i])
	}
	return map[string]interface{}{
		"description": map[string]interface{}{"identifier": g.Identifier},
		"bones":       bones,
		"meshes":      meshes,
	}
}

func encodeBone(b *Bone) interface{} {
	j := map[string]interface{}{
		BindPoseKey: map[string]interface{}{"bind_pose_rotation": encodeVector3(b.BindPoseRotation)},
		"name":      b.Name,
		"parent":    b.Parent,
		"pivot":     encodeVector3(b.Pivot),
		"scale":     encodeVector3(b.Scale),
	}
	if len(b.Locators) != 0 {
		locators := make(map[string]interface{}, len(b.Locators))
		for name, l := range b.Locators {
			locators[name] = map[string]interface{}{
				"discard_scale": l.DiscardScale,
				"offset":        encodeVector3(l.Offset),
				"rotation":      encodeVector3(l.Rotation),
			}
		}
		j["locators"] = locators
	}
	return j
}

func encodeMesh(m *Mesh) interface{} {
	positions := make([]interface{}, len(m.Positions))
	for i, p := range m.Positions {
		positions[i] = encodeVector3(p)
	}
	triangles := make([]interface{}, len(m.Triangles))
	for i, t := range m.Triangles {
		triangles[i] = t
	}
	uvSets := make([]interface{}, len(m.UVs))
	for i, set := range m.UVs {
		uvs := make([]interface{}, len(set))
		for j, uv := range set {
			uvs[j] = []interface{}{uv[0], uv[1]}
		}
		uvSets[i] = uvs
	}
	weights := make([]interface{}, len(m.Weights))
	for i, w := range m.Weights {
		vw := make([]interface{}, len(w))
		for j := range w {
			vw[j] = w[j]
		}
		weights[i] = vw
	}

	j := map[string]interface{}{
		"meta_material": m.Material,
		"normal_sets":   encodeSets4(m.Normals),
		"positions":     positions,
		"triangles":     triangles,
		"uv_sets":       uvSets,
		"weights":       weights,
	}
	if m.Name != "" {
		j["model_name"] = m.Name
	}
	if len(m.Colors) != 0 {
		j["color_sets"] = encodeSets4(m.Colors)
	}
	if len(m.Indices) != 0 {
		indices := make([]interface{}, len(m.Indices))
		for i, names := range m.Indices {
			vn := make([]interface{}, len(names))
			for k := range names {
				vn[k] = names[k]
			}
			indices[i] = vn
		}
		j["indices"] = indices
	}
	return j
}

func encodeSets4(sets [][]Vector4) []interface{} {
	result := make([]interface{}, len(sets))
	for i, set := range sets {
		vs := make([]interface{}, len(set))
		for j, v := range set {
			vs[j] = []interface{}{v[0], v[1], v[2], v[3]}
		}
		result[i] = vs
	}
	return result
}
