package badger

import "fmt"

// Validate checks that triangles are complete and every per-vertex channel is aligned with positions.
// Empty channels are treated as absent.
func (m *Mesh) Validate(document string, field string) error {
	fail := func(sub string, format string, a ...interface{}) error {
		return &SchemaError{Document: document, Field: field + sub, Reason: fmt.Sprintf(format, a...)}
	}

	count := len(m.Positions)
	if len(m.Triangles)%3 != 0 {
		return fail(".triangles", "length %d is not a multiple of 3", len(m.Triangles))
	}
	for i, idx := range m.Triangles {
		if idx < 0 || int(idx) >= count {
			return fail(fmt.Sprintf(".triangles[%d]", i), "index %d out of range [0, %d)", idx, count)
		}
	}
	for i, set := range m.Normals {
		if len(set) != count {
			return fail(fmt.Sprintf(".normal_sets[%d]", i), "has %d entries, want %d", len(set), count)
		}
	}
	for i, set := range m.UVs {
		if len(set) != count {
			return fail(fmt.Sprintf(".uv_sets[%d]", i), "has %d entries, want %d", len(set), count)
		}
	}
	for i, set := range m.Colors {
		if len(set) != count {
			return fail(fmt.Sprintf(".color_sets[%d]", i), "has %d entries, want %d", len(set), count)
		}
	}
	if len(m.Weights) != 0 && len(m.Weights) != count {
		return fail(".weights", "has %d entries, want %d", len(m.Weights), count)
	}
	if len(m.Indices) != 0 {
		if len(m.Indices) != count {
			return fail(".indices", "has %d entries, want %d", len(m.Indices), count)
		}
		if len(m.Weights) != count {
			return fail(".weights", "has %d entries, want %d to pair with indices", len(m.Weights), count)
		}
		for i := range m.Indices {
			if len(m.Indices[i]) != len(m.Weights[i]) {
				return fail(fmt.Sprintf(".indices[%d]", i), "has %d bones but %d weights",
					len(m.Indices[i]), len(m.Weights[i]))
			}
		}
	}
	return nil
}
