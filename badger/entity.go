package badger

const (
	componentFaceAnimation = "badger:face_animation"
	componentTemplate      = "badger:template"
)

func ParseEntity(document string, data []byte) (*Entity, error) {
	tree, err := ParseTree(document, data)
	if err != nil {
		return nil, err
	}
	return DecodeEntity(document, tree)
}

func MarshalEntity(e *Entity) ([]byte, error) {
	return MarshalTree(EncodeEntity(e))
}

func DecodeEntity(document string, tree interface{}) (*Entity, error) {
	r := root(document, tree)
	if _, err := r.object(); err != nil {
		return nil, err
	}

	e := &Entity{}
	var err error
	if e.FormatVersion, err = r.key("format_version").formatVersion(); err != nil {
		return nil, err
	}

	client := r.key("minecraft:client_entity")
	if _, err := client.object(); err != nil {
		return nil, err
	}
	components := client.key("components")
	if !components.present() {
		return e, nil
	}
	obj, err := components.object()
	if err != nil {
		return nil, err
	}

	for key, raw := range obj {
		c := components.key(key)
		switch key {
		case componentFaceAnimation:
			fa := &FaceAnimation{}
			if fa.Columns, err = c.key("anim_columns").integer(); err != nil {
				return nil, err
			}
			if fa.Rows, err = c.key("anim_rows").integer(); err != nil {
				return nil, err
			}
			if fa.BlinkFrame, err = c.key("blink_frame").integer(); err != nil {
				return nil, err
			}
			if fa.DefaultFrame, err = c.key("default_frame").integer(); err != nil {
				return nil, err
			}
			if fa.Columns <= 0 || fa.Rows <= 0 {
				return nil, c.errorf("grid must be at least 1x1, got %dx%d", fa.Columns, fa.Rows)
			}
			e.FaceAnimation = fa
		case componentTemplate:
			if s, ok := raw.(string); ok {
				e.Templates = []string{s}
				continue
			}
			list, err := c.array()
			if err != nil {
				return nil, c.errorf("expected string or array of strings")
			}
			e.Templates = make([]string, len(list))
			for i := range list {
				if e.Templates[i], err = c.index(i).str(); err != nil {
					return nil, err
				}
			}
		default:
			if e.Extra == nil {
				e.Extra = make(map[string]interface{})
			}
			e.Extra[key] = cloneValue(raw)
		}
	}
	return e, nil
}

func EncodeEntity(e *Entity) interface{} {
	components := make(map[string]interface{}, len(e.Extra)+2)
	for key, raw := range e.Extra {
		components[key] = cloneValue(raw)
	}
	if fa := e.FaceAnimation; fa != nil {
		components[componentFaceAnimation] = map[string]interface{}{
			"anim_columns":  fa.Columns,
			"anim_rows":     fa.Rows,
			"blink_frame":   fa.BlinkFrame,
			"default_frame": fa.DefaultFrame,
		}
	}
	switch len(e.Templates) {
	case 0:
	case 1:
		components[componentTemplate] = e.Templates[0]
	default:
		list := make([]interface{}, len(e.Templates))
		for i := range e.Templates {
			list[i] = e.Templates[i]
		}
		components[componentTemplate] = list
	}

	return map[string]interface{}{
		"format_version": e.FormatVersion,
		"minecraft:client_entity": map[string]interface{}{
			"components": components,
		},
	}
}
