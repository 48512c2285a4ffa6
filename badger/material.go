package badger

func ParseMetaMaterial(document string, data []byte) (*MetaMaterial, error) {
	tree, err := ParseTree(document, data)
	if err != nil {
		return nil, err
	}
	return DecodeMetaMaterial(document, tree)
}

func MarshalMetaMaterial(m *MetaMaterial) ([]byte, error) {
	return MarshalTree(EncodeMetaMaterial(m))
}

// DecodeMetaMaterial expects exactly one material entry next to format_version.
// The entry key is "<name>" or "<name>:<baseName>".
func DecodeMetaMaterial(document string, tree interface{}) (*MetaMaterial, error) {
	r := root(document, tree)
	obj, err := r.object()
	if err != nil {
		return nil, err
	}

	m := &MetaMaterial{}
	if m.FormatVersion, err = r.key("format_version").formatVersion(); err != nil {
		return nil, err
	}

	var key string
	for k := range obj {
		if k == "format_version" {
			continue
		}
		if key != "" {
			return nil, r.errorf("more than one material entry (%q and %q)", key, k)
		}
		key = k
	}
	if key == "" {
		return nil, r.errorf("no material entry")
	}
	m.Name, m.BaseName = SplitMaterialName(key, MaterialDelimiter)

	info := r.key(key)
	if _, err := info.object(); err != nil {
		return nil, err
	}
	if m.Material, err = info.key("material").optionalStr(); err != nil {
		return nil, err
	}
	if m.Culling, err = info.key("culling").optionalStr(); err != nil {
		return nil, err
	}

	textures := info.key("textures")
	if _, err := textures.object(); err != nil {
		return nil, err
	}
	if m.Textures.Diffuse, err = textures.key("diffuseMap").optionalStr(); err != nil {
		return nil, err
	}
	if m.Textures.Coeff, err = textures.key("coeffMap").optionalStr(); err != nil {
		return nil, err
	}
	if m.Textures.Emissive, err = textures.key("emissiveMap").optionalStr(); err != nil {
		return nil, err
	}
	if m.Textures.Normal, err = textures.key("normalMap").optionalStr(); err != nil {
		return nil, err
	}
	return m, nil
}

func EncodeMetaMaterial(m *MetaMaterial) interface{} {
	textures := make(map[string]interface{})
	if m.Textures.Diffuse != "" {
		textures["diffuseMap"] = m.Textures.Diffuse
	}
	if m.Textures.Coeff != "" {
		textures["coeffMap"] = m.Textures.Coeff
	}
	if m.Textures.Emissive != "" {
		textures["emissiveMap"] = m.Textures.Emissive
	}
	if m.Textures.Normal != "" {
		textures["normalMap"] = m.Textures.Normal
	}

	info := map[string]interface{}{"textures": textures}
	if m.Material != "" {
		info["material"] = m.Material
	}
	if m.Culling != "" {
		info["culling"] = m.Culling
	}

	return map[string]interface{}{
		"format_version": m.FormatVersion,
		m.FullName():     info,
	}
}
