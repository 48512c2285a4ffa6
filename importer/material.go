package importer

import (
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/badger_converter/badger"
	"github.com/mogaika/badger_converter/scene"
)

type pbsProperty struct {
	name  string
	typ   scene.PropertyType
	value interface{}
}

// Stingray PBS layout, same order as maya writes it
var pbsProperties = []pbsProperty{
	{"TypeId", scene.PropertyInt, scene.PBSTypeIdValue},
	{"TEX_global_diffuse_cube", scene.PropertyFloat3, mgl64.Vec3{}},
	{"TEX_global_specular_cube", scene.PropertyFloat3, mgl64.Vec3{}},
	{"TEX_brdf_lut", scene.PropertyFloat3, mgl64.Vec3{}},
	{"use_normal_map", scene.PropertyFloat, 0.0},
	{"uv_offset", scene.PropertyFloat2, mgl64.Vec2{}},
	{"uv_scale", scene.PropertyFloat2, mgl64.Vec2{1, 1}},
	{"TEX_normal_map", scene.PropertyFloat3, mgl64.Vec3{}},
	{"use_color_map", scene.PropertyFloat, 0.0},
	{"TEX_color_map", scene.PropertyFloat3, mgl64.Vec3{}},
	{"base_color", scene.PropertyFloat3, mgl64.Vec3{}},
	{"use_metallic_map", scene.PropertyFloat, 0.0},
	{"TEX_metallic_map", scene.PropertyFloat3, mgl64.Vec3{}},
	{"metallic", scene.PropertyFloat, 0.0},
	{"use_roughness_map", scene.PropertyFloat, 0.0},
	{"TEX_roughness_map", scene.PropertyFloat3, mgl64.Vec3{}},
	{"roughness", scene.PropertyFloat, 0.0},
	{"use_emissive_map", scene.PropertyFloat, 0.0},
	{"TEX_emissive_map", scene.PropertyFloat3, mgl64.Vec3{}},
	{"emissive", scene.PropertyFloat3, mgl64.Vec3{}},
	{"emissive_intensity", scene.PropertyFloat, 1.0},
	{"use_ao_map", scene.PropertyFloat, 0.0},
	{"TEX_ao_map", scene.PropertyFloat3, mgl64.Vec3{}},
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// material creates scene material for meta material name once per import
func (ic *importContext) material(name string) (*scene.Material, error) {
	if m, ok := ic.materials[name]; ok {
		return m, nil
	}

	log.Debug("Importing material", "name", name)
	mm, err := ic.loader.GetMaterial(name)
	if err != nil {
		return nil, err
	}

	m := scene.NewMaterial(badger.JoinMaterialName(mm.Name, mm.BaseName, ic.cfg.MaterialDelimiter))
	m.SetProperty(scene.PBSCompound, scene.PropertyCompound, nil)
	for _, p := range pbsProperties {
		m.SetProperty(scene.PBSCompound+scene.PropertySeparator+p.name, p.typ, p.value)
	}
	tex := mm.Textures
	m.SetProperty(scene.PBSUseColorMap, scene.PropertyFloat, flag(tex.Diffuse != ""))
	m.SetProperty(scene.PBSUseNormalMap, scene.PropertyFloat, flag(tex.Normal != ""))
	m.SetProperty(scene.PBSUseMetallicMap, scene.PropertyFloat, flag(tex.Coeff != ""))
	m.SetProperty(scene.PBSUseRoughMap, scene.PropertyFloat, flag(tex.Coeff != ""))
	m.SetProperty(scene.PBSUseEmissiveMap, scene.PropertyFloat, flag(tex.Emissive != ""))

	if mm.Material != "" {
		m.SetProperty(scene.PropertyBadgerMaterial, scene.PropertyString, mm.Material)
	}
	if mm.Culling != "" {
		m.SetProperty(scene.PropertyBadgerCulling, scene.PropertyString, mm.Culling)
	}

	connect := func(suffix, path string, properties ...string) {
		if path == "" {
			return
		}
		t := &scene.Texture{
			Name:             name + suffix,
			FileName:         path,
			RelativeFileName: filepath.Base(path),
			UVSet:            "UVs",
		}
		ic.scene.AddTexture(t)
		for _, p := range properties {
			m.Property(p).ConnectTexture(t)
		}
	}
	connect("_diffuse", tex.Diffuse, scene.PBSColorMap)
	connect("_normal", tex.Normal, scene.PBSNormalMap)
	connect("_coeff", tex.Coeff, scene.PBSMetallicMap, scene.PBSRoughnessMap)
	connect("_emissive", tex.Emissive, scene.PBSEmissiveMap)

	impl, err := ic.shaderImplementation(m.Property(scene.PBSCompound))
	if err != nil {
		return nil, err
	}
	m.Implementation = impl

	if err := ic.scene.AddMaterial(m); err != nil {
		return nil, err
	}
	ic.materials[name] = m
	return m, nil
}

// shaderImplementation is generated once per importer and added to every scene using it
func (ic *importContext) shaderImplementation(maya *scene.Property) (*scene.Implementation, error) {
	if ic.implementation == nil {
		log.Debug("Generating default shader implementation")
		graph, err := ic.cfg.LoadShaderGraph()
		if err != nil {
			return nil, err
		}
		table := &scene.BindingTable{Name: "root", TargetName: "root", TargetType: "shader"}
		for _, p := range maya.Descendants() {
			table.Entries = append(table.Entries, scene.BindingEntry{
				Source:          p.HierarchicalName(),
				SourceType:      "FbxPropertyEntry",
				Destination:     p.Name,
				DestinationType: "FbxSemanticEntry",
			})
		}
		ic.implementation = &scene.Implementation{
			Name:            "PBS_Implementation",
			RenderAPI:       "SFX_PBS_SHADER",
			Language:        "SFX",
			LanguageVersion: "28",
			RootBindingName: "root",
			ShaderGraph:     graph,
			Table:           table,
		}
	}

	for _, impl := range ic.scene.Implementations {
		if impl == ic.implementation {
			return impl, nil
		}
	}
	ic.scene.AddImplementation(ic.implementation)
	return ic.implementation, nil
}
