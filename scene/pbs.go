package scene

// Property paths of materials driven by the physically based stingray-like shader.
const (
	PBSCompound = "Maya"

	PBSTypeId         = PBSCompound + PropertySeparator + "TypeId"
	PBSUVOffset       = PBSCompound + PropertySeparator + "uv_offset"
	PBSUVScale        = PBSCompound + PropertySeparator + "uv_scale"
	PBSColorMap       = PBSCompound + PropertySeparator + "TEX_color_map"
	PBSNormalMap      = PBSCompound + PropertySeparator + "TEX_normal_map"
	PBSMetallicMap    = PBSCompound + PropertySeparator + "TEX_metallic_map"
	PBSRoughnessMap   = PBSCompound + PropertySeparator + "TEX_roughness_map"
	PBSEmissiveMap    = PBSCompound + PropertySeparator + "TEX_emissive_map"
	PBSUseColorMap    = PBSCompound + PropertySeparator + "use_color_map"
	PBSUseNormalMap   = PBSCompound + PropertySeparator + "use_normal_map"
	PBSUseMetallicMap = PBSCompound + PropertySeparator + "use_metallic_map"
	PBSUseRoughMap    = PBSCompound + PropertySeparator + "use_roughness_map"
	PBSUseEmissiveMap = PBSCompound + PropertySeparator + "use_emissive_map"
)

// Fixed maya type id of the stingray PBS material node
const PBSTypeIdValue = 1166017

// Plain material slots used by non-PBS exporters
const (
	StandardDiffuseColor  = "DiffuseColor"
	StandardNormalMap     = "NormalMap"
	StandardEmissiveColor = "EmissiveColor"
)

// User properties carrying meta material fields which have no shader counterpart
const (
	PropertyBadgerMaterial = "BadgerMaterial"
	PropertyBadgerCulling  = "BadgerCulling"
)
