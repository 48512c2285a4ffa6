package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/mogaika/badger_converter/badger"
)

type Config struct {
	ModelFormatVersion     string `yaml:"model_format_version" toml:"model_format_version"`
	MaterialFormatVersion  string `yaml:"material_format_version" toml:"material_format_version"`
	AnimationFormatVersion string `yaml:"animation_format_version" toml:"animation_format_version"`

	// placeholder bone emitted for geometries without skeleton
	RootBoneName string `yaml:"root_bone_name" toml:"root_bone_name"`
	// separates name and base name in scene material names
	MaterialDelimiter string `yaml:"material_delimiter" toml:"material_delimiter"`
	Culling           string `yaml:"culling" toml:"culling"`

	LerpMode       string `yaml:"lerp_mode" toml:"lerp_mode"`
	AnimTimeUpdate string `yaml:"anim_time_update" toml:"anim_time_update"`
	BlendWeight    string `yaml:"blend_weight" toml:"blend_weight"`

	MaxInheritanceDepth int      `yaml:"max_inheritance_depth" toml:"max_inheritance_depth"`
	TextureExtensions   []string `yaml:"texture_extensions" toml:"texture_extensions"`
	Packs               []string `yaml:"packs" toml:"packs"`

	Encoding string `yaml:"encoding" toml:"encoding"`
	// file with the shader graph blob embedded into generated materials, empty blob if unset
	ShaderGraph string `yaml:"shader_graph" toml:"shader_graph"`

	MaxTextureSize int  `yaml:"max_texture_size" toml:"max_texture_size"`
	WebPTextures   bool `yaml:"webp_textures" toml:"webp_textures"`
}

func Default() *Config {
	return &Config{
		ModelFormatVersion:     badger.ModelFormatVersion,
		MaterialFormatVersion:  badger.MaterialFormatVersion,
		AnimationFormatVersion: badger.AnimationFormatVersion,
		RootBoneName:           badger.RootBoneName,
		MaterialDelimiter:      badger.SceneMaterialDelimiter,
		Culling:                "none",
		LerpMode:               badger.LerpCatmullRom,
		AnimTimeUpdate:         "query.anim_time + query.delta_time",
		BlendWeight:            "1.0",
		MaxInheritanceDepth:    32,
		TextureExtensions:      []string{".png", ".tga", ".jpg", ".hdr"},
		Encoding:               "Windows 1252",
	}
}

// Load reads yaml or toml (chosen by extension) on top of defaults
func Load(path string) (*Config, error) {
	c := Default()

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to expand %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read config")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return nil, errors.Errorf("Unknown config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse config %q", path)
	}

	if err := c.Prepare(); err != nil {
		return nil, err
	}
	return c, nil
}

// Prepare validates values, expands pack paths and applies the string encoding
func (c *Config) Prepare() error {
	for _, v := range []string{c.ModelFormatVersion, c.MaterialFormatVersion, c.AnimationFormatVersion} {
		if _, err := semver.NewVersion(v); err != nil {
			return errors.Wrapf(err, "Invalid format version %q", v)
		}
	}
	if c.RootBoneName == "" {
		return errors.Errorf("root_bone_name can't be empty")
	}
	if c.MaterialDelimiter == "" {
		return errors.Errorf("material_delimiter can't be empty")
	}
	if c.MaxInheritanceDepth <= 0 {
		return errors.Errorf("max_inheritance_depth must be positive, got %d", c.MaxInheritanceDepth)
	}
	for i, ext := range c.TextureExtensions {
		if !strings.HasPrefix(ext, ".") {
			c.TextureExtensions[i] = "." + ext
		}
	}
	for i, p := range c.Packs {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return errors.Wrapf(err, "Failed to expand pack path %q", p)
		}
		c.Packs[i] = expanded
	}
	if c.ShaderGraph != "" {
		expanded, err := homedir.Expand(c.ShaderGraph)
		if err != nil {
			return errors.Wrapf(err, "Failed to expand shader graph path")
		}
		c.ShaderGraph = expanded
	}
	if c.Encoding != "" {
		if err := SetEncoding(c.Encoding); err != nil {
			return errors.Wrapf(err, "Invalid encoding, known: %s", strings.Join(ListEncodings(), ", "))
		}
	}
	return nil
}

func (c *Config) LoadShaderGraph() ([]byte, error) {
	if c.ShaderGraph == "" {
		return []byte{}, nil
	}
	data, err := os.ReadFile(c.ShaderGraph)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read shader graph")
	}
	return data, nil
}
