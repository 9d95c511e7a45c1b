// Package config handles atlasgen configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/taigrr/atlasgen/internal/logger"
	"github.com/taigrr/atlasgen/pkg/atlas"
	"github.com/taigrr/atlasgen/pkg/gltfwrite"
	"github.com/taigrr/atlasgen/pkg/render"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all atlasgen settings.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Atlas   AtlasConfig   `yaml:"atlas"`
	Preview PreviewConfig `yaml:"preview"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig controls the emitted glTF.
type OutputConfig struct {
	Dialect         string `yaml:"dialect"` // "json" or "legacy"
	Indent          string `yaml:"indent"`
	DiscardTextures bool   `yaml:"discard_textures"`
}

// AtlasConfig holds UV atlas generation settings.
type AtlasConfig struct {
	Resolution    int     `yaml:"resolution"`
	Padding       int     `yaml:"padding"`
	MaxChartAngle float64 `yaml:"max_chart_angle"`
}

// PreviewConfig holds atlas preview settings. An empty path disables the
// preview.
type PreviewConfig struct {
	Path        string `yaml:"path"`
	Size        int    `yaml:"size"`
	Supersample int    `yaml:"supersample"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	ao := atlas.DefaultOptions()
	po := render.DefaultPreviewOptions()
	return &Config{
		Output: OutputConfig{
			Dialect: gltfwrite.DialectJSON.String(),
			Indent:  gltfwrite.DefaultIndent,
		},
		Atlas: AtlasConfig{
			Resolution:    ao.Resolution,
			Padding:       ao.Padding,
			MaxChartAngle: ao.MaxChartAngle,
		},
		Preview: PreviewConfig{
			Size:        po.Size,
			Supersample: po.Supersample,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Flags are command line overrides. Zero values leave the file setting alone.
type Flags struct {
	Discard  bool
	Legacy   bool
	Preview  string
	LogLevel string
	LogFile  string
}

// Apply applies CLI flag overrides to the config.
func (c *Config) Apply(f Flags) {
	if f.Discard {
		c.Output.DiscardTextures = true
	}
	if f.Legacy {
		c.Output.Dialect = gltfwrite.DialectLegacy.String()
	}
	if f.Preview != "" {
		c.Preview.Path = f.Preview
	}
	if f.LogLevel != "" {
		c.Logging.Level = f.LogLevel
	}
	if f.LogFile != "" {
		c.Logging.LogFile = f.LogFile
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := gltfwrite.ParseDialect(c.Output.Dialect); err != nil {
		return fmt.Errorf("%w: output.dialect: %w", ErrInvalid, err)
	}
	if strings.Trim(c.Output.Indent, " \t") != "" {
		return fmt.Errorf("%w: output.indent must contain only spaces and tabs", ErrInvalid)
	}
	if c.Atlas.Resolution < 16 || c.Atlas.Resolution > 16384 {
		return fmt.Errorf("%w: atlas.resolution %d outside [16, 16384]", ErrInvalid, c.Atlas.Resolution)
	}
	if c.Atlas.Padding < 0 || 2*c.Atlas.Padding >= c.Atlas.Resolution {
		return fmt.Errorf("%w: atlas.padding %d for resolution %d", ErrInvalid, c.Atlas.Padding, c.Atlas.Resolution)
	}
	if c.Atlas.MaxChartAngle <= 0 || c.Atlas.MaxChartAngle >= 90 {
		return fmt.Errorf("%w: atlas.max_chart_angle %g outside (0, 90)", ErrInvalid, c.Atlas.MaxChartAngle)
	}
	if c.Preview.Path != "" {
		switch strings.ToLower(filepath.Ext(c.Preview.Path)) {
		case ".png", ".webp":
		default:
			return fmt.Errorf("%w: preview.path must end in .png or .webp", ErrInvalid)
		}
	}
	if c.Preview.Size < 1 || c.Preview.Size > 8192 {
		return fmt.Errorf("%w: preview.size %d outside [1, 8192]", ErrInvalid, c.Preview.Size)
	}
	if c.Preview.Supersample < 1 || c.Preview.Supersample > 8 {
		return fmt.Errorf("%w: preview.supersample %d outside [1, 8]", ErrInvalid, c.Preview.Supersample)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("%w: logging.level: %w", ErrInvalid, err)
	}
	return nil
}

// AtlasOptions returns the atlas generator options.
func (c *Config) AtlasOptions() atlas.Options {
	return atlas.Options{
		Resolution:    c.Atlas.Resolution,
		Padding:       c.Atlas.Padding,
		MaxChartAngle: c.Atlas.MaxChartAngle,
	}
}

// WriterOptions returns the emitter options. Call Validate first.
func (c *Config) WriterOptions() gltfwrite.Options {
	d, _ := gltfwrite.ParseDialect(c.Output.Dialect)
	return gltfwrite.Options{Indent: c.Output.Indent, Dialect: d}
}

// PreviewOptions returns the preview renderer options.
func (c *Config) PreviewOptions() render.PreviewOptions {
	return render.PreviewOptions{Size: c.Preview.Size, Supersample: c.Preview.Supersample}
}
