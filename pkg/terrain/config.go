package terrain

import (
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/roverlab/traverse/pkg/errors"
)

// Layer source types.
const (
	SourceRaster = "raster" // ESRI ASCII grid
	SourceArray  = "array"  // JSON 2-D/3-D numeric array
	SourceImage  = "image"  // grayscale PNG/JPEG
)

// validSources is the set of supported layer source types.
var validSources = map[string]bool{
	SourceRaster: true,
	SourceArray:  true,
	SourceImage:  true,
}

// MapConfig describes a map: grid metadata plus the layer sources to load.
// It is decoded from a TOML file and validated once before any layer I/O.
type MapConfig struct {
	Map struct {
		Name     string  `toml:"name"`
		CellSize float64 `toml:"cell_size"` // meters per cell edge
	} `toml:"map"`

	Layers map[string]LayerConfig `toml:"layers"`
}

// LayerConfig describes one layer source.
type LayerConfig struct {
	Source      string   `toml:"source"`      // raster | array | image
	Path        string   `toml:"path"`        // relative to the config file
	Unit        string   `toml:"unit"`        // e.g. "m", "deg", unitless if empty
	Description string   `toml:"description"` //
	Bands       []int    `toml:"bands"`       // 1-based sub-layer indices; empty = all
	Normalize   bool     `toml:"normalize"`   // min/max rescale to [0,1] at load
	NoData      *float64 `toml:"no_data"`     // raster no-data override
}

// LoadMapConfig reads and validates a map configuration file.
func LoadMapConfig(path string) (*MapConfig, error) {
	var cfg MapConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read map config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for structural errors.
func (c *MapConfig) Validate() error {
	if c.Map.CellSize <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "map.cell_size must be positive, got %g", c.Map.CellSize)
	}
	if len(c.Layers) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "no layers configured")
	}
	for name, lc := range c.Layers {
		if !validSources[lc.Source] {
			return errors.New(errors.ErrCodeInvalidConfig,
				"layer %q: unknown source %q (must be raster, array, or image)", name, lc.Source)
		}
		if lc.Path == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "layer %q: path is required", name)
		}
		for _, b := range lc.Bands {
			if b < 1 {
				return errors.New(errors.ErrCodeInvalidConfig, "layer %q: sub-layer indices are 1-based, got %d", name, b)
			}
		}
		if lc.Source != SourceArray && len(lc.Bands) > 1 {
			return errors.New(errors.ErrCodeInvalidConfig, "layer %q: %s sources hold a single sub-layer", name, lc.Source)
		}
	}
	return nil
}

// BuildStack loads every configured layer and assembles the stack.
// Relative layer paths are resolved against baseDir. Layers are loaded in
// sorted name order so the resulting stack is deterministic.
//
// A layer file that cannot be opened fails with MISSING_LAYER; any
// dimension disagreement between layers fails with LAYER_MISMATCH.
func BuildStack(cfg *MapConfig, baseDir string) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(cfg.Layers))
	for name := range cfg.Layers {
		names = append(names, name)
	}
	sort.Strings(names)

	stack := NewStack(cfg.Map.Name, cfg.Map.CellSize)
	for _, name := range names {
		lc := cfg.Layers[name]
		path := lc.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		var (
			layers []*Layer
			err    error
		)
		switch lc.Source {
		case SourceRaster:
			var layer *Layer
			layer, err = loadRaster(path, name, lc.Unit, lc.NoData)
			layers = []*Layer{layer}
		case SourceArray:
			layers, err = loadArray(path, name, lc.Unit, lc.Bands)
		case SourceImage:
			var layer *Layer
			layer, err = loadImage(path, name, lc.Unit)
			layers = []*Layer{layer}
		}
		if err != nil {
			return nil, err
		}

		for _, layer := range layers {
			if lc.Normalize {
				layer.normalize()
			}
			if err := stack.Add(layer); err != nil {
				return nil, err
			}
		}
	}
	return stack, nil
}
