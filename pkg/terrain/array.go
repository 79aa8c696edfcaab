package terrain

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/roverlab/traverse/pkg/errors"
)

// loadArray reads a JSON array file into one or more layers.
//
// The file holds either a single 2-D array of numbers or a 3-D array
// (a stack of 2-D sub-layers). For 3-D sources, bands selects the sub-layers
// to load by 1-based index; an empty bands slice loads all of them. A single
// selected band yields a layer named name; multiple bands yield layers
// named "name[band]". JSON nulls become no-data cells.
func loadArray(path, name, unit string, bands []int) ([]*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMissingLayer, err, "load layer %q from %s", name, path)
	}

	// Try the 3-D form first; a 2-D array fails to decode into it.
	var cube [][][]*float64
	if err := json.Unmarshal(data, &cube); err == nil {
		return layersFromCube(cube, path, name, unit, bands)
	}

	var plane [][]*float64
	if err := json.Unmarshal(data, &plane); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "array %s: not a 2-D or 3-D numeric array", path)
	}
	if len(bands) > 1 || (len(bands) == 1 && bands[0] != 1) {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "array %s: sub-layer selection on a 2-D source", path)
	}
	layer, err := layerFromPlane(plane, path, name, unit)
	if err != nil {
		return nil, err
	}
	return []*Layer{layer}, nil
}

func layersFromCube(cube [][][]*float64, path, name, unit string, bands []int) ([]*Layer, error) {
	if len(cube) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "array %s: empty sub-layer stack", path)
	}
	if len(bands) == 0 {
		bands = make([]int, len(cube))
		for i := range bands {
			bands[i] = i + 1
		}
	}

	layers := make([]*Layer, 0, len(bands))
	for _, band := range bands {
		if band < 1 || band > len(cube) {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"array %s: sub-layer %d out of range (1..%d)", path, band, len(cube))
		}
		layerName := name
		if len(bands) > 1 {
			layerName = fmt.Sprintf("%s[%d]", name, band)
		}
		layer, err := layerFromPlane(cube[band-1], path, layerName, unit)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, nil
}

func layerFromPlane(plane [][]*float64, path, name, unit string) (*Layer, error) {
	rows := len(plane)
	if rows == 0 || len(plane[0]) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "array %s: empty array for layer %q", path, name)
	}
	cols := len(plane[0])

	layer, err := NewLayer(name, unit, rows, cols)
	if err != nil {
		return nil, err
	}
	for r, row := range plane {
		if len(row) != cols {
			return nil, errors.New(errors.ErrCodeInvalidConfig,
				"array %s: ragged row %d (%d values, want %d)", path, r, len(row), cols)
		}
		for c, v := range row {
			if v == nil || math.IsNaN(*v) {
				continue
			}
			layer.set(r, c, *v)
		}
	}
	return layer, nil
}
