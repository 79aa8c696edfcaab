// Package terrain provides the layered raster data model for the planner.
//
// A Layer is a 2-D grid of scalar samples (elevation, slope, rock abundance,
// scientific interest, ...) aligned to a common grid. A Stack is an ordered,
// name-indexed collection of Layers sharing one resolution and extent; it is
// the caller-owned context from which cost map graphs are built.
//
// Layers are immutable once loaded: loaders may normalize values while a
// layer is being constructed, but nothing mutates a layer after it has been
// added to a Stack. No-data cells are represented as NaN.
//
// # Usage
//
//	cfg, err := terrain.LoadMapConfig("map.toml")
//	if err != nil {
//	    return err
//	}
//	stack, err := terrain.BuildStack(cfg, filepath.Dir("map.toml"))
//	if err != nil {
//	    return err
//	}
//	height, _ := stack.Layer("height")
//	v := height.At(12, 40)
package terrain

import (
	"fmt"
	"math"

	"github.com/roverlab/traverse/pkg/errors"
)

// Coord is a grid coordinate (row, column).
type Coord struct {
	Row int `json:"row" bson:"row"`
	Col int `json:"col" bson:"col"`
}

// String formats the coordinate as "(row,col)".
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Layer is a named 2-D grid of scalar values. NaN marks no-data cells.
type Layer struct {
	Name string
	Unit string
	Rows int
	Cols int

	values []float64 // row-major
}

// NewLayer creates a layer with all cells initialized to no-data.
func NewLayer(name, unit string, rows, cols int) (*Layer, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "layer %q: invalid dimensions %dx%d", name, rows, cols)
	}
	values := make([]float64, rows*cols)
	for i := range values {
		values[i] = math.NaN()
	}
	return &Layer{Name: name, Unit: unit, Rows: rows, Cols: cols, values: values}, nil
}

// LayerFromValues creates a layer from row-major sample values. NaN values
// mark no-data cells. The slice is copied.
func LayerFromValues(name, unit string, rows, cols int, values []float64) (*Layer, error) {
	if len(values) != rows*cols {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"layer %q: %d values for a %dx%d grid", name, len(values), rows, cols)
	}
	l, err := NewLayer(name, unit, rows, cols)
	if err != nil {
		return nil, err
	}
	copy(l.values, values)
	return l, nil
}

// At returns the sample at (row, col). Out-of-bounds access returns NaN.
func (l *Layer) At(row, col int) float64 {
	if row < 0 || row >= l.Rows || col < 0 || col >= l.Cols {
		return math.NaN()
	}
	return l.values[row*l.Cols+col]
}

// HasData reports whether (row, col) is in bounds and holds a valid sample.
func (l *Layer) HasData(row, col int) bool {
	return !math.IsNaN(l.At(row, col))
}

// set writes a sample during layer construction. Loaders only.
func (l *Layer) set(row, col int, v float64) {
	l.values[row*l.Cols+col] = v
}

// normalize rescales all valid samples to [0, 1] using the layer's own
// min/max range. A constant layer normalizes to all zeros. Loaders only.
func (l *Layer) normalize() {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range l.values {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) || hi == lo {
		for i, v := range l.values {
			if !math.IsNaN(v) {
				l.values[i] = 0
			}
		}
		return
	}
	for i, v := range l.values {
		if !math.IsNaN(v) {
			l.values[i] = (v - lo) / (hi - lo)
		}
	}
}

// Stack is an ordered, name-indexed set of layers sharing one grid.
type Stack struct {
	Name     string
	CellSize float64 // meters per cell edge
	Rows     int
	Cols     int

	layers []*Layer
	index  map[string]int
}

// NewStack creates an empty stack. Dimensions are fixed by the first layer added.
func NewStack(name string, cellSize float64) *Stack {
	return &Stack{Name: name, CellSize: cellSize, index: make(map[string]int)}
}

// Add appends a layer to the stack. The first layer fixes the grid
// dimensions; subsequent layers must match exactly.
func (s *Stack) Add(l *Layer) error {
	if _, exists := s.index[l.Name]; exists {
		return errors.New(errors.ErrCodeInvalidConfig, "duplicate layer %q", l.Name)
	}
	if len(s.layers) == 0 {
		s.Rows, s.Cols = l.Rows, l.Cols
	} else if l.Rows != s.Rows || l.Cols != s.Cols {
		return errors.New(errors.ErrCodeLayerMismatch,
			"layer %q is %dx%d, stack is %dx%d", l.Name, l.Rows, l.Cols, s.Rows, s.Cols)
	}
	s.index[l.Name] = len(s.layers)
	s.layers = append(s.layers, l)
	return nil
}

// Layer returns the layer with the given name.
func (s *Stack) Layer(name string) (*Layer, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.layers[i], true
}

// Layers returns all layers in insertion order.
func (s *Stack) Layers() []*Layer {
	return s.layers
}

// InBounds reports whether c lies within the stack grid.
func (s *Stack) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < s.Rows && c.Col >= 0 && c.Col < s.Cols
}
