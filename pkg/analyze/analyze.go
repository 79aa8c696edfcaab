// Package analyze recomputes statistics for stored paths.
//
// Everything here is a pure function of the path record and the terrain it
// was planned against: per-path layer statistics and exposure, replay
// verification of the stored cost vector, conversion of normalized cost
// components back to physical units, and trade-off summaries across a
// Pareto front.
package analyze

import (
	"math"
	"strconv"

	"github.com/montanaflynn/stats"

	"github.com/roverlab/traverse/pkg/costmap"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/store"
	"github.com/roverlab/traverse/pkg/terrain"
)

// Options tunes summary computation.
type Options struct {
	// ExposureLayer names the layer used for the exposure metric.
	// Empty disables exposure.
	ExposureLayer string

	// ExposureThreshold is the layer value above which a step counts as
	// exposed.
	ExposureThreshold float64
}

// LayerStats summarizes one layer sampled along a path. Cells without data
// are skipped.
type LayerStats struct {
	Layer string  `json:"layer"`
	Unit  string  `json:"unit,omitempty"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// PathStats is the recomputed summary of one stored path.
type PathStats struct {
	ID     string  `json:"id"`
	Steps  int     `json:"steps"`
	Length float64 `json:"length"` // meters

	// Cost is the stored per-objective breakdown, keyed by objective
	// name (or its index when names were not stored).
	Cost map[string]float64 `json:"cost"`

	Layers []LayerStats `json:"layers"`

	// Exposure is the fraction of path length spent on cells where the
	// exposure layer exceeds the threshold. -1 when exposure is disabled
	// or the layer is absent.
	Exposure float64 `json:"exposure"`
}

// Summarize recomputes the statistics of one path record against the
// terrain stack it was planned on. It fails with an INVALID_ENDPOINT error
// when the record's coordinates fall outside the stack.
func Summarize(stack *terrain.Stack, rec *store.PathRecord, opts Options) (*PathStats, error) {
	if len(rec.Coords) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "path record %s has no coordinates", rec.ID)
	}
	for _, c := range rec.Coords {
		if !stack.InBounds(c) {
			return nil, errors.New(errors.ErrCodeInvalidEndpoint,
				"path record %s: %v is outside map %q", rec.ID, c, stack.Name)
		}
	}

	ps := &PathStats{
		ID:       rec.ID,
		Steps:    len(rec.Coords) - 1,
		Length:   pathLength(stack, rec.Coords),
		Cost:     costBreakdown(rec),
		Exposure: -1,
	}

	for _, layer := range stack.Layers() {
		samples := sampleAlong(layer, rec.Coords)
		if len(samples) == 0 {
			continue
		}
		lo, _ := stats.Min(samples)
		hi, _ := stats.Max(samples)
		mean, _ := stats.Mean(samples)
		ps.Layers = append(ps.Layers, LayerStats{
			Layer: layer.Name, Unit: layer.Unit, Min: lo, Max: hi, Mean: mean,
		})
	}

	if opts.ExposureLayer != "" {
		if layer, ok := stack.Layer(opts.ExposureLayer); ok {
			ps.Exposure = exposure(stack, layer, rec.Coords, opts.ExposureThreshold)
		}
	}
	return ps, nil
}

// Replay recomputes the cost vector of a stored coordinate sequence against
// a graph. It fails with an INVALID_ENDPOINT error if any step is not a
// feasible edge of the graph.
func Replay(g *costmap.Graph, rec *store.PathRecord) ([]float64, error) {
	sum := make([]float64, g.K())
	for i := 1; i < len(rec.Coords); i++ {
		from, to := rec.Coords[i-1], rec.Coords[i]
		if !adjacent(from, to) {
			return nil, errors.New(errors.ErrCodeInvalidEndpoint,
				"path record %s: %v and %v are not adjacent", rec.ID, from, to)
		}
		edge, ok := g.EdgeCost(from, to)
		if !ok || !g.Passable(from) || !g.Passable(to) {
			return nil, errors.New(errors.ErrCodeInvalidEndpoint,
				"path record %s: step %v -> %v is not a feasible edge", rec.ID, from, to)
		}
		for k := range sum {
			sum[k] += edge[k]
		}
	}
	return sum, nil
}

// adjacent reports whether two cells are 8-connected neighbors.
func adjacent(a, b terrain.Coord) bool {
	dr, dc := a.Row-b.Row, a.Col-b.Col
	if dr < 0 {
		dr = -dr
	}
	if dc < 0 {
		dc = -dc
	}
	return dr <= 1 && dc <= 1 && (dr != 0 || dc != 0)
}

// VerifyCost replays a record and reports whether the stored cost vector
// matches the recomputed one within tolerance.
func VerifyCost(g *costmap.Graph, rec *store.PathRecord, tolerance float64) (bool, error) {
	replayed, err := Replay(g, rec)
	if err != nil {
		return false, err
	}
	if len(replayed) != len(rec.Cost) {
		return false, nil
	}
	for k := range replayed {
		if math.Abs(replayed[k]-rec.Cost[k]) > tolerance {
			return false, nil
		}
	}
	return true, nil
}

// PhysicalCost converts a normalized cost vector back to physical units
// using the graph's objective definitions: energy components scale back by
// their normalization divisor, risk components compound back into a total
// crash probability, distance and regret pass through unchanged.
func PhysicalCost(g *costmap.Graph, cost []float64) map[string]float64 {
	out := make(map[string]float64, len(cost))
	norms := g.Norms()
	for i, obj := range g.Objectives() {
		if i >= len(cost) {
			break
		}
		switch obj.Kind {
		case costmap.KindEnergy:
			out[obj.Name] = cost[i] * norms[i]
		case costmap.KindRisk:
			// The stored component is a sum of normalized per-edge
			// risks; compounding the normalization base over that sum
			// recovers the total crash probability.
			out[obj.Name] = 1 - math.Pow(1-norms[i], cost[i])
		default:
			out[obj.Name] = cost[i]
		}
	}
	return out
}

// pathLength sums the metric step lengths along a coordinate sequence.
func pathLength(stack *terrain.Stack, coords []terrain.Coord) float64 {
	total := 0.0
	for i := 1; i < len(coords); i++ {
		dr := float64(coords[i].Row - coords[i-1].Row)
		dc := float64(coords[i].Col - coords[i-1].Col)
		total += math.Sqrt(dr*dr+dc*dc) * stack.CellSize
	}
	return total
}

// costBreakdown maps stored cost components to their objective names.
func costBreakdown(rec *store.PathRecord) map[string]float64 {
	out := make(map[string]float64, len(rec.Cost))
	for i, v := range rec.Cost {
		name := "objective_" + strconv.Itoa(i)
		if i < len(rec.Objectives) {
			name = rec.Objectives[i]
		}
		out[name] = v
	}
	return out
}

// sampleAlong collects the valid layer samples at each path cell.
func sampleAlong(layer *terrain.Layer, coords []terrain.Coord) []float64 {
	samples := make([]float64, 0, len(coords))
	for _, c := range coords {
		if layer.HasData(c.Row, c.Col) {
			samples = append(samples, layer.At(c.Row, c.Col))
		}
	}
	return samples
}

// exposure returns the fraction of path length whose destination cell
// exceeds the threshold in the given layer.
func exposure(stack *terrain.Stack, layer *terrain.Layer, coords []terrain.Coord, threshold float64) float64 {
	total, exposed := 0.0, 0.0
	for i := 1; i < len(coords); i++ {
		dr := float64(coords[i].Row - coords[i-1].Row)
		dc := float64(coords[i].Col - coords[i-1].Col)
		step := math.Sqrt(dr*dr+dc*dc) * stack.CellSize
		total += step
		if v := layer.At(coords[i].Row, coords[i].Col); !math.IsNaN(v) && v > threshold {
			exposed += step
		}
	}
	if total == 0 {
		return 0
	}
	return exposed / total
}
