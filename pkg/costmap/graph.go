// Package costmap converts a terrain layer stack and a plan configuration
// into an immutable weighted graph over grid cells.
//
// Cells are connected with 8-connectivity. Each edge carries a cost vector
// of length K, one non-negative component per configured objective. Edges
// are represented implicitly: the graph exposes the deterministic neighbor
// order and an EdgeCost function over its immutable inputs, so edge weights
// are reproducible without materializing the full edge set.
//
// Once built, a Graph is never mutated and may be shared read-only across
// any number of concurrent planning queries.
package costmap

import (
	"math"

	"github.com/roverlab/traverse/pkg/terrain"
)

// neighborOffsets is the fixed expansion order for 8-connectivity.
// Row-major scan order makes traversal deterministic.
var neighborOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Graph is the immutable weighted grid graph for one map and plan
// configuration.
type Graph struct {
	stack      *terrain.Stack
	robot      RobotConfig
	objectives []ObjectiveConfig

	height *terrain.Layer
	rock   *terrain.Layer   // nil when no rock role is bound
	regret []*terrain.Layer // indexed per objective, nil for non-regret kinds

	passable []bool    // row-major cell passability
	norms    []float64 // per-objective divisor applied to raw components
	weights  []float64 // per-objective frontier-ordering weights
	hmin     float64   // minimal weighted cost per meter (ordering bound)
}

// Rows returns the grid height.
func (g *Graph) Rows() int { return g.stack.Rows }

// Cols returns the grid width.
func (g *Graph) Cols() int { return g.stack.Cols }

// CellSize returns the cell edge length in meters.
func (g *Graph) CellSize() float64 { return g.stack.CellSize }

// Stack returns the terrain stack the graph was built from.
func (g *Graph) Stack() *terrain.Stack { return g.stack }

// Robot returns the robot capability configuration.
func (g *Graph) Robot() RobotConfig { return g.robot }

// K returns the number of objectives.
func (g *Graph) K() int { return len(g.objectives) }

// Objectives returns the objective configurations in cost-vector order.
func (g *Graph) Objectives() []ObjectiveConfig { return g.objectives }

// ObjectiveNames returns the objective names in cost-vector order.
func (g *Graph) ObjectiveNames() []string {
	names := make([]string, len(g.objectives))
	for i, obj := range g.objectives {
		names[i] = obj.Name
	}
	return names
}

// Norms returns the per-objective normalization divisors. Distance and
// regret components use 1.
func (g *Graph) Norms() []float64 { return g.norms }

// Weights returns the per-objective frontier-ordering weights.
func (g *Graph) Weights() []float64 { return g.weights }

// InBounds reports whether c lies within the grid.
func (g *Graph) InBounds(c terrain.Coord) bool { return g.stack.InBounds(c) }

// Passable reports whether c is a valid, traversable cell.
func (g *Graph) Passable(c terrain.Coord) bool {
	if !g.stack.InBounds(c) {
		return false
	}
	return g.passable[c.Row*g.stack.Cols+c.Col]
}

// PassableCount returns the number of traversable cells.
func (g *Graph) PassableCount() int {
	n := 0
	for _, p := range g.passable {
		if p {
			n++
		}
	}
	return n
}

// Neighbors appends the passable 8-neighbors of c to buf and returns it.
// The order is fixed (row-major offsets) so traversal is deterministic.
// Slope feasibility is checked by EdgeCost, not here.
func (g *Graph) Neighbors(c terrain.Coord, buf []terrain.Coord) []terrain.Coord {
	for _, off := range neighborOffsets {
		n := terrain.Coord{Row: c.Row + off[0], Col: c.Col + off[1]}
		if g.Passable(n) {
			buf = append(buf, n)
		}
	}
	return buf
}

// StepDistance returns the metric length of the step between two adjacent
// cells.
func (g *Graph) StepDistance(from, to terrain.Coord) float64 {
	dr := float64(to.Row - from.Row)
	dc := float64(to.Col - from.Col)
	return math.Sqrt(dr*dr+dc*dc) * g.stack.CellSize
}

// EuclideanDistance returns the straight-line metric distance between two
// cells, the basis of the frontier-ordering heuristic.
func (g *Graph) EuclideanDistance(a, b terrain.Coord) float64 {
	dr := float64(b.Row - a.Row)
	dc := float64(b.Col - a.Col)
	return math.Sqrt(dr*dr+dc*dc) * g.stack.CellSize
}

// MinCostPerMeter returns a lower-ish bound on the weighted cost of
// traversing one meter of terrain. The search uses it only to order the
// frontier; it is never used for pruning, so its tightness affects speed
// but not which paths are found.
func (g *Graph) MinCostPerMeter() float64 { return g.hmin }

// EdgeCost computes the K-component cost vector of the directed edge from
// one passable cell to an adjacent passable cell. It returns ok=false when
// the edge is infeasible (slope outside the robot's limits).
//
// All returned components are finite and non-negative.
func (g *Graph) EdgeCost(from, to terrain.Coord) ([]float64, bool) {
	dist := g.StepDistance(from, to)
	slope := g.slope(from, to, dist)
	if slope < g.robot.SlopeMin || slope > g.robot.SlopeMax || math.IsNaN(slope) {
		return nil, false
	}

	rock := 0.0
	if g.rock != nil {
		rock = g.rock.At(to.Row, to.Col)
	}

	cost := make([]float64, len(g.objectives))
	for i, obj := range g.objectives {
		cost[i] = g.component(i, obj, slope, rock, dist, to)
	}
	return cost, true
}

// slope returns the grade between two adjacent cells in degrees.
func (g *Graph) slope(from, to terrain.Coord, dist float64) float64 {
	rise := g.height.At(to.Row, to.Col) - g.height.At(from.Row, from.Col)
	return degrees(math.Atan(rise / dist))
}

// component evaluates one objective's combination rule for an edge.
func (g *Graph) component(i int, obj ObjectiveConfig, slope, rock, dist float64, to terrain.Coord) float64 {
	switch obj.Kind {
	case KindDistance:
		return dist
	case KindEnergy:
		e := math.Max(0, poly(obj.Coeffs, slope, rock)) * dist / g.robot.ReferenceDistance
		return e / g.norms[i]
	case KindRisk:
		crash := clampCrash(poly(obj.Coeffs, slope, rock))
		return compoundRisk(crash, dist/g.robot.ReferenceDistance) / g.norms[i]
	case KindRegret:
		v := g.regret[i].At(to.Row, to.Col)
		return 1 - clamp01(v)
	}
	return 0
}
