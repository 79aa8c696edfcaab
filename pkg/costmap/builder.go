package costmap

import (
	"math"

	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/terrain"
)

// Build constructs the immutable weighted graph for a terrain stack and a
// validated plan configuration.
//
// Cells are marked impassable when any mandatory layer (height, rock if
// bound, every regret source) lacks data at that position, when rock
// abundance falls outside the robot's limits, or when the banned layer is
// nonzero. Impassable cells contribute no edges. The builder never mutates
// the source layers.
func Build(stack *terrain.Stack, cfg *PlanConfig) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	height, ok := stack.Layer(cfg.Layers.Height)
	if !ok {
		return nil, errors.New(errors.ErrCodeMissingLayer,
			"height layer %q not present in map %q", cfg.Layers.Height, stack.Name)
	}

	var rock *terrain.Layer
	if cfg.Layers.Rock != "" {
		if rock, ok = stack.Layer(cfg.Layers.Rock); !ok {
			return nil, errors.New(errors.ErrCodeMissingLayer,
				"rock layer %q not present in map %q", cfg.Layers.Rock, stack.Name)
		}
	}

	var banned *terrain.Layer
	if cfg.Layers.Banned != "" {
		if banned, ok = stack.Layer(cfg.Layers.Banned); !ok {
			return nil, errors.New(errors.ErrCodeMissingLayer,
				"banned layer %q not present in map %q", cfg.Layers.Banned, stack.Name)
		}
	}

	regret := make([]*terrain.Layer, len(cfg.Objectives))
	for i, obj := range cfg.Objectives {
		if obj.Kind != KindRegret {
			continue
		}
		if regret[i], ok = stack.Layer(obj.Layer); !ok {
			return nil, errors.New(errors.ErrCodeMissingLayer,
				"objective %q: layer %q not present in map %q", obj.Name, obj.Layer, stack.Name)
		}
	}

	g := &Graph{
		stack:      stack,
		robot:      cfg.Robot,
		objectives: cfg.Objectives,
		height:     height,
		rock:       rock,
		regret:     regret,
	}
	g.passable = buildPassability(stack, cfg, height, rock, banned, regret)
	g.norms, g.weights, g.hmin = buildScales(cfg, stack.CellSize)
	return g, nil
}

// buildPassability computes the row-major passability mask.
func buildPassability(stack *terrain.Stack, cfg *PlanConfig,
	height, rock, banned *terrain.Layer, regret []*terrain.Layer) []bool {

	passable := make([]bool, stack.Rows*stack.Cols)
	for r := 0; r < stack.Rows; r++ {
	cells:
		for c := 0; c < stack.Cols; c++ {
			if !height.HasData(r, c) {
				continue
			}
			if rock != nil {
				v := rock.At(r, c)
				if math.IsNaN(v) || v < cfg.Robot.RockMin || v > cfg.Robot.RockMax {
					continue
				}
			}
			// No-data in the banned layer counts as not banned.
			if banned != nil {
				if v := banned.At(r, c); !math.IsNaN(v) && v != 0 {
					continue
				}
			}
			for _, layer := range regret {
				if layer != nil && !layer.HasData(r, c) {
					continue cells
				}
			}
			passable[r*stack.Cols+c] = true
		}
	}
	return passable
}

// buildScales derives the per-objective normalization divisors, the
// ordering weights, and the minimal weighted cost per meter. Energy and
// risk are normalized by the cost of the worst feasible diagonal step, so a
// single edge component never exceeds 1.
func buildScales(cfg *PlanConfig, cellSize float64) (norms, weights []float64, hmin float64) {
	norms = make([]float64, len(cfg.Objectives))
	weights = make([]float64, len(cfg.Objectives))
	dref := cfg.Robot.ReferenceDistance
	dmax := math.Sqrt2 * cellSize

	for i, obj := range cfg.Objectives {
		weights[i] = obj.Weight
		norms[i] = 1

		// Minimal normalized cost of this objective per meter traversed.
		var unit float64
		switch obj.Kind {
		case KindDistance:
			unit = 1
		case KindEnergy:
			lo, hi := polyExtrema(obj.Coeffs, cfg.Robot)
			if norm := math.Max(0, hi) * dmax / dref; norm > 0 {
				norms[i] = norm
			}
			unit = math.Max(0, lo) / dref / norms[i]
		case KindRisk:
			_, hi := polyExtrema(obj.Coeffs, cfg.Robot)
			if norm := compoundRisk(clampCrash(hi), dmax/dref); norm > 0 {
				norms[i] = norm
			}
			unit = compoundRisk(minCrash, 1.0/dref) / norms[i]
		case KindRegret:
			unit = 0 // a fully valuable cell costs nothing
		}
		hmin += obj.Weight * unit
	}
	return norms, weights, hmin
}
