package costmap

import (
	"github.com/BurntSushi/toml"

	"github.com/roverlab/traverse/pkg/errors"
)

// ObjectiveKind selects the combination rule used to derive one cost
// component from the terrain layers.
type ObjectiveKind string

// Supported objective kinds.
const (
	// KindDistance charges the metric edge length.
	KindDistance ObjectiveKind = "distance"

	// KindEnergy charges a quadratic polynomial in slope and rock abundance,
	// scaled by edge length over the reference distance and normalized by
	// the per-map maximum.
	KindEnergy ObjectiveKind = "energy"

	// KindRisk charges a compounded crash probability: the polynomial gives
	// the per-reference-distance crash chance, clamped to [1e-5, 1], and the
	// edge cost is 1-(1-crash)^(d/d_ref), normalized by the per-map maximum.
	KindRisk ObjectiveKind = "risk"

	// KindRegret charges 1 - v where v is the normalized value of a source
	// layer at the destination cell, so that visiting high-value cells is
	// cheap. The source layer must hold values in [0, 1].
	KindRegret ObjectiveKind = "regret"
)

// validKinds is the set of supported objective kinds.
var validKinds = map[ObjectiveKind]bool{
	KindDistance: true,
	KindEnergy:   true,
	KindRisk:     true,
	KindRegret:   true,
}

// polyCoeffs is the number of coefficients of the capability polynomials:
// c0 + c1*s + c2*r + c3*s^2 + c4*s*r + c5*r^2.
const polyCoeffs = 6

// ObjectiveConfig describes one minimized cost component.
type ObjectiveConfig struct {
	Name   string        `toml:"name" json:"name"`
	Kind   ObjectiveKind `toml:"kind" json:"kind"`
	Weight float64       `toml:"weight" json:"weight"`           // frontier ordering only, never pruning
	Coeffs []float64     `toml:"coeffs" json:"coeffs,omitempty"` // energy/risk polynomial coefficients
	Layer  string        `toml:"layer" json:"layer,omitempty"`   // regret source layer
}

// RobotConfig holds the robot capability limits that gate passability and
// edge feasibility, plus the reference distance of the cost polynomials.
type RobotConfig struct {
	SlopeMin float64 `toml:"slope_min" json:"slope_min"` // degrees
	SlopeMax float64 `toml:"slope_max" json:"slope_max"` // degrees
	RockMin  float64 `toml:"rock_min" json:"rock_min"`
	RockMax  float64 `toml:"rock_max" json:"rock_max"`

	// ReferenceDistance is the distance (meters) the energy and risk
	// polynomials were fitted for. Defaults to 8.
	ReferenceDistance float64 `toml:"reference_distance" json:"reference_distance"`
}

// DefaultReferenceDistance is the fitted step length of the capability polynomials.
const DefaultReferenceDistance = 8.0

// LayerRoles binds the builder's structural roles to stack layer names.
type LayerRoles struct {
	Height string `toml:"height" json:"height"` // required: elevation source for slope derivation
	Rock   string `toml:"rock" json:"rock"`     // optional: rock abundance, gates passability
	Banned string `toml:"banned" json:"banned"` // optional: nonzero cells are impassable
}

// PlanConfig is the per-robot planning configuration: capability limits,
// layer role bindings, and the objective set. Decoded from TOML and
// validated once before graph construction.
type PlanConfig struct {
	Robot      RobotConfig       `toml:"robot" json:"robot"`
	Layers     LayerRoles        `toml:"layers" json:"layers"`
	Objectives []ObjectiveConfig `toml:"objectives" json:"objectives"`
}

// LoadPlanConfig reads and validates a plan configuration file.
func LoadPlanConfig(path string) (*PlanConfig, error) {
	var cfg PlanConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read plan config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and applies defaults.
func (c *PlanConfig) Validate() error {
	if c.Robot.ReferenceDistance == 0 {
		c.Robot.ReferenceDistance = DefaultReferenceDistance
	}
	if c.Robot.ReferenceDistance < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "robot.reference_distance must be positive")
	}
	if c.Robot.SlopeMax <= c.Robot.SlopeMin {
		return errors.New(errors.ErrCodeInvalidConfig,
			"robot slope limits: max %g must exceed min %g", c.Robot.SlopeMax, c.Robot.SlopeMin)
	}
	if c.Robot.RockMax < c.Robot.RockMin {
		return errors.New(errors.ErrCodeInvalidConfig,
			"robot rock limits: max %g below min %g", c.Robot.RockMax, c.Robot.RockMin)
	}
	if c.Layers.Height == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "layers.height is required")
	}
	if len(c.Objectives) == 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "at least one objective is required")
	}

	seen := make(map[string]bool, len(c.Objectives))
	for i, obj := range c.Objectives {
		if obj.Name == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "objective %d: name is required", i)
		}
		if seen[obj.Name] {
			return errors.New(errors.ErrCodeInvalidConfig, "duplicate objective %q", obj.Name)
		}
		seen[obj.Name] = true

		if !validKinds[obj.Kind] {
			return errors.New(errors.ErrCodeInvalidConfig,
				"objective %q: unknown kind %q (must be distance, energy, risk, or regret)", obj.Name, obj.Kind)
		}
		if obj.Weight < 0 {
			return errors.New(errors.ErrCodeInvalidConfig, "objective %q: weight must be non-negative", obj.Name)
		}
		switch obj.Kind {
		case KindEnergy, KindRisk:
			if len(obj.Coeffs) != polyCoeffs {
				return errors.New(errors.ErrCodeInvalidConfig,
					"objective %q: %s needs %d coefficients, got %d", obj.Name, obj.Kind, polyCoeffs, len(obj.Coeffs))
			}
		case KindRegret:
			if obj.Layer == "" {
				return errors.New(errors.ErrCodeInvalidConfig, "objective %q: regret needs a source layer", obj.Name)
			}
		}
	}
	return nil
}
