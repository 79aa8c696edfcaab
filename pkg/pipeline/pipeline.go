// Package pipeline provides the core planning pipeline for Traverse.
//
// This package implements the complete load → build → search → persist
// pipeline that can be used by CLI and API components. By centralizing this
// logic, we ensure consistent behavior across all entry points and avoid
// code duplication.
//
// # Architecture
//
// The pipeline consists of four stages:
//
//  1. Load: Read the terrain layer stack from its map configuration
//  2. Build: Compile the stack and plan configuration into a cost map graph
//  3. Search: Compute the Pareto front between the requested endpoints
//  4. Persist: Optionally store the front as path records
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, store, logger)
//	opts := pipeline.Options{
//	    MapConfig:  "maps/apollo17.toml",
//	    PlanConfig: "plans/cautious.toml",
//	    Start:      terrain.Coord{Row: 0, Col: 0},
//	    Goal:       terrain.Coord{Row: 63, Col: 63},
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	front := result.Front
package pipeline

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/search"
	"github.com/roverlab/traverse/pkg/terrain"
)

// DefaultCancelEvery is the expansion interval between cancellation checks
// passed to the search engine.
const DefaultCancelEvery = 64

// Options contains all configuration for one planning run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// MapConfig is the path to the map configuration (layers and grid).
	MapConfig string `json:"map_config"`

	// PlanConfig is the path to the plan configuration (robot limits,
	// layer roles, objectives).
	PlanConfig string `json:"plan_config"`

	Start terrain.Coord `json:"start"`
	Goal  terrain.Coord `json:"goal"`

	// LabelCap bounds stored labels per node; 0 searches exhaustively.
	LabelCap int `json:"label_cap,omitempty"`

	// Save persists the resulting front to the configured record store.
	Save bool `json:"save,omitempty"`

	// Refresh bypasses the result cache read (the result is still
	// written back).
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.MapConfig == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "map_config is required")
	}
	if o.PlanConfig == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "plan_config is required")
	}
	if o.LabelCap < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "label_cap must be >= 0, got %d", o.LabelCap)
	}
	o.validated = true
	return nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Front is the Pareto front in lexicographic cost order.
	Front []search.Path

	// Status reports how the search ended.
	Status search.Status

	// Truncated reports that the label cap made the front approximate.
	Truncated bool

	// Objectives names the cost vector components in order.
	Objectives []string

	// ConfigHash identifies the plan configuration contents.
	ConfigHash string

	// RecordIDs holds the store IDs of persisted paths, in front order.
	// Empty unless Options.Save was set.
	RecordIDs []string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the search stage hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PassableCells int
	Expanded      int
	Generated     int
	LoadTime      time.Duration
	BuildTime     time.Duration
	SearchTime    time.Duration
}

// CacheInfo tracks cache hits for the pipeline.
type CacheInfo struct {
	PlanHit bool // Whether the front came from cache
}
