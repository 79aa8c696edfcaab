// Package pkg provides the core libraries for Traverse multi-objective
// path planning.
//
// # Overview
//
// Traverse plans routes for legged rovers over terrain maps, trading off
// several objectives at once instead of collapsing them into a single
// scalar. The pkg directory is organized into four main areas:
//
//  1. [terrain] / [costmap] - Domain data (layer stacks, cost map graphs)
//  2. [search] / [analyze] - Algorithms (Pareto search, path statistics)
//  3. [store] / [cache] - Persistence (path records, result caching)
//  4. [pipeline] - Orchestration (load → build → search → persist)
//
// # Architecture
//
// The typical data flow through Traverse:
//
//	Map config (TOML)
//	         ↓
//	terrain.Stack        raster/array/image layers on one grid
//	         ↓
//	costmap.Graph        passability + per-edge cost vectors
//	         ↓
//	search.FindParetoPaths
//	         ↓
//	search.Result        complete Pareto front of routes
//	         ↓
//	store.PathRecord     persisted, filterable, immutable
//	         ↓
//	analyze              statistics, replay verification, trade-offs
//
// Supporting packages: [errors] for coded errors shared by CLI and API,
// [observability] for pluggable instrumentation hooks, [buildinfo] for
// version metadata injected at build time.
package pkg
