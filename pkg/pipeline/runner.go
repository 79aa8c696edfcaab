package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/roverlab/traverse/pkg/cache"
	"github.com/roverlab/traverse/pkg/costmap"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/observability"
	"github.com/roverlab/traverse/pkg/search"
	"github.com/roverlab/traverse/pkg/store"
	"github.com/roverlab/traverse/pkg/terrain"
)

// Runner encapsulates pipeline execution with caching and persistence.
// Both CLI and API use this to avoid duplicating the stage logic.
//
// The Runner is stateless except for its collaborators - it doesn't store
// pipeline results. Multiple goroutines can safely use the same Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  store.Store // nil disables persistence
	Logger *log.Logger
}

// NewRunner creates a runner with the given collaborators.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
// If st is nil, Save requests fail with an INVALID_CONFIG error.
func NewRunner(c cache.Cache, keyer cache.Keyer, st store.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  st,
		Logger: logger,
	}
}

// cachedPlan is the serialized form of a search result in the cache.
type cachedPlan struct {
	Front      []search.Path `json:"front"`
	Status     search.Status `json:"status"`
	Truncated  bool          `json:"truncated"`
	Objectives []string      `json:"objectives"`
}

// Execute runs the complete load → build → search → persist pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = r.Logger
	}

	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	stack, stackHash, err := r.LoadStack(opts.MapConfig)
	if err != nil {
		return nil, err
	}
	result.Stats.LoadTime = time.Since(loadStart)

	logger.Info("loaded terrain stack",
		"map", stack.Name,
		"layers", len(stack.Layers()),
		"grid", stack.Rows*stack.Cols,
		"duration", result.Stats.LoadTime)

	// Stage 2: Build
	buildStart := time.Now()
	g, planHash, err := r.BuildGraph(ctx, stack, opts.PlanConfig)
	if err != nil {
		return nil, err
	}
	result.Stats.BuildTime = time.Since(buildStart)
	result.Stats.PassableCells = g.PassableCount()
	result.Objectives = g.ObjectiveNames()
	result.ConfigHash = planHash

	logger.Info("built cost map",
		"objectives", g.K(),
		"passable", result.Stats.PassableCells,
		"duration", result.Stats.BuildTime)

	// Stage 3: Search (cached)
	searchStart := time.Now()
	planKey := r.Keyer.PlanKey(stackHash, planHash, opts.Start, opts.Goal,
		cache.PlanKeyOpts{LabelCap: opts.LabelCap})

	if !opts.Refresh {
		if cached, ok := r.loadCachedPlan(ctx, planKey); ok {
			result.Front = cached.Front
			result.Status = cached.Status
			result.Truncated = cached.Truncated
			result.CacheInfo.PlanHit = true
			result.Stats.SearchTime = time.Since(searchStart)
			logger.Info("plan cache hit", "paths", len(result.Front))
			return r.persist(ctx, opts, planHash, result)
		}
	}

	observability.Planner().OnSearchStart(ctx, opts.Start.String(), opts.Goal.String())
	res, err := search.FindParetoPaths(ctx, g, opts.Start, opts.Goal, search.Options{
		LabelCap:    opts.LabelCap,
		CancelEvery: DefaultCancelEvery,
	})
	result.Stats.SearchTime = time.Since(searchStart)
	observability.Planner().OnSearchComplete(ctx, opts.Start.String(), opts.Goal.String(),
		frontSize(res), expandedCount(res), result.Stats.SearchTime, err)
	if err != nil {
		return nil, err
	}

	result.Front = res.Front
	result.Status = res.Status
	result.Truncated = res.Truncated
	result.Stats.Expanded = res.Expanded
	result.Stats.Generated = res.Generated

	logger.Info("search complete",
		"status", res.Status,
		"paths", len(res.Front),
		"expanded", res.Expanded,
		"duration", result.Stats.SearchTime)

	r.storeCachedPlan(ctx, planKey, result)

	return r.persist(ctx, opts, planHash, result)
}

// LoadStack reads a map configuration and builds its terrain stack. The
// returned hash fingerprints the configuration file contents.
func (r *Runner) LoadStack(mapPath string) (*terrain.Stack, string, error) {
	data, err := os.ReadFile(mapPath)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading map config %s", mapPath)
	}
	cfg, err := terrain.LoadMapConfig(mapPath)
	if err != nil {
		return nil, "", err
	}
	stack, err := terrain.BuildStack(cfg, filepath.Dir(mapPath))
	if err != nil {
		return nil, "", err
	}
	return stack, cache.Hash(data), nil
}

// BuildGraph reads a plan configuration and compiles the cost map graph.
// The returned hash fingerprints the configuration file contents and serves
// as the ConfigRef of persisted records.
func (r *Runner) BuildGraph(ctx context.Context, stack *terrain.Stack, planPath string) (*costmap.Graph, string, error) {
	data, err := os.ReadFile(planPath)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "reading plan config %s", planPath)
	}
	cfg, err := costmap.LoadPlanConfig(planPath)
	if err != nil {
		return nil, "", err
	}

	observability.Planner().OnBuildStart(ctx, stack.Name, len(cfg.Objectives))
	start := time.Now()
	g, err := costmap.Build(stack, cfg)
	passable := 0
	if g != nil {
		passable = g.PassableCount()
	}
	observability.Planner().OnBuildComplete(ctx, stack.Name, passable, time.Since(start), err)
	if err != nil {
		return nil, "", err
	}
	return g, cache.Hash(data), nil
}

// persist stores the front as path records when requested.
func (r *Runner) persist(ctx context.Context, opts Options, planHash string, result *Result) (*Result, error) {
	if !opts.Save || len(result.Front) == 0 {
		return result, nil
	}
	if r.Store == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "save requested but no record store is configured")
	}

	for _, p := range result.Front {
		rec := &store.PathRecord{
			Coords:     p.Coords,
			Cost:       p.Cost,
			Objectives: result.Objectives,
			ConfigRef:  planHash,
		}
		id, err := r.Store.Insert(ctx, rec)
		if err != nil {
			observability.Store().OnError(ctx, "insert", err)
			return nil, err
		}
		observability.Store().OnInsert(ctx, id, len(rec.Coords))
		result.RecordIDs = append(result.RecordIDs, id)
	}
	return result, nil
}

// loadCachedPlan fetches and decodes a cached search result.
func (r *Runner) loadCachedPlan(ctx context.Context, key string) (*cachedPlan, bool) {
	data, found, err := r.Cache.Get(ctx, key)
	if err != nil || !found {
		observability.Cache().OnCacheMiss(ctx, "plan")
		return nil, false
	}
	var cached cachedPlan
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupt entry - drop it and recompute.
		_ = r.Cache.Delete(ctx, key)
		observability.Cache().OnCacheMiss(ctx, "plan")
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "plan")
	return &cached, true
}

// storeCachedPlan serializes a completed search result into the cache.
// Cache failures are logged, never fatal.
func (r *Runner) storeCachedPlan(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(cachedPlan{
		Front:      result.Front,
		Status:     result.Status,
		Truncated:  result.Truncated,
		Objectives: result.Objectives,
	})
	if err != nil {
		r.Logger.Warn("failed to encode plan for cache", "error", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, cache.TTLResult); err != nil {
		r.Logger.Warn("failed to cache plan", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "plan", len(data))
}

func frontSize(res *search.Result) int {
	if res == nil {
		return 0
	}
	return len(res.Front)
}

func expandedCount(res *search.Result) int {
	if res == nil {
		return 0
	}
	return res.Expanded
}
