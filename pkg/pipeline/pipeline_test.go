package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/roverlab/traverse/pkg/cache"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/search"
	"github.com/roverlab/traverse/pkg/store"
	"github.com/roverlab/traverse/pkg/terrain"
)

// flatASC is a uniform 3x3 grid with 1 m cells.
const flatASC = `ncols 3
nrows 3
cellsize 1.0
NODATA_value -9999
0 0 0
0 0 0
0 0 0
`

const mapTOML = `
[map]
name = "testsite"
cell_size = 1.0

[layers.height]
source = "raster"
path = "height.asc"
unit = "m"
`

const planTOML = `
[robot]
slope_min = -30.0
slope_max = 30.0
rock_max = 0.3

[layers]
height = "height"

[[objectives]]
name = "distance"
kind = "distance"
weight = 1.0
`

// fixtures writes the map, plan, and raster files and returns their paths.
func fixtures(t *testing.T) (mapPath, planPath string) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	write("height.asc", flatASC)
	return write("map.toml", mapTOML), write("plan.toml", planTOML)
}

func TestExecutePlansAndCaches(t *testing.T) {
	mapPath, planPath := fixtures(t)
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fileCache, nil, nil, nil)

	opts := Options{
		MapConfig:  mapPath,
		PlanConfig: planPath,
		Start:      terrain.Coord{Row: 0, Col: 0},
		Goal:       terrain.Coord{Row: 2, Col: 2},
	}

	first, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.Status != search.StatusComplete {
		t.Fatalf("status = %q, want complete", first.Status)
	}
	if len(first.Front) != 1 {
		t.Fatalf("front size = %d, want 1", len(first.Front))
	}
	if math.Abs(first.Front[0].Cost[0]-2*math.Sqrt2) > 1e-12 {
		t.Errorf("cost = %v, want 2*sqrt2", first.Front[0].Cost[0])
	}
	if first.CacheInfo.PlanHit {
		t.Error("first run must not hit the cache")
	}
	if first.ConfigHash == "" {
		t.Error("config hash must be set")
	}
	if got := first.Objectives; len(got) != 1 || got[0] != "distance" {
		t.Errorf("objectives = %v", got)
	}

	second, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheInfo.PlanHit {
		t.Error("second run should hit the plan cache")
	}
	if len(second.Front) != len(first.Front) {
		t.Fatalf("cached front size = %d, want %d", len(second.Front), len(first.Front))
	}
	for k := range first.Front[0].Cost {
		if second.Front[0].Cost[k] != first.Front[0].Cost[k] {
			t.Errorf("cached cost differs at %d", k)
		}
	}

	// Refresh bypasses the cache read.
	opts.Refresh = true
	third, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheInfo.PlanHit {
		t.Error("refresh run must not hit the cache")
	}
}

func TestExecuteSavesRecords(t *testing.T) {
	mapPath, planPath := fixtures(t)
	st := store.NewMemoryStore(store.Options{})
	r := NewRunner(nil, nil, st, nil)

	res, err := r.Execute(context.Background(), Options{
		MapConfig:  mapPath,
		PlanConfig: planPath,
		Start:      terrain.Coord{Row: 0, Col: 0},
		Goal:       terrain.Coord{Row: 2, Col: 2},
		Save:       true,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.RecordIDs) != len(res.Front) {
		t.Fatalf("record ids = %d, front = %d", len(res.RecordIDs), len(res.Front))
	}

	rec, err := st.Get(context.Background(), res.RecordIDs[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ConfigRef != res.ConfigHash {
		t.Errorf("config ref = %q, want %q", rec.ConfigRef, res.ConfigHash)
	}
	if rec.Objectives[0] != "distance" {
		t.Errorf("objectives = %v", rec.Objectives)
	}
}

func TestExecuteSaveWithoutStore(t *testing.T) {
	mapPath, planPath := fixtures(t)
	r := NewRunner(nil, nil, nil, nil)

	_, err := r.Execute(context.Background(), Options{
		MapConfig:  mapPath,
		PlanConfig: planPath,
		Start:      terrain.Coord{Row: 0, Col: 0},
		Goal:       terrain.Coord{Row: 2, Col: 2},
		Save:       true,
	})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"MissingMap", Options{PlanConfig: "p.toml"}},
		{"MissingPlan", Options{MapConfig: "m.toml"}},
		{"NegativeCap", Options{MapConfig: "m.toml", PlanConfig: "p.toml", LabelCap: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.opts.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidConfig) {
				t.Errorf("err = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestExecuteMissingConfigs(t *testing.T) {
	r := NewRunner(nil, nil, nil, nil)
	_, err := r.Execute(context.Background(), Options{
		MapConfig:  "/does/not/exist.toml",
		PlanConfig: "/does/not/exist.toml",
	})
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("err = %v, want INVALID_CONFIG", err)
	}
}
