package search

import (
	"context"
	"math"
	"testing"

	"github.com/roverlab/traverse/pkg/costmap"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/terrain"
)

func testGraph(t *testing.T, rows, cols int, layers map[string][]float64, cfg *costmap.PlanConfig) *costmap.Graph {
	t.Helper()
	stack := terrain.NewStack("test", 1)
	for _, name := range []string{"height", "science"} {
		values, ok := layers[name]
		if !ok {
			continue
		}
		l, err := terrain.LayerFromValues(name, "", rows, cols, values)
		if err != nil {
			t.Fatal(err)
		}
		if err := stack.Add(l); err != nil {
			t.Fatal(err)
		}
	}
	g, err := costmap.Build(stack, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func distanceConfig() *costmap.PlanConfig {
	return &costmap.PlanConfig{
		Robot: costmap.RobotConfig{
			SlopeMin: -30, SlopeMax: 30, RockMax: 0.3, ReferenceDistance: 8,
		},
		Layers: costmap.LayerRoles{Height: "height"},
		Objectives: []costmap.ObjectiveConfig{
			{Name: "distance", Kind: costmap.KindDistance, Weight: 1},
		},
	}
}

// flat3x3 is a uniform passable grid with 1 m cells.
func flat3x3(t *testing.T, cfg *costmap.PlanConfig, layers map[string][]float64) *costmap.Graph {
	t.Helper()
	if layers == nil {
		layers = map[string][]float64{}
	}
	if _, ok := layers["height"]; !ok {
		layers["height"] = make([]float64, 9)
	}
	return testGraph(t, 3, 3, layers, cfg)
}

func TestSingleObjectiveDiagonal(t *testing.T) {
	g := flat3x3(t, distanceConfig(), nil)

	res, err := FindParetoPaths(context.Background(), g,
		terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 2, Col: 2}, Options{})
	if err != nil {
		t.Fatalf("FindParetoPaths: %v", err)
	}
	if res.Status != StatusComplete {
		t.Fatalf("status = %q, want complete", res.Status)
	}
	if len(res.Front) != 1 {
		t.Fatalf("front size = %d, want 1", len(res.Front))
	}

	p := res.Front[0]
	want := []terrain.Coord{{Row: 0, Col: 0}, {Row: 1, Col: 1}, {Row: 2, Col: 2}}
	if len(p.Coords) != len(want) {
		t.Fatalf("path = %v, want %v", p.Coords, want)
	}
	for i := range want {
		if p.Coords[i] != want[i] {
			t.Errorf("coord %d = %v, want %v", i, p.Coords[i], want[i])
		}
	}
	if math.Abs(p.Cost[0]-2*math.Sqrt2) > 1e-12 {
		t.Errorf("cost = %v, want 2*sqrt2", p.Cost[0])
	}
	if res.Truncated {
		t.Error("unexpected truncation")
	}
}

// twoObjectiveConfig adds a regret objective over the science layer, making
// the direct diagonal route expensive in the second objective.
func twoObjectiveConfig() *costmap.PlanConfig {
	cfg := distanceConfig()
	cfg.Objectives = append(cfg.Objectives, costmap.ObjectiveConfig{
		Name: "science", Kind: costmap.KindRegret, Layer: "science", Weight: 1,
	})
	return cfg
}

// centerPenalty values the center cell at zero so crossing it costs one
// full unit of regret; every other cell is free.
func centerPenalty() map[string][]float64 {
	return map[string][]float64{
		"science": {1, 1, 1, 1, 0, 1, 1, 1, 1},
	}
}

func TestTwoObjectiveFront(t *testing.T) {
	g := flat3x3(t, twoObjectiveConfig(), centerPenalty())

	res, err := FindParetoPaths(context.Background(), g,
		terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 2, Col: 2}, Options{})
	if err != nil {
		t.Fatalf("FindParetoPaths: %v", err)
	}
	if len(res.Front) != 2 {
		t.Fatalf("front size = %d, want 2: %v", len(res.Front), res.Front)
	}

	// Sorted lexicographically: diagonal (short, regretful) first.
	diag, detour := res.Front[0], res.Front[1]
	if math.Abs(diag.Cost[0]-2*math.Sqrt2) > 1e-12 || math.Abs(diag.Cost[1]-1) > 1e-12 {
		t.Errorf("diagonal cost = %v, want [2*sqrt2, 1]", diag.Cost)
	}
	if math.Abs(detour.Cost[0]-(2+math.Sqrt2)) > 1e-12 || detour.Cost[1] != 0 {
		t.Errorf("detour cost = %v, want [2+sqrt2, 0]", detour.Cost)
	}
	if Dominates(diag.Cost, detour.Cost) || Dominates(detour.Cost, diag.Cost) {
		t.Error("front members must be mutually non-dominated")
	}
}

func TestReplayEquality(t *testing.T) {
	g := flat3x3(t, twoObjectiveConfig(), centerPenalty())

	res, err := FindParetoPaths(context.Background(), g,
		terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 2, Col: 2}, Options{})
	if err != nil {
		t.Fatalf("FindParetoPaths: %v", err)
	}
	for _, p := range res.Front {
		sum := make([]float64, g.K())
		for i := 1; i < len(p.Coords); i++ {
			edge, ok := g.EdgeCost(p.Coords[i-1], p.Coords[i])
			if !ok {
				t.Fatalf("edge %v -> %v infeasible on replay", p.Coords[i-1], p.Coords[i])
			}
			for k := range sum {
				sum[k] += edge[k]
			}
		}
		for k := range sum {
			if math.Abs(sum[k]-p.Cost[k]) > 1e-9 {
				t.Errorf("objective %d: replayed %v, reported %v", k, sum[k], p.Cost[k])
			}
		}
	}
}

func TestDeterministicRepeat(t *testing.T) {
	g := flat3x3(t, twoObjectiveConfig(), centerPenalty())
	start, goal := terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 2, Col: 2}

	first, err := FindParetoPaths(context.Background(), g, start, goal, Options{})
	if err != nil {
		t.Fatal(err)
	}
	second, err := FindParetoPaths(context.Background(), g, start, goal, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Front) != len(second.Front) {
		t.Fatalf("front sizes differ: %d vs %d", len(first.Front), len(second.Front))
	}
	for i := range first.Front {
		a, b := first.Front[i], second.Front[i]
		for k := range a.Cost {
			if a.Cost[k] != b.Cost[k] {
				t.Errorf("path %d objective %d: %v vs %v", i, k, a.Cost[k], b.Cost[k])
			}
		}
		for j := range a.Coords {
			if a.Coords[j] != b.Coords[j] {
				t.Errorf("path %d coord %d: %v vs %v", i, j, a.Coords[j], b.Coords[j])
			}
		}
	}
}

func TestStartEqualsGoal(t *testing.T) {
	g := flat3x3(t, distanceConfig(), nil)
	c := terrain.Coord{Row: 1, Col: 1}

	res, err := FindParetoPaths(context.Background(), g, c, c, Options{})
	if err != nil {
		t.Fatalf("FindParetoPaths: %v", err)
	}
	if len(res.Front) != 1 {
		t.Fatalf("front size = %d, want 1", len(res.Front))
	}
	p := res.Front[0]
	if len(p.Coords) != 1 || p.Coords[0] != c {
		t.Errorf("coords = %v, want [%v]", p.Coords, c)
	}
	if p.Cost[0] != 0 {
		t.Errorf("cost = %v, want 0", p.Cost[0])
	}
}

func TestInvalidEndpoints(t *testing.T) {
	nan := math.NaN()
	g := testGraph(t, 1, 3, map[string][]float64{
		"height": {0, nan, 0},
	}, distanceConfig())

	tests := []struct {
		name        string
		start, goal terrain.Coord
	}{
		{"StartOutOfBounds", terrain.Coord{Row: -1, Col: 0}, terrain.Coord{Row: 0, Col: 0}},
		{"GoalOutOfBounds", terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 5, Col: 5}},
		{"StartImpassable", terrain.Coord{Row: 0, Col: 1}, terrain.Coord{Row: 0, Col: 0}},
		{"GoalImpassable", terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 0, Col: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindParetoPaths(context.Background(), g, tt.start, tt.goal, Options{})
			if !errors.Is(err, errors.ErrCodeInvalidEndpoint) {
				t.Errorf("err = %v, want INVALID_ENDPOINT", err)
			}
		})
	}
}

func TestUnreachableGoal(t *testing.T) {
	// The middle cell is no-data, splitting the row in two.
	nan := math.NaN()
	g := testGraph(t, 1, 3, map[string][]float64{
		"height": {0, nan, 0},
	}, distanceConfig())

	res, err := FindParetoPaths(context.Background(), g,
		terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 0, Col: 2}, Options{})
	if err != nil {
		t.Fatalf("no-path must not be an error, got %v", err)
	}
	if res.Status != StatusNoPath {
		t.Errorf("status = %q, want no-path", res.Status)
	}
	if len(res.Front) != 0 {
		t.Errorf("front size = %d, want 0", len(res.Front))
	}
}

func TestCancellation(t *testing.T) {
	g := flat3x3(t, distanceConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := FindParetoPaths(ctx, g,
		terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 2, Col: 2},
		Options{CancelEvery: 1})
	if !errors.Is(err, errors.ErrCodeCancelled) {
		t.Fatalf("err = %v, want CANCELLED", err)
	}
	if res.Status != StatusCancelled {
		t.Errorf("status = %q, want cancelled", res.Status)
	}
	if len(res.Front) != 0 {
		t.Error("cancelled query must not return a partial front")
	}
}

func TestLabelCapTruncation(t *testing.T) {
	g := flat3x3(t, twoObjectiveConfig(), centerPenalty())

	res, err := FindParetoPaths(context.Background(), g,
		terrain.Coord{Row: 0, Col: 0}, terrain.Coord{Row: 2, Col: 2},
		Options{LabelCap: 1})
	if err != nil {
		t.Fatalf("FindParetoPaths: %v", err)
	}
	if !res.Truncated {
		t.Error("cap of 1 on a two-path front must set Truncated")
	}
	if len(res.Front) == 0 {
		t.Error("truncated search should still return the surviving paths")
	}
}

func TestDominates(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want bool
	}{
		{"StrictlyBetter", []float64{1, 1}, []float64{2, 2}, true},
		{"BetterInOne", []float64{1, 2}, []float64{2, 2}, true},
		{"Equal", []float64{2, 2}, []float64{2, 2}, false},
		{"Incomparable", []float64{1, 3}, []float64{2, 2}, false},
		{"Worse", []float64{3, 3}, []float64{2, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dominates(tt.a, tt.b); got != tt.want {
				t.Errorf("Dominates(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
