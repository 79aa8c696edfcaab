package analyze

import (
	"math"
	"testing"

	"github.com/roverlab/traverse/pkg/costmap"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/store"
	"github.com/roverlab/traverse/pkg/terrain"
)

func testStack(t *testing.T, rows, cols int, cellSize float64, layers map[string][]float64) *terrain.Stack {
	t.Helper()
	stack := terrain.NewStack("test", cellSize)
	for _, name := range []string{"height", "rock"} {
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
	return stack
}

func rowPath(cols ...int) []terrain.Coord {
	coords := make([]terrain.Coord, len(cols))
	for i, c := range cols {
		coords[i] = terrain.Coord{Row: 0, Col: c}
	}
	return coords
}

func TestSummarizeLayerStats(t *testing.T) {
	stack := testStack(t, 1, 4, 1, map[string][]float64{
		"height": {10, 12, 15, 11},
	})
	rec := &store.PathRecord{
		ID:         "p1",
		Coords:     rowPath(0, 1, 2, 3),
		Cost:       []float64{3},
		Objectives: []string{"distance"},
	}

	ps, err := Summarize(stack, rec, Options{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if ps.Steps != 3 {
		t.Errorf("steps = %d, want 3", ps.Steps)
	}
	if math.Abs(ps.Length-3) > 1e-12 {
		t.Errorf("length = %v, want 3", ps.Length)
	}
	if ps.Cost["distance"] != 3 {
		t.Errorf("cost breakdown = %v", ps.Cost)
	}
	if len(ps.Layers) != 1 {
		t.Fatalf("layer stats = %+v, want 1 entry", ps.Layers)
	}
	h := ps.Layers[0]
	if h.Min != 10 || h.Max != 15 || math.Abs(h.Mean-12) > 1e-12 {
		t.Errorf("height stats = %+v, want min 10 max 15 mean 12", h)
	}
	if ps.Exposure != -1 {
		t.Errorf("exposure = %v, want -1 when disabled", ps.Exposure)
	}
}

func TestSummarizeExposure(t *testing.T) {
	// Two of three unit steps land on cells above the 0.2 threshold.
	stack := testStack(t, 1, 4, 1, map[string][]float64{
		"height": {0, 0, 0, 0},
		"rock":   {0, 0.3, 0.25, 0.1},
	})
	rec := &store.PathRecord{
		ID:     "p2",
		Coords: rowPath(0, 1, 2, 3),
		Cost:   []float64{3},
	}

	ps, err := Summarize(stack, rec, Options{ExposureLayer: "rock", ExposureThreshold: 0.2})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if math.Abs(ps.Exposure-2.0/3.0) > 1e-12 {
		t.Errorf("exposure = %v, want 2/3", ps.Exposure)
	}
}

func TestSummarizeOutOfBounds(t *testing.T) {
	stack := testStack(t, 1, 2, 1, map[string][]float64{"height": {0, 0}})
	rec := &store.PathRecord{ID: "p3", Coords: rowPath(0, 5), Cost: []float64{1}}

	if _, err := Summarize(stack, rec, Options{}); !errors.Is(err, errors.ErrCodeInvalidEndpoint) {
		t.Errorf("err = %v, want INVALID_ENDPOINT", err)
	}
}

func flatGraph(t *testing.T, cols int) *costmap.Graph {
	t.Helper()
	stack := testStack(t, 1, cols, 1, map[string][]float64{"height": make([]float64, cols)})
	g, err := costmap.Build(stack, &costmap.PlanConfig{
		Robot:  costmap.RobotConfig{SlopeMin: -30, SlopeMax: 30, RockMax: 0.3, ReferenceDistance: 8},
		Layers: costmap.LayerRoles{Height: "height"},
		Objectives: []costmap.ObjectiveConfig{
			{Name: "distance", Kind: costmap.KindDistance, Weight: 1},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestReplayAndVerify(t *testing.T) {
	g := flatGraph(t, 4)
	rec := &store.PathRecord{
		ID:     "p4",
		Coords: rowPath(0, 1, 2, 3),
		Cost:   []float64{3},
	}

	replayed, err := Replay(g, rec)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if math.Abs(replayed[0]-3) > 1e-12 {
		t.Errorf("replayed cost = %v, want 3", replayed[0])
	}

	ok, err := VerifyCost(g, rec, 1e-9)
	if err != nil || !ok {
		t.Errorf("VerifyCost = %v, %v; want true, nil", ok, err)
	}

	rec.Cost = []float64{2.5}
	ok, err = VerifyCost(g, rec, 1e-9)
	if err != nil || ok {
		t.Errorf("VerifyCost with wrong cost = %v, %v; want false, nil", ok, err)
	}
}

func TestReplayRejectsNonAdjacentStep(t *testing.T) {
	g := flatGraph(t, 4)
	rec := &store.PathRecord{ID: "p5", Coords: rowPath(0, 3), Cost: []float64{3}}

	// (0,0) -> (0,3) is not an edge even though the terrain is flat.
	if _, err := Replay(g, rec); !errors.Is(err, errors.ErrCodeInvalidEndpoint) {
		t.Errorf("err = %v, want INVALID_ENDPOINT", err)
	}
}

func TestPhysicalCost(t *testing.T) {
	stack := testStack(t, 1, 2, 8, map[string][]float64{
		"height": {0, 0},
		"rock":   {0.1, 0.1},
	})
	coeffs := []float64{100, 1, 1, 0.1, 0.1, 10}
	riskCoeffs := []float64{0.01, 0.0001, 0.1, 0.0001, 0.001, 1}
	g, err := costmap.Build(stack, &costmap.PlanConfig{
		Robot:  costmap.RobotConfig{SlopeMin: -30, SlopeMax: 30, RockMax: 0.3, ReferenceDistance: 8},
		Layers: costmap.LayerRoles{Height: "height", Rock: "rock"},
		Objectives: []costmap.ObjectiveConfig{
			{Name: "distance", Kind: costmap.KindDistance, Weight: 1},
			{Name: "energy", Kind: costmap.KindEnergy, Weight: 1, Coeffs: coeffs},
			{Name: "risk", Kind: costmap.KindRisk, Weight: 1, Coeffs: riskCoeffs},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	cost := []float64{16, 0.5, 0.25}
	phys := PhysicalCost(g, cost)

	if phys["distance"] != 16 {
		t.Errorf("distance = %v, want 16 (pass-through)", phys["distance"])
	}
	wantEnergy := 0.5 * g.Norms()[1]
	if math.Abs(phys["energy"]-wantEnergy) > 1e-12 {
		t.Errorf("energy = %v, want %v", phys["energy"], wantEnergy)
	}
	wantRisk := 1 - math.Pow(1-g.Norms()[2], 0.25)
	if math.Abs(phys["risk"]-wantRisk) > 1e-12 {
		t.Errorf("risk = %v, want %v", phys["risk"], wantRisk)
	}
	if phys["risk"] <= 0 || phys["risk"] >= 1 {
		t.Errorf("risk = %v, want a probability in (0, 1)", phys["risk"])
	}
}

func TestFrontTradeOff(t *testing.T) {
	recs := []*store.PathRecord{
		{ID: "a", Cost: []float64{4, 1}, Objectives: []string{"distance", "risk"}},
		{ID: "b", Cost: []float64{6, 0}, Objectives: []string{"distance", "risk"}},
	}

	offs, err := FrontTradeOff(recs)
	if err != nil {
		t.Fatalf("FrontTradeOff: %v", err)
	}
	rates := map[[2]string]float64{}
	for _, o := range offs {
		rates[[2]string{o.A, o.B}] = o.Rate
		if o.Samples != 1 {
			t.Errorf("%s/%s samples = %d, want 1", o.A, o.B, o.Samples)
		}
	}
	if got := rates[[2]string{"distance", "risk"}]; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("risk per distance = %v, want 0.5", got)
	}
	if got := rates[[2]string{"risk", "distance"}]; math.Abs(got-2) > 1e-12 {
		t.Errorf("distance per risk = %v, want 2", got)
	}
}

func TestFrontTradeOffErrors(t *testing.T) {
	one := []*store.PathRecord{{ID: "a", Cost: []float64{1, 2}}}
	if _, err := FrontTradeOff(one); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("single record: err = %v, want INVALID_CONFIG", err)
	}

	ragged := []*store.PathRecord{
		{ID: "a", Cost: []float64{1, 2}},
		{ID: "b", Cost: []float64{1}},
	}
	if _, err := FrontTradeOff(ragged); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("ragged costs: err = %v, want INVALID_CONFIG", err)
	}
}
