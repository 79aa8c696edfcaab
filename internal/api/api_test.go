package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/roverlab/traverse/pkg/pipeline"
	"github.com/roverlab/traverse/pkg/store"
	"github.com/roverlab/traverse/pkg/terrain"
)

const flatASC = `ncols 3
nrows 3
cellsize 1.0
NODATA_value -9999
0 0 0
0 0 0
0 0 0
`

// splitASC has an impassable middle row cutting the grid in two.
const splitASC = `ncols 3
nrows 3
cellsize 1.0
NODATA_value -9999
0 0 0
-9999 -9999 -9999
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

// newTestServer builds a server over a memory store and temp-dir configs.
func newTestServer(t *testing.T, heightASC string) (*httptest.Server, store.Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	write("height.asc", heightASC)
	mapPath := write("map.toml", mapTOML)
	planPath := write("plan.toml", planTOML)

	st := store.NewMemoryStore(store.Options{})
	runner := pipeline.NewRunner(nil, nil, st, nil)
	srv := httptest.NewServer(NewServer(runner, st, nil).Router())
	t.Cleanup(srv.Close)
	return srv, st, mapPath, planPath
}

func postPlan(t *testing.T, srv *httptest.Server, opts pipeline.Options) (*http.Response, planResponse) {
	t.Helper()
	body, err := json.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(srv.URL+"/api/v1/plan", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var pr planResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		t.Fatalf("decoding plan response: %v", err)
	}
	return resp, pr
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func TestPlanEndpoint(t *testing.T) {
	srv, _, mapPath, planPath := newTestServer(t, flatASC)

	resp, pr := postPlan(t, srv, pipeline.Options{
		MapConfig:  mapPath,
		PlanConfig: planPath,
		Start:      terrain.Coord{Row: 0, Col: 0},
		Goal:       terrain.Coord{Row: 2, Col: 2},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if pr.Status != "complete" {
		t.Errorf("plan status = %q, want complete", pr.Status)
	}
	if len(pr.Front) != 1 {
		t.Fatalf("front size = %d, want 1", len(pr.Front))
	}
	if math.Abs(pr.Front[0].Cost[0]-2*math.Sqrt2) > 1e-9 {
		t.Errorf("cost = %v, want 2*sqrt2", pr.Front[0].Cost[0])
	}
	if pr.ConfigHash == "" {
		t.Error("config hash must be set")
	}
}

func TestPlanUnreachableGoalIsNotAnError(t *testing.T) {
	srv, _, mapPath, planPath := newTestServer(t, splitASC)

	resp, pr := postPlan(t, srv, pipeline.Options{
		MapConfig:  mapPath,
		PlanConfig: planPath,
		Start:      terrain.Coord{Row: 0, Col: 0},
		Goal:       terrain.Coord{Row: 2, Col: 2},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if pr.Status != "no-path" {
		t.Errorf("plan status = %q, want no-path", pr.Status)
	}
	if len(pr.Front) != 0 {
		t.Errorf("front size = %d, want 0", len(pr.Front))
	}
}

func TestPlanInvalidEndpoint(t *testing.T) {
	srv, _, mapPath, planPath := newTestServer(t, flatASC)

	body, _ := json.Marshal(pipeline.Options{
		MapConfig:  mapPath,
		PlanConfig: planPath,
		Start:      terrain.Coord{Row: -1, Col: 0},
		Goal:       terrain.Coord{Row: 2, Col: 2},
	})
	resp, err := http.Post(srv.URL+"/api/v1/plan", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if got := decodeError(t, resp).Error.Code; got != "INVALID_ENDPOINT" {
		t.Errorf("error code = %q, want INVALID_ENDPOINT", got)
	}
}

func TestPlanMalformedBody(t *testing.T) {
	srv, _, _, _ := newTestServer(t, flatASC)

	resp, err := http.Post(srv.URL+"/api/v1/plan", "application/json", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if got := decodeError(t, resp).Error.Code; got != "INVALID_CONFIG" {
		t.Errorf("error code = %q, want INVALID_CONFIG", got)
	}
}

func TestRecordLifecycle(t *testing.T) {
	srv, st, _, _ := newTestServer(t, flatASC)

	rec := &store.PathRecord{
		Coords: []terrain.Coord{{Row: 0, Col: 0}, {Row: 1, Col: 1}},
		Cost:   []float64{math.Sqrt2},
	}
	id, err := st.Insert(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/records/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var got store.PathRecord
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.ID != id || len(got.Coords) != 2 {
		t.Errorf("record = %+v", got)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/records/"+id, nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", delResp.StatusCode)
	}

	missing, err := http.Get(srv.URL + "/api/v1/records/" + id)
	if err != nil {
		t.Fatal(err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", missing.StatusCode)
	}
}

func TestListRecordsWithBounds(t *testing.T) {
	srv, st, _, _ := newTestServer(t, flatASC)

	for i, risk := range []float64{0.05, 0.2, 0.9} {
		_, err := st.Insert(context.Background(), &store.PathRecord{
			Coords: []terrain.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
			Cost:   []float64{float64(i + 1), risk},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	resp, err := http.Get(srv.URL + "/api/v1/records?component=1&min=0.1&max=0.5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Records []*store.PathRecord `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(body.Records))
	}
	if body.Records[0].Cost[1] != 0.2 {
		t.Errorf("kept record risk = %v, want 0.2", body.Records[0].Cost[1])
	}
}

func TestListRecordsBadQuery(t *testing.T) {
	srv, _, _, _ := newTestServer(t, flatASC)

	resp, err := http.Get(srv.URL + "/api/v1/records?sort=abc")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestRecordStats(t *testing.T) {
	srv, st, mapPath, _ := newTestServer(t, flatASC)

	rec := &store.PathRecord{
		Coords:     []terrain.Coord{{Row: 0, Col: 0}, {Row: 1, Col: 1}, {Row: 2, Col: 2}},
		Cost:       []float64{2 * math.Sqrt2},
		Objectives: []string{"distance"},
	}
	id, err := st.Insert(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}

	url := fmt.Sprintf("%s/api/v1/records/%s/stats?map=%s", srv.URL, id, mapPath)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stats struct {
		Steps    int     `json:"steps"`
		Length   float64 `json:"length"`
		Exposure float64 `json:"exposure"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Steps != 2 {
		t.Errorf("steps = %d, want 2", stats.Steps)
	}
	if math.Abs(stats.Length-2*math.Sqrt2) > 1e-9 {
		t.Errorf("length = %v, want 2*sqrt2", stats.Length)
	}
	if stats.Exposure != -1 {
		t.Errorf("exposure = %v, want -1 (disabled)", stats.Exposure)
	}
}

func TestRecordStatsRequiresMap(t *testing.T) {
	srv, st, _, _ := newTestServer(t, flatASC)
	id, err := st.Insert(context.Background(), &store.PathRecord{
		Coords: []terrain.Coord{{Row: 0, Col: 0}, {Row: 0, Col: 1}},
		Cost:   []float64{1},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/records/" + id + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestRecordsWithoutStore(t *testing.T) {
	runner := pipeline.NewRunner(nil, nil, nil, nil)
	srv := httptest.NewServer(NewServer(runner, nil, nil).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/records")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _, _ := newTestServer(t, flatASC)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
