package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roverlab/traverse/pkg/analyze"
	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/observability"
	"github.com/roverlab/traverse/pkg/pipeline"
	"github.com/roverlab/traverse/pkg/search"
	"github.com/roverlab/traverse/pkg/store"
)

// planResponse is the body of a successful plan request. An unreachable
// goal is a legitimate planning answer, so it is reported here with an
// empty front rather than as an error.
type planResponse struct {
	Status     search.Status     `json:"status"`
	Truncated  bool              `json:"truncated,omitempty"`
	Objectives []string          `json:"objectives"`
	ConfigHash string            `json:"config_hash"`
	Front      []search.Path     `json:"front"`
	RecordIDs  []string          `json:"record_ids,omitempty"`
	CacheHit   bool              `json:"cache_hit"`
	Stats      planResponseStats `json:"stats"`
}

type planResponseStats struct {
	PassableCells int   `json:"passable_cells"`
	Expanded      int   `json:"expanded"`
	LoadMillis    int64 `json:"load_ms"`
	BuildMillis   int64 `json:"build_ms"`
	SearchMillis  int64 `json:"search_ms"`
}

// handlePlan runs the full pipeline for a JSON-encoded pipeline.Options.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := decodeJSON(r, &opts); err != nil {
		s.writeError(w, err)
		return
	}

	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	front := result.Front
	if front == nil {
		front = []search.Path{}
	}
	s.writeJSON(w, http.StatusOK, planResponse{
		Status:     result.Status,
		Truncated:  result.Truncated,
		Objectives: result.Objectives,
		ConfigHash: result.ConfigHash,
		Front:      front,
		RecordIDs:  result.RecordIDs,
		CacheHit:   result.CacheInfo.PlanHit,
		Stats: planResponseStats{
			PassableCells: result.Stats.PassableCells,
			Expanded:      result.Stats.Expanded,
			LoadMillis:    result.Stats.LoadTime.Milliseconds(),
			BuildMillis:   result.Stats.BuildTime.Milliseconds(),
			SearchMillis:  result.Stats.SearchTime.Milliseconds(),
		},
	})
}

// handleListRecords lists path records. Supported query parameters:
//
//	component  cost component index a min/max bound applies to
//	min, max   inclusive bounds on that component
//	sort       cost component index to order by (ascending)
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := time.Now()
	recs, err := s.store.List(r.Context(), filter)
	if err != nil {
		observability.Store().OnError(r.Context(), "list", err)
		s.writeError(w, err)
		return
	}
	observability.Store().OnQuery(r.Context(), "list", len(recs), time.Since(start))
	if recs == nil {
		recs = []*store.PathRecord{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecordStats recomputes per-path statistics against the map named
// in the "map" query parameter. Optional "exposure_layer" and
// "exposure_threshold" parameters enable the exposure metric.
func (s *Server) handleRecordStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	mapPath := r.URL.Query().Get("map")
	if mapPath == "" {
		s.writeError(w, errors.New(errors.ErrCodeInvalidConfig, "query parameter map is required"))
		return
	}

	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	stack, _, err := s.runner.LoadStack(mapPath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	opts := analyze.Options{ExposureLayer: r.URL.Query().Get("exposure_layer")}
	if raw := r.URL.Query().Get("exposure_threshold"); raw != "" {
		opts.ExposureThreshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidConfig, "bad exposure_threshold %q", raw))
			return
		}
	}

	stats, err := analyze.Summarize(stack, rec, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// requireStore responds with 503 when no record store is configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		var body errorBody
		body.Error.Code = string(errors.ErrCodeUnsupported)
		body.Error.Message = "no record store is configured"
		s.writeJSON(w, http.StatusServiceUnavailable, body)
		return false
	}
	return true
}

// parseFilter builds a store filter from list query parameters.
func parseFilter(r *http.Request) (store.Filter, error) {
	var f store.Filter
	q := r.URL.Query()

	if raw := q.Get("sort"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			return f, errors.New(errors.ErrCodeInvalidConfig, "bad sort component %q", raw)
		}
		f.SortComponent = &idx
	}

	minRaw, maxRaw := q.Get("min"), q.Get("max")
	if minRaw == "" && maxRaw == "" {
		return f, nil
	}

	component := 0
	if raw := q.Get("component"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			return f, errors.New(errors.ErrCodeInvalidConfig, "bad bound component %q", raw)
		}
		component = idx
	}

	bound := store.Bound{Component: component}
	if minRaw != "" {
		v, err := strconv.ParseFloat(minRaw, 64)
		if err != nil {
			return f, errors.New(errors.ErrCodeInvalidConfig, "bad min %q", minRaw)
		}
		bound.Min = &v
	}
	if maxRaw != "" {
		v, err := strconv.ParseFloat(maxRaw, 64)
		if err != nil {
			return f, errors.New(errors.ErrCodeInvalidConfig, "bad max %q", maxRaw)
		}
		bound.Max = &v
	}
	f.Bounds = append(f.Bounds, bound)
	return f, nil
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := jsonDecoder(r)
	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "decoding request body")
	}
	return nil
}
