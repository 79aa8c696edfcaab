// Package api exposes the planning pipeline and the path record store over
// HTTP.
//
// Endpoints (all JSON):
//
//	POST   /api/v1/plan               run the planning pipeline
//	GET    /api/v1/records            list path records (filterable)
//	GET    /api/v1/records/{id}       fetch one record
//	DELETE /api/v1/records/{id}       delete one record
//	GET    /api/v1/records/{id}/stats recompute statistics for one record
//	GET    /healthz                   liveness probe
//
// Error responses carry the planner error code and a user-safe message:
//
//	{"error": {"code": "INVALID_ENDPOINT", "message": "..."}}
package api

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/roverlab/traverse/pkg/errors"
	"github.com/roverlab/traverse/pkg/pipeline"
	"github.com/roverlab/traverse/pkg/store"
)

// Server wires the pipeline runner and record store into an HTTP handler.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	logger *log.Logger
}

// NewServer creates a server. The store may be nil, in which case the
// record endpoints respond with 503.
func NewServer(runner *pipeline.Runner, st store.Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{runner: runner, store: st, logger: logger}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)
		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Get("/{id}", s.handleGetRecord)
			r.Delete("/{id}", s.handleDeleteRecord)
			r.Get("/{id}/stats", s.handleRecordStats)
		})
	})
	return r
}

// jsonDecoder builds a strict decoder for a request body.
func jsonDecoder(r *http.Request) *json.Decoder {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec
}

// writeJSON encodes a response body with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeError maps a planner error to an HTTP status and a JSON body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	var body errorBody
	body.Error.Code = string(code)
	body.Error.Message = errors.UserMessage(err)
	s.writeJSON(w, statusFor(code), body)
}

// statusFor maps planner error codes to HTTP statuses. Configuration and
// endpoint problems are the client's fault (422), missing records are 404,
// duplicates conflict (409), cancellation surfaces as client closed
// request, everything else is a server error.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidConfig, errors.ErrCodeInvalidEndpoint,
		errors.ErrCodeMissingLayer, errors.ErrCodeLayerMismatch:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDuplicatePath:
		return http.StatusConflict
	case errors.ErrCodeCancelled:
		return 499 // client closed request (nginx convention)
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
