package httpsource

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/wbrown/janus-federation/federation"
	"github.com/wbrown/janus-federation/federation/cardinality"
	"github.com/wbrown/janus-federation/federation/executor"
)

// MaxPageSize bounds the page size a client may request
const MaxPageSize = 10000

// Handler serves an executor.Source over the JSON protocol. Each page
// request re-executes the query and skips the earlier pages.
type Handler struct {
	backend executor.Source
	mux     *http.ServeMux
}

// NewHandler serves backend
func NewHandler(backend executor.Source) *Handler {
	h := &Handler{backend: backend, mux: http.NewServeMux()}
	h.mux.HandleFunc("/query", h.query)
	h.mux.HandleFunc("/estimate", h.estimate)
	h.mux.HandleFunc("/capabilities", h.capabilities)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	req, ok := readRequest(w, r)
	if !ok {
		return
	}
	if req.PageSize <= 0 || req.PageSize > MaxPageSize {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: req.ID, Error: "page_size out of range"})
		return
	}
	if req.Page < 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: req.ID, Error: "negative page"})
		return
	}
	if req.Page > math.MaxInt/req.PageSize {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: req.ID, Error: "page out of range"})
		return
	}
	q, err := DecodeQuery(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: req.ID, Error: err.Error()})
		return
	}
	if missing := q.RequiredInputVars(); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: req.ID, Error: "unbound inputs " + missing.String()})
		return
	}

	results, err := h.backend.Execute(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{ID: req.ID, Error: err.Error()})
		return
	}
	defer results.Close()

	skip := req.Page * req.PageSize
	var page []federation.Solution
	last := true
	for results.HasNext() {
		sol := results.Next()
		if skip > 0 {
			skip--
			continue
		}
		if len(page) == req.PageSize {
			last = false
			break
		}
		page = append(page, sol)
	}
	if err := results.Err(); err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{ID: req.ID, Error: err.Error()})
		return
	}

	vars := results.Vars()
	writeJSON(w, http.StatusOK, QueryResponse{
		ID:   req.ID,
		Vars: vars,
		Rows: encodeRows(vars, page),
		Last: last,
	})
}

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	req, ok := readRequest(w, r)
	if !ok {
		return
	}
	q, err := DecodeQuery(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{ID: req.ID, Error: err.Error()})
		return
	}
	c := cardinality.Unknown
	if est, ok := h.backend.(cardinality.Estimator); ok {
		c = est.EstimateCardinality(q)
	}
	writeJSON(w, http.StatusOK, EstimateResponse{
		Reliability: c.Reliability().String(),
		Value:       c.Value(0),
	})
}

func (h *Handler) capabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, CapabilitiesResponse{
		Name:         h.backend.Name(),
		Capabilities: h.backend.Capabilities().Names(),
	})
}

func readRequest(w http.ResponseWriter, r *http.Request) (*QueryRequest, bool) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return nil, false
	}
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return nil, false
	}
	if req.ID == "" {
		req.ID = r.Header.Get(RequestIDHeader)
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
