package http

import (
	"errors"
	"io"
	"net/http"

	"faas-engine/internal/core/engine"
	"faas-engine/pkg/rand"

	"github.com/go-chi/chi/v5"
)

type createFunctionRequest struct {
	Name      string      `json:"name"`
	RuntimeID string      `json:"runtime_id"`
	Entry     string      `json:"entry"`
	Code      engine.Code `json:"code"`
	TrustID   string      `json:"trust_id"`
	ProjectID string      `json:"project_id"`
}

type scaleRequest struct {
	Count int `json:"count"`
}

// handleCreateFunction godoc
// @Summary  Register a function
// @Tags     functions
// @Accept   json
// @Produce  json
// @Param    function  body      createFunctionRequest  true  "Function"
// @Success  201       {object}  engine.Function
// @Failure  400       {object}  errorResponse
// @Router   /functions [post]
func (h *Handler) handleCreateFunction(w http.ResponseWriter, r *http.Request) {
	var req createFunctionRequest
	if err := decode(w, r, &req); err != nil {
		if errors.Is(err, engine.ErrInvalidCode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Code.Source() == engine.SourcePackage {
		if req.RuntimeID == "" {
			writeError(w, http.StatusBadRequest, "missing 'runtime_id'")
			return
		}
		if _, err := h.repo.GetRuntime(r.Context(), req.RuntimeID); err != nil {
			h.fail(w, r, "create function", err)
			return
		}
	}

	fn := &engine.Function{
		ID:        rand.UUID(),
		Name:      req.Name,
		RuntimeID: req.RuntimeID,
		Entry:     req.Entry,
		Code:      req.Code,
		TrustID:   req.TrustID,
		ProjectID: req.ProjectID,
	}
	if err := h.repo.CreateFunction(r.Context(), fn); err != nil {
		h.fail(w, r, "create function", err)
		return
	}
	writeJSON(w, http.StatusCreated, fn)
}

// handleListFunctions godoc
// @Summary  List functions
// @Tags     functions
// @Produce  json
// @Success  200  {array}  engine.Function
// @Router   /functions [get]
func (h *Handler) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListFunctions(r.Context())
	if err != nil {
		h.fail(w, r, "list functions", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetFunction godoc
// @Summary  Get a function with its service and workers
// @Tags     functions
// @Produce  json
// @Param    functionID  path      string  true  "Function ID"
// @Success  200         {object}  engine.Function
// @Failure  404         {object}  errorResponse
// @Router   /functions/{functionID} [get]
func (h *Handler) handleGetFunction(w http.ResponseWriter, r *http.Request) {
	fn, err := h.repo.GetFunction(r.Context(), chi.URLParam(r, "functionID"))
	if err != nil {
		h.fail(w, r, "get function", err)
		return
	}
	writeJSON(w, http.StatusOK, fn)
}

// handleDeleteFunction godoc
// @Summary  Delete a function and its workers
// @Tags     functions
// @Param    functionID  path  string  true  "Function ID"
// @Success  204
// @Router   /functions/{functionID} [delete]
func (h *Handler) handleDeleteFunction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "functionID")
	if _, err := h.repo.GetFunction(r.Context(), id); err != nil {
		h.fail(w, r, "delete function", err)
		return
	}
	if err := h.eng.DeleteFunction(r.Context(), id); err != nil {
		h.fail(w, r, "delete function", err)
		return
	}
	if err := h.repo.DeleteFunction(r.Context(), id); err != nil {
		h.fail(w, r, "delete function", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleScaleUp godoc
// @Summary  Add workers to a function
// @Tags     functions
// @Accept   json
// @Produce  json
// @Param    functionID  path      string        true   "Function ID"
// @Param    scale       body      scaleRequest  false  "Worker count, default 1"
// @Success  200         {array}   engine.Worker
// @Failure  503         {object}  errorResponse
// @Router   /functions/{functionID}/scale_up [post]
func (h *Handler) handleScaleUp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "functionID")
	count, ok := scaleCount(w, r)
	if !ok {
		return
	}
	fn, err := h.repo.GetFunction(r.Context(), id)
	if err != nil {
		h.fail(w, r, "scale up", err)
		return
	}
	if fn.Code.Source() != engine.SourcePackage {
		writeError(w, http.StatusBadRequest, "only package functions can be scaled")
		return
	}
	if err := h.eng.ScaleUpFunction(r.Context(), id, fn.RuntimeID, count); err != nil {
		h.fail(w, r, "scale up", err)
		return
	}
	h.respondWorkers(w, r, id)
}

// handleScaleDown godoc
// @Summary  Remove workers from a function, keeping at least one
// @Tags     functions
// @Accept   json
// @Produce  json
// @Param    functionID  path     string        true   "Function ID"
// @Param    scale       body     scaleRequest  false  "Worker count, default 1"
// @Success  200         {array}  engine.Worker
// @Router   /functions/{functionID}/scale_down [post]
func (h *Handler) handleScaleDown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "functionID")
	count, ok := scaleCount(w, r)
	if !ok {
		return
	}
	if err := h.eng.ScaleDownFunction(r.Context(), id, count); err != nil {
		h.fail(w, r, "scale down", err)
		return
	}
	h.respondWorkers(w, r, id)
}

// scaleCount reads an optional {"count": n} body. An empty body means 1.
func scaleCount(w http.ResponseWriter, r *http.Request) (int, bool) {
	req := scaleRequest{Count: 1}
	if err := decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return 0, false
	}
	if req.Count < 1 {
		writeError(w, http.StatusBadRequest, engine.ErrInvalidCount.Error())
		return 0, false
	}
	return req.Count, true
}

func (h *Handler) respondWorkers(w http.ResponseWriter, r *http.Request, functionID string) {
	workers, err := h.repo.ListWorkers(r.Context(), functionID)
	if err != nil {
		h.fail(w, r, "list workers", err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}
