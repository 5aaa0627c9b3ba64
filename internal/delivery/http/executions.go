package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"faas-engine/internal/core/engine"
	"faas-engine/pkg/rand"

	"github.com/go-chi/chi/v5"
)

type createExecutionRequest struct {
	FunctionID string          `json:"function_id"`
	Input      json.RawMessage `json:"input"`
}

type dispatchFailure struct {
	Error     string            `json:"error"`
	Execution *engine.Execution `json:"execution"`
}

// handleCreateExecution godoc
// @Summary      Run a function
// @Description  Creates a pending execution, dispatches it and returns the recorded outcome.
// @Tags         executions
// @Accept       json
// @Produce      json
// @Param        execution  body      createExecutionRequest  true  "Execution"
// @Success      201        {object}  engine.Execution
// @Failure      502        {object}  dispatchFailure
// @Router       /executions [post]
func (h *Handler) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req createExecutionRequest
	if err := decode(w, r, &req); err != nil || req.FunctionID == "" {
		writeError(w, http.StatusBadRequest, "missing 'function_id'")
		return
	}
	if len(req.Input) > 0 && !json.Valid(req.Input) {
		writeError(w, http.StatusBadRequest, "invalid 'input'")
		return
	}

	fn, err := h.repo.GetFunction(r.Context(), req.FunctionID)
	if err != nil {
		h.fail(w, r, "create execution", err)
		return
	}

	exec := &engine.Execution{
		ID:         rand.UUID(),
		FunctionID: fn.ID,
		RuntimeID:  fn.RuntimeID,
		ProjectID:  fn.ProjectID,
		Input:      []byte(req.Input),
		Status:     engine.ExecutionPending,
	}
	if err := h.repo.CreateExecution(r.Context(), exec); err != nil {
		h.fail(w, r, "create execution", err)
		return
	}

	err = h.eng.CreateExecution(r.Context(), engine.ExecutionRequest{
		ExecutionID: exec.ID,
		FunctionID:  fn.ID,
		RuntimeID:   fn.RuntimeID,
		Input:       req.Input,
	})
	var de *engine.DispatchError
	switch {
	case errors.As(err, &de):
		stored, gerr := h.repo.GetExecution(r.Context(), exec.ID)
		if gerr != nil {
			stored = exec
		}
		h.lg.Warn().Err(err).Str("execution_id", exec.ID).Msg("execution dispatch failed")
		writeJSON(w, http.StatusBadGateway, dispatchFailure{Error: err.Error(), Execution: stored})
		return
	case err != nil:
		h.fail(w, r, "create execution", err)
		return
	}

	stored, err := h.repo.GetExecution(r.Context(), exec.ID)
	if err != nil {
		h.fail(w, r, "get execution", err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// handleListExecutions godoc
// @Summary  List executions, newest first
// @Tags     executions
// @Produce  json
// @Param    function_id  query    string  false  "Function ID"
// @Param    limit        query    int     false  "Maximum results"
// @Success  200          {array}  engine.Execution
// @Router   /executions [get]
func (h *Handler) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.repo.ListExecutions(r.Context(), r.URL.Query().Get("function_id"), limit)
	if err != nil {
		h.fail(w, r, "list executions", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetExecution godoc
// @Summary  Get an execution
// @Tags     executions
// @Produce  json
// @Param    executionID  path      string  true  "Execution ID"
// @Success  200          {object}  engine.Execution
// @Failure  404          {object}  errorResponse
// @Router   /executions/{executionID} [get]
func (h *Handler) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := h.repo.GetExecution(r.Context(), chi.URLParam(r, "executionID"))
	if err != nil {
		h.fail(w, r, "get execution", err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}
