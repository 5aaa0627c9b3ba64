package http

import (
	"context"
	"fmt"
	"net/http"

	"faas-engine/internal/core/engine"
	"faas-engine/pkg/rand"

	"github.com/go-chi/chi/v5"
)

type createRuntimeRequest struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	ProjectID string `json:"project_id"`
}

type updateRuntimeRequest struct {
	Image string `json:"image"`
}

// handleCreateRuntime godoc
// @Summary  Create a runtime and provision its pool
// @Tags     runtimes
// @Accept   json
// @Produce  json
// @Param    runtime  body      createRuntimeRequest  true  "Runtime"
// @Success  201      {object}  engine.Runtime
// @Router   /runtimes [post]
func (h *Handler) handleCreateRuntime(w http.ResponseWriter, r *http.Request) {
	var req createRuntimeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Image == "" {
		writeError(w, http.StatusBadRequest, "missing 'image'")
		return
	}

	rt := &engine.Runtime{
		ID:        rand.UUID(),
		Name:      req.Name,
		Image:     req.Image,
		ProjectID: req.ProjectID,
		Status:    engine.RuntimeCreating,
	}
	if err := h.repo.CreateRuntime(r.Context(), rt); err != nil {
		h.fail(w, r, "create runtime", err)
		return
	}
	if err := h.eng.CreateRuntime(r.Context(), rt.ID); err != nil {
		h.settleRuntime(r, rt.ID, engine.RuntimeUpdate{Status: engine.RuntimeError})
		h.fail(w, r, "create runtime", err)
		return
	}
	h.respondRuntime(w, r, http.StatusCreated, rt.ID)
}

// handleListRuntimes godoc
// @Summary  List runtimes
// @Tags     runtimes
// @Produce  json
// @Success  200  {array}  engine.Runtime
// @Router   /runtimes [get]
func (h *Handler) handleListRuntimes(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListRuntimes(r.Context())
	if err != nil {
		h.fail(w, r, "list runtimes", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetRuntime godoc
// @Summary  Get a runtime
// @Tags     runtimes
// @Produce  json
// @Param    runtimeID  path      string  true  "Runtime ID"
// @Success  200        {object}  engine.Runtime
// @Failure  404        {object}  errorResponse
// @Router   /runtimes/{runtimeID} [get]
func (h *Handler) handleGetRuntime(w http.ResponseWriter, r *http.Request) {
	h.respondRuntime(w, r, http.StatusOK, chi.URLParam(r, "runtimeID"))
}

// handleUpdateRuntime godoc
// @Summary  Roll a runtime onto a new image
// @Tags     runtimes
// @Accept   json
// @Produce  json
// @Param    runtimeID  path      string                true  "Runtime ID"
// @Param    runtime    body      updateRuntimeRequest  true  "New image"
// @Success  200        {object}  engine.Runtime
// @Failure  409        {object}  errorResponse
// @Router   /runtimes/{runtimeID} [put]
func (h *Handler) handleUpdateRuntime(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "runtimeID")
	var req updateRuntimeRequest
	if err := decode(w, r, &req); err != nil || req.Image == "" {
		writeError(w, http.StatusBadRequest, "missing 'image'")
		return
	}

	rt, err := h.repo.GetRuntime(r.Context(), id)
	if err != nil {
		h.fail(w, r, "update runtime", err)
		return
	}
	if rt.Status != engine.RuntimeAvailable {
		writeError(w, http.StatusConflict, fmt.Sprintf("runtime is %s", rt.Status))
		return
	}
	if rt.Image == req.Image {
		writeJSON(w, http.StatusOK, rt)
		return
	}

	preImage := rt.Image
	if err := h.repo.UpdateRuntime(r.Context(), id, engine.RuntimeUpdate{
		Status: engine.RuntimeUpgrading,
		Image:  req.Image,
	}); err != nil {
		h.fail(w, r, "update runtime", err)
		return
	}
	if err := h.eng.UpdateRuntime(r.Context(), id, req.Image, preImage); err != nil {
		h.settleRuntime(r, id, engine.RuntimeUpdate{Status: engine.RuntimeAvailable, Image: preImage})
		h.fail(w, r, "update runtime", err)
		return
	}
	h.respondRuntime(w, r, http.StatusOK, id)
}

// handleDeleteRuntime godoc
// @Summary  Delete a runtime and its pool
// @Tags     runtimes
// @Param    runtimeID  path  string  true  "Runtime ID"
// @Success  204
// @Router   /runtimes/{runtimeID} [delete]
func (h *Handler) handleDeleteRuntime(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.DeleteRuntime(r.Context(), chi.URLParam(r, "runtimeID")); err != nil {
		h.fail(w, r, "delete runtime", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// settleRuntime moves a runtime out of a transitional status after the engine
// failed before doing so. It runs even when the request was cancelled.
func (h *Handler) settleRuntime(r *http.Request, id string, upd engine.RuntimeUpdate) {
	ctx := context.WithoutCancel(r.Context())
	if err := h.repo.UpdateRuntime(ctx, id, upd); err != nil {
		h.lg.Error().Err(err).Str("runtime_id", id).Str("status", string(upd.Status)).Msg("failed to settle runtime")
	}
}

func (h *Handler) respondRuntime(w http.ResponseWriter, r *http.Request, status int, id string) {
	rt, err := h.repo.GetRuntime(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get runtime", err)
		return
	}
	writeJSON(w, status, rt)
}
