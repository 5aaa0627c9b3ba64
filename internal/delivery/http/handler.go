package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"faas-engine/internal/config"
	"faas-engine/internal/core/engine"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Repository creates, lists and removes the records the engine works on.
type Repository interface {
	CreateRuntime(ctx context.Context, rt *engine.Runtime) error
	ListRuntimes(ctx context.Context) ([]engine.Runtime, error)
	GetRuntime(ctx context.Context, id string) (*engine.Runtime, error)
	UpdateRuntime(ctx context.Context, id string, upd engine.RuntimeUpdate) error

	CreateFunction(ctx context.Context, fn *engine.Function) error
	ListFunctions(ctx context.Context) ([]engine.Function, error)
	GetFunction(ctx context.Context, id string) (*engine.Function, error)
	DeleteFunction(ctx context.Context, id string) error
	ListWorkers(ctx context.Context, functionID string) ([]engine.Worker, error)

	CreateExecution(ctx context.Context, exec *engine.Execution) error
	GetExecution(ctx context.Context, id string) (*engine.Execution, error)
	ListExecutions(ctx context.Context, functionID string, limit int) ([]engine.Execution, error)
}

// Engine drives pools, workers and executions.
type Engine interface {
	CreateRuntime(ctx context.Context, runtimeID string) error
	UpdateRuntime(ctx context.Context, runtimeID, image, preImage string) error
	DeleteRuntime(ctx context.Context, runtimeID string) error
	CreateExecution(ctx context.Context, req engine.ExecutionRequest) error
	DeleteFunction(ctx context.Context, functionID string) error
	ScaleUpFunction(ctx context.Context, functionID, runtimeID string, count int) error
	ScaleDownFunction(ctx context.Context, functionID string, count int) error
}

type Handler struct {
	repo Repository
	eng  Engine
	lg   zerolog.Logger
}

func NewHandler(repo Repository, eng Engine, cfg config.Config, lg zerolog.Logger) http.Handler {
	h := &Handler{
		repo: repo,
		eng:  eng,
		lg:   lg.With().Str("component", "http").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.handleHealthz)
	r.Handle("/metrics", metricsHandler())
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	r.Route("/runtimes", func(r chi.Router) {
		r.Post("/", h.handleCreateRuntime)
		r.Get("/", h.handleListRuntimes)
		r.Get("/{runtimeID}", h.handleGetRuntime)
		r.Put("/{runtimeID}", h.handleUpdateRuntime)
		r.Delete("/{runtimeID}", h.handleDeleteRuntime)
	})

	r.Route("/functions", func(r chi.Router) {
		r.Post("/", h.handleCreateFunction)
		r.Get("/", h.handleListFunctions)
		r.Get("/{functionID}", h.handleGetFunction)
		r.Delete("/{functionID}", h.handleDeleteFunction)
		r.Post("/{functionID}/scale_up", h.handleScaleUp)
		r.Post("/{functionID}/scale_down", h.handleScaleDown)
	})

	r.Route("/executions", func(r chi.Router) {
		r.Post("/", h.handleCreateExecution)
		r.Get("/", h.handleListExecutions)
		r.Get("/{executionID}", h.handleGetExecution)
	})

	return r
}

// handleHealthz godoc
// @Summary  Liveness probe
// @Tags     health
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /healthz [get]
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// fail maps an engine or store error to a response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.lg.Error().Err(err).Str("op", op).Str("request_id", middleware.GetReqID(r.Context())).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidCode), errors.Is(err, engine.ErrInvalidCount):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrExecutionFinished), errors.Is(err, engine.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, engine.ErrNotEnoughWorkers):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
