package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"faas-engine/internal/adapters/lock"
	"faas-engine/internal/adapters/store"
	"faas-engine/internal/config"
	"faas-engine/internal/core/engine"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
)

var errBackend = errors.New("backend unavailable")

type fakeOrchestrator struct {
	mu sync.Mutex

	createPoolErr   error
	updatePoolFails bool
	deletePoolErr   error
	prepared        *engine.Prepared
	prepareErr      error
	runResult       any
	runErr          error
	scaleNames      []string
	deleteWorkerErr error

	createdPools     []string
	updatedPools     []string
	deletedPools     []string
	prepareCalls     []engine.PrepareRequest
	runCalls         []engine.RunRequest
	deletedWorkers   []string
	deletedFunctions []string
	functionLabels   map[string]string
}

func (f *fakeOrchestrator) CreatePool(_ context.Context, id, _ string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdPools = append(f.createdPools, id)
	return f.createPoolErr
}

func (f *fakeOrchestrator) UpdatePool(_ context.Context, id string, _ map[string]string, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedPools = append(f.updatedPools, id)
	return !f.updatePoolFails
}

func (f *fakeOrchestrator) DeletePool(_ context.Context, id string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedPools = append(f.deletedPools, id)
	return f.deletePoolErr
}

func (f *fakeOrchestrator) PrepareExecution(_ context.Context, req engine.PrepareRequest) (*engine.Prepared, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepareCalls = append(f.prepareCalls, req)
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	if f.prepared == nil {
		return &engine.Prepared{WorkerName: req.Identifier}, nil
	}
	return f.prepared, nil
}

func (f *fakeOrchestrator) RunExecution(_ context.Context, req engine.RunRequest) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runCalls = append(f.runCalls, req)
	return f.runResult, f.runErr
}

func (f *fakeOrchestrator) ScaleUpFunction(_ context.Context, _, _, _ string, count int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scaleNames) < count {
		return nil, engine.ErrNotEnoughWorkers
	}
	return f.scaleNames[:count], nil
}

func (f *fakeOrchestrator) DeleteWorker(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteWorkerErr != nil {
		return f.deleteWorkerErr
	}
	f.deletedWorkers = append(f.deletedWorkers, name)
	return nil
}

func (f *fakeOrchestrator) DeleteFunction(_ context.Context, id string, labels map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedFunctions = append(f.deletedFunctions, id)
	f.functionLabels = labels
	return nil
}

type fakeInvoker struct {
	mu    sync.Mutex
	reply map[string]any
	err   error
	urls  []string
	reqs  []engine.InvokeRequest
}

func (f *fakeInvoker) Invoke(_ context.Context, url string, req engine.InvokeRequest) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, url)
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

type harness struct {
	engine *engine.Engine
	store  *store.Store
	orch   *fakeOrchestrator
	inv    *fakeInvoker
}

func newHarness(t *testing.T, opts ...func(*config.Config)) *harness {
	t.Helper()
	s, err := store.Open(sqlite.Open(":memory:"), zerolog.Nop(), store.Options{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	cfg.OrchestratorTimeout = 5 * time.Second
	cfg.InvokeTimeout = 5 * time.Second
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{store: s, orch: &fakeOrchestrator{}, inv: &fakeInvoker{}}
	h.engine = engine.NewEngine(s, h.orch, h.inv, lock.NewLocal(), cfg, zerolog.Nop())
	return h
}

func (h *harness) seedRuntime(t *testing.T, id, image string, status engine.RuntimeStatus) {
	t.Helper()
	if err := h.store.CreateRuntime(context.Background(), &engine.Runtime{ID: id, Image: image, Status: status}); err != nil {
		t.Fatalf("CreateRuntime: %v", err)
	}
}

func (h *harness) seedFunction(t *testing.T, id string, code engine.Code) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.store.GetRuntime(ctx, "rt-1"); errors.Is(err, engine.ErrNotFound) {
		h.seedRuntime(t, "rt-1", "python:3.12", engine.RuntimeAvailable)
	}
	fn := &engine.Function{ID: id, Name: id, RuntimeID: "rt-1", Entry: "main.main", Code: code}
	if err := h.store.CreateFunction(ctx, fn); err != nil {
		t.Fatalf("CreateFunction: %v", err)
	}
}

func (h *harness) seedExecution(t *testing.T, id, functionID string) {
	t.Helper()
	exec := &engine.Execution{ID: id, FunctionID: functionID, RuntimeID: "rt-1", Input: []byte(`{"name":"x"}`)}
	if err := h.store.CreateExecution(context.Background(), exec); err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
}

func (h *harness) seedWorkers(t *testing.T, functionID string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := h.store.CreateWorker(context.Background(), &engine.Worker{FunctionID: functionID, WorkerName: name}); err != nil {
			t.Fatalf("CreateWorker: %v", err)
		}
	}
}

func (h *harness) workerNames(t *testing.T, functionID string) []string {
	t.Helper()
	workers, err := h.store.ListWorkers(context.Background(), functionID)
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	names := make([]string, len(workers))
	for i, w := range workers {
		names[i] = w.WorkerName
	}
	return names
}

func (h *harness) execution(t *testing.T, id string) *engine.Execution {
	t.Helper()
	exec, err := h.store.GetExecution(context.Background(), id)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	return exec
}
