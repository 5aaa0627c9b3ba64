package engine_test

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"faas-engine/internal/core/engine"
)

func TestWorkersToRemove(t *testing.T) {
	tests := []struct {
		current, count, want int
	}{
		{5, 2, 2},
		{3, 2, 2},
		{2, 2, 1},
		{3, 10, 2},
		{1, 1, 0},
		{1, 5, 0},
		{0, 3, 0},
	}
	for _, tt := range tests {
		if got := engine.WorkersToRemove(tt.current, tt.count); got != tt.want {
			t.Errorf("WorkersToRemove(%d, %d) = %d, want %d", tt.current, tt.count, got, tt.want)
		}
	}
}

func TestScaleDownFunction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedFunction(t, "fn-1", engine.PackageCode())
	h.seedWorkers(t, "fn-1", "w1", "w2", "w3")

	if err := h.engine.ScaleDownFunction(ctx, "fn-1", 5); err != nil {
		t.Fatalf("ScaleDownFunction: %v", err)
	}
	if got := h.workerNames(t, "fn-1"); !reflect.DeepEqual(got, []string{"w3"}) {
		t.Errorf("workers = %v, want [w3]", got)
	}
	if !reflect.DeepEqual(h.orch.deletedWorkers, []string{"w1", "w2"}) {
		t.Errorf("deleted = %v, want [w1 w2]", h.orch.deletedWorkers)
	}

	if err := h.engine.ScaleDownFunction(ctx, "fn-1", 1); err != nil {
		t.Fatalf("ScaleDownFunction on last worker: %v", err)
	}
	if got := h.workerNames(t, "fn-1"); len(got) != 1 {
		t.Errorf("workers = %v, want the last one kept", got)
	}

	if err := h.engine.ScaleDownFunction(ctx, "fn-1", 0); !errors.Is(err, engine.ErrInvalidCount) {
		t.Errorf("count 0: err = %v, want ErrInvalidCount", err)
	}
}

func TestScaleDownFunctionConcurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedFunction(t, "fn-1", engine.PackageCode())
	h.seedWorkers(t, "fn-1", "w1", "w2", "w3", "w4")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.engine.ScaleDownFunction(ctx, "fn-1", 2)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ScaleDownFunction: %v", err)
		}
	}

	if got := h.workerNames(t, "fn-1"); !reflect.DeepEqual(got, []string{"w4"}) {
		t.Errorf("workers = %v, want [w4]", got)
	}
	deleted := append([]string(nil), h.orch.deletedWorkers...)
	sort.Strings(deleted)
	if !reflect.DeepEqual(deleted, []string{"w1", "w2", "w3"}) {
		t.Errorf("deleted = %v, want each of w1 w2 w3 once", deleted)
	}
}

func TestScaleDownFailureKeepsWorkers(t *testing.T) {
	h := newHarness(t)
	h.seedFunction(t, "fn-1", engine.PackageCode())
	h.seedWorkers(t, "fn-1", "w1", "w2", "w3")
	h.orch.deleteWorkerErr = errBackend

	if err := h.engine.ScaleDownFunction(context.Background(), "fn-1", 2); !errors.Is(err, errBackend) {
		t.Fatalf("err = %v, want backend error", err)
	}
	if got := h.workerNames(t, "fn-1"); len(got) != 3 {
		t.Errorf("workers = %v, want all three", got)
	}
}

func TestScaleUpFunction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedFunction(t, "fn-1", engine.PackageCode())
	h.orch.scaleNames = []string{"w1", "w2"}

	if err := h.engine.ScaleUpFunction(ctx, "fn-1", "rt-1", 2); err != nil {
		t.Fatalf("ScaleUpFunction: %v", err)
	}
	if got := h.workerNames(t, "fn-1"); !reflect.DeepEqual(got, []string{"w1", "w2"}) {
		t.Errorf("workers = %v, want [w1 w2]", got)
	}

	if err := h.engine.ScaleUpFunction(ctx, "fn-1", "rt-1", 3); !errors.Is(err, engine.ErrNotEnoughWorkers) {
		t.Errorf("err = %v, want ErrNotEnoughWorkers", err)
	}
	if err := h.engine.ScaleUpFunction(ctx, "fn-1", "rt-1", 0); !errors.Is(err, engine.ErrInvalidCount) {
		t.Errorf("count 0: err = %v, want ErrInvalidCount", err)
	}
	if err := h.engine.ScaleUpFunction(ctx, "fn-missing", "rt-1", 1); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("missing function: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteFunction(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.DeleteFunction(context.Background(), "fn-1"); err != nil {
		t.Fatalf("DeleteFunction: %v", err)
	}
	if !reflect.DeepEqual(h.orch.deletedFunctions, []string{"fn-1"}) {
		t.Errorf("deleted functions = %v", h.orch.deletedFunctions)
	}
	if h.orch.functionLabels[engine.LabelFunctionID] != "fn-1" {
		t.Errorf("labels = %v, want function label", h.orch.functionLabels)
	}
}
