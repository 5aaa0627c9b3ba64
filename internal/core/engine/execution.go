package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"faas-engine/internal/config"
	"faas-engine/pkg/rand"

	"github.com/rs/zerolog"
)

// MaxIdentifierLen bounds backend resource names.
const MaxIdentifierLen = 63

// Dispatch paths, also used as metric labels.
const (
	PathWarm    = "warm"
	PathImage   = "image"
	PathPackage = "package"
)

// ExecutionRequest identifies a pending execution to dispatch.
type ExecutionRequest struct {
	ExecutionID string
	FunctionID  string
	RuntimeID   string
	Input       json.RawMessage
}

type dispatchResult struct {
	path     string
	result   ExecutionResult
	prepared *Prepared
}

// CreateExecution runs a pending execution and records its outcome.
//
// A function with a service mapping is invoked directly on that endpoint.
// Otherwise the orchestrator prepares an environment: a one-shot container
// for image functions, a pool worker for package functions. The first
// successful package dispatch records the worker and the service mapping so
// later executions take the warm path.
//
// Reads, external calls and writes share one transaction. A failing external
// call rolls it back; see config.FailurePolicy for what happens to the
// execution row afterwards.
func (e *Engine) CreateExecution(ctx context.Context, req ExecutionRequest) error {
	lg := e.lg.With().
		Str("execution_id", req.ExecutionID).
		Str("function_id", req.FunctionID).
		Logger()
	lg.Info().Str("runtime_id", req.RuntimeID).Msg("creating execution")

	fn, err := e.store.GetFunction(ctx, req.FunctionID)
	if err != nil {
		return fmt.Errorf("get function: %w", err)
	}
	// Only the cold package path writes function state, so only it needs the
	// function lock. The function is read again under the lock.
	if fn.Service == nil && fn.Code.Source() == SourcePackage {
		unlock, err := e.lock(ctx, FunctionLockKey(fn.ID))
		if err != nil {
			return err
		}
		defer unlock()
	}

	var out dispatchResult
	err = e.store.Transaction(ctx, func(tx Tx) error {
		exec, err := tx.GetExecution(ctx, req.ExecutionID)
		if err != nil {
			return fmt.Errorf("get execution: %w", err)
		}
		if exec.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrExecutionFinished, exec.ID, exec.Status)
		}
		fn, err := tx.GetFunction(ctx, req.FunctionID)
		if err != nil {
			return fmt.Errorf("get function: %w", err)
		}

		out, err = e.dispatch(ctx, lg, fn, req)
		if err != nil {
			return err
		}

		if err := tx.FinishExecution(ctx, exec.ID, out.result); err != nil {
			return fmt.Errorf("finish execution: %w", err)
		}
		if out.prepared == nil {
			return nil
		}
		if err := tx.CreateServiceMapping(ctx, &FunctionServiceMapping{
			FunctionID: fn.ID,
			ServiceURL: out.prepared.ServiceURL,
		}); err != nil {
			return fmt.Errorf("create service mapping: %w", err)
		}
		// A worker added by an earlier scale up may be the one prepared.
		if fn.HasWorker(out.prepared.WorkerName) {
			return nil
		}
		if err := tx.CreateWorker(ctx, &Worker{
			FunctionID: fn.ID,
			WorkerName: out.prepared.WorkerName,
		}); err != nil {
			return fmt.Errorf("create worker: %w", err)
		}
		return nil
	})
	if err != nil {
		return e.dispatchFailed(ctx, lg, req, err)
	}

	executionsTotal.WithLabelValues(out.path, string(out.result.Status)).Inc()
	lg.Info().
		Str("path", out.path).
		Str("status", string(out.result.Status)).
		Msg("execution finished")
	return nil
}

func (e *Engine) dispatch(ctx context.Context, lg zerolog.Logger, fn *Function, req ExecutionRequest) (dispatchResult, error) {
	if fn.Service != nil {
		lg.Debug().Str("service_url", fn.Service.ServiceURL).Msg("found service url for function")
		res, err := e.runWarm(ctx, fn, req)
		return dispatchResult{path: PathWarm, result: res}, err
	}

	if image, ok := fn.Code.Image(); ok {
		res, err := e.runImage(ctx, fn, image, req)
		return dispatchResult{path: PathImage, result: res}, err
	}

	res, prepared, err := e.runPackage(ctx, fn, req)
	return dispatchResult{path: PathPackage, result: res, prepared: prepared}, err
}

func (e *Engine) runWarm(ctx context.Context, fn *Function, req ExecutionRequest) (ExecutionResult, error) {
	ictx, cancel := e.invokeContext(ctx)
	defer cancel()

	reply, err := e.invoker.Invoke(ictx, fn.Service.ServiceURL, InvokeRequest{
		Input:       req.Input,
		ExecutionID: req.ExecutionID,
	})
	if err != nil {
		return ExecutionResult{}, dispatchErr(PathWarm, err)
	}
	res, err := parseEnvelope(reply)
	if err != nil {
		return ExecutionResult{}, dispatchErr(PathWarm, err)
	}
	return res, nil
}

func (e *Engine) runImage(ctx context.Context, fn *Function, image string, req ExecutionRequest) (ExecutionResult, error) {
	identifier := EphemeralIdentifier(fn.ID)

	octx, cancel := e.orchestratorContext(ctx)
	defer cancel()

	if _, err := e.orchestrator.PrepareExecution(octx, PrepareRequest{
		FunctionID: fn.ID,
		Image:      image,
		Identifier: identifier,
		Labels:     functionLabels(fn.ID),
		Input:      req.Input,
		Entry:      fn.Entry,
		TrustID:    fn.TrustID,
	}); err != nil {
		return ExecutionResult{}, dispatchErr(PathImage, fmt.Errorf("prepare: %w", err))
	}

	raw, err := e.orchestrator.RunExecution(octx, RunRequest{
		ExecutionID: req.ExecutionID,
		FunctionID:  fn.ID,
		Input:       req.Input,
		Identifier:  identifier,
	})
	if err != nil {
		return ExecutionResult{}, dispatchErr(PathImage, fmt.Errorf("run: %w", err))
	}

	// Image functions return their raw value and do not surface logs.
	return ExecutionResult{
		Status: ExecutionSuccess,
		Output: map[string]any{"output": raw},
	}, nil
}

func (e *Engine) runPackage(ctx context.Context, fn *Function, req ExecutionRequest) (ExecutionResult, *Prepared, error) {
	octx, cancel := e.orchestratorContext(ctx)
	defer cancel()

	prepared, err := e.orchestrator.PrepareExecution(octx, PrepareRequest{
		FunctionID: fn.ID,
		Identifier: req.RuntimeID,
		Labels:     runtimeLabels(req.RuntimeID),
		Input:      req.Input,
		Entry:      fn.Entry,
		TrustID:    fn.TrustID,
	})
	if err != nil {
		return ExecutionResult{}, nil, dispatchErr(PathPackage, fmt.Errorf("prepare: %w", err))
	}
	if prepared == nil || prepared.ServiceURL == "" {
		return ExecutionResult{}, nil, dispatchErr(PathPackage, errors.New("prepare: orchestrator returned no service url"))
	}

	raw, err := e.orchestrator.RunExecution(octx, RunRequest{
		ExecutionID: req.ExecutionID,
		FunctionID:  fn.ID,
		Input:       req.Input,
		Identifier:  req.RuntimeID,
		ServiceURL:  prepared.ServiceURL,
	})
	if err != nil {
		return ExecutionResult{}, nil, dispatchErr(PathPackage, fmt.Errorf("run: %w", err))
	}
	reply, ok := raw.(map[string]any)
	if !ok {
		return ExecutionResult{}, nil, dispatchErr(PathPackage, fmt.Errorf("%w: got %T", ErrMalformedResponse, raw))
	}
	res, err := parseEnvelope(reply)
	if err != nil {
		return ExecutionResult{}, nil, dispatchErr(PathPackage, err)
	}
	return res, prepared, nil
}

// dispatchFailed applies the failure policy to a dispatch error and returns it.
func (e *Engine) dispatchFailed(ctx context.Context, lg zerolog.Logger, req ExecutionRequest, err error) error {
	var de *DispatchError
	if !errors.As(err, &de) {
		return err
	}
	executionsTotal.WithLabelValues(de.Path, "error").Inc()
	lg.Error().Err(err).Str("path", de.Path).Msg("execution dispatch failed")

	if e.cfg.ExecutionFailurePolicy != config.FailureRecord {
		return err
	}
	res := ExecutionResult{
		Status: ExecutionFailed,
		Output: map[string]any{"error": err.Error()},
	}
	ferr := e.store.Transaction(ctx, func(tx Tx) error {
		return tx.FinishExecution(ctx, req.ExecutionID, res)
	})
	if ferr != nil {
		lg.Error().Err(ferr).Msg("failed to record failed execution")
	}
	return err
}

// parseEnvelope splits a function reply into status, logs and output. The
// reply must carry a boolean "success"; "logs" is optional.
func parseEnvelope(reply map[string]any) (ExecutionResult, error) {
	raw, ok := reply["success"]
	if !ok {
		return ExecutionResult{}, fmt.Errorf("%w: missing success", ErrMalformedResponse)
	}
	success, ok := raw.(bool)
	if !ok {
		return ExecutionResult{}, fmt.Errorf("%w: success is %T", ErrMalformedResponse, raw)
	}

	var logs string
	if v, ok := reply["logs"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return ExecutionResult{}, fmt.Errorf("%w: logs is %T", ErrMalformedResponse, v)
		}
		logs = s
	}

	output := make(map[string]any, len(reply))
	for k, v := range reply {
		if k == "success" || k == "logs" {
			continue
		}
		output[k] = v
	}

	status := ExecutionFailed
	if success {
		status = ExecutionSuccess
	}
	return ExecutionResult{Status: status, Output: output, Logs: logs}, nil
}

// EphemeralIdentifier names the dedicated container of an image execution.
func EphemeralIdentifier(functionID string) string {
	id := rand.UUIDHex() + "-" + functionID
	if len(id) > MaxIdentifierLen {
		id = id[:MaxIdentifierLen]
	}
	return id
}
