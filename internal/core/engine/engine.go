// Package engine decides how and where function executions run, drives the
// orchestrator that provisions runtime pools and workers, and records the
// outcome in the metadata store.
package engine

import (
	"context"
	"fmt"
	"time"

	"faas-engine/internal/config"

	"github.com/rs/zerolog"
)

type Engine struct {
	store        Store
	orchestrator Orchestrator
	invoker      Invoker
	locker       Locker
	cfg          config.Config
	lg           zerolog.Logger
}

func NewEngine(store Store, orch Orchestrator, inv Invoker, locker Locker, cfg config.Config, lg zerolog.Logger) *Engine {
	return &Engine{
		store:        store,
		orchestrator: orch,
		invoker:      inv,
		locker:       locker,
		cfg:          cfg,
		lg:           lg.With().Str("component", "engine").Logger(),
	}
}

// CreateRuntime provisions the pool of a runtime row that already exists.
// Provisioning failures are not returned: they leave the runtime in the error
// state.
func (e *Engine) CreateRuntime(ctx context.Context, runtimeID string) error {
	lg := e.lg.With().Str("runtime_id", runtimeID).Logger()
	lg.Info().Msg("creating runtime")

	unlock, err := e.lock(ctx, RuntimeLockKey(runtimeID))
	if err != nil {
		return err
	}
	defer unlock()

	var outcome PoolOutcome
	err = e.store.Transaction(ctx, func(tx Tx) error {
		rt, err := tx.LockRuntime(ctx, runtimeID)
		if err != nil {
			return fmt.Errorf("get runtime: %w", err)
		}

		outcome = e.createPool(ctx, rt)
		if !outcome.OK() {
			lg.Error().Err(outcome.Err).Str("image", rt.Image).Msg("failed to create pool")
		}
		return tx.UpdateRuntime(ctx, runtimeID, RuntimeUpdate{Status: outcome.CreateStatus()})
	})
	if err != nil {
		return err
	}

	poolOperationsTotal.WithLabelValues("create", outcome.result()).Inc()
	lg.Info().Str("status", string(outcome.CreateStatus())).Msg("runtime created")
	return nil
}

func (e *Engine) createPool(ctx context.Context, rt *Runtime) PoolOutcome {
	octx, cancel := e.orchestratorContext(ctx)
	defer cancel()

	if err := e.orchestrator.CreatePool(octx, rt.ID, rt.Image, runtimeLabels(rt.ID)); err != nil {
		return poolFailed(err)
	}
	return poolOK()
}

// UpdateRuntime rolls a runtime pool onto image. If the orchestrator cannot
// apply the update the runtime stays available on preImage.
func (e *Engine) UpdateRuntime(ctx context.Context, runtimeID, image, preImage string) error {
	lg := e.lg.With().Str("runtime_id", runtimeID).Logger()
	lg.Info().Str("image", image).Msg("updating runtime")

	unlock, err := e.lock(ctx, RuntimeLockKey(runtimeID))
	if err != nil {
		return err
	}
	defer unlock()

	octx, cancel := e.orchestratorContext(ctx)
	outcome := poolOK()
	if !e.orchestrator.UpdatePool(octx, runtimeID, runtimeLabels(runtimeID), image) {
		outcome = poolFailed(ErrPoolUpdate)
	}
	cancel()

	upd := RuntimeUpdate{
		Status: RuntimeAvailable,
		Image:  outcome.UpdateImage(image, preImage),
	}
	if err := e.store.UpdateRuntime(ctx, runtimeID, upd); err != nil {
		return fmt.Errorf("update runtime: %w", err)
	}

	poolOperationsTotal.WithLabelValues("update", outcome.result()).Inc()
	if outcome.OK() {
		lg.Info().Msg("runtime updated")
	} else {
		lg.Warn().Str("image", preImage).Msg("runtime update rolled back")
	}
	return nil
}

// DeleteRuntime tears down the pool and then removes the runtime row.
func (e *Engine) DeleteRuntime(ctx context.Context, runtimeID string) error {
	lg := e.lg.With().Str("runtime_id", runtimeID).Logger()
	lg.Info().Msg("deleting runtime")

	unlock, err := e.lock(ctx, RuntimeLockKey(runtimeID))
	if err != nil {
		return err
	}
	defer unlock()

	octx, cancel := e.orchestratorContext(ctx)
	err = e.orchestrator.DeletePool(octx, runtimeID, runtimeLabels(runtimeID))
	cancel()
	if err != nil {
		poolOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("delete pool: %w", err)
	}

	if err := e.store.DeleteRuntime(ctx, runtimeID); err != nil {
		return fmt.Errorf("delete runtime: %w", err)
	}

	poolOperationsTotal.WithLabelValues("delete", "ok").Inc()
	lg.Info().Msg("runtime deleted")
	return nil
}

func (e *Engine) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := e.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

func (e *Engine) orchestratorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, e.cfg.OrchestratorTimeout)
}

func (e *Engine) invokeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, e.cfg.InvokeTimeout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
