package engine

import (
	"context"
	"fmt"
)

// DeleteFunction reclaims every backend resource labelled with the function.
// Store rows are left to the caller that deletes the function record.
func (e *Engine) DeleteFunction(ctx context.Context, functionID string) error {
	lg := e.lg.With().Str("function_id", functionID).Logger()
	lg.Info().Msg("deleting function")

	unlock, err := e.lock(ctx, FunctionLockKey(functionID))
	if err != nil {
		return err
	}
	defer unlock()

	octx, cancel := e.orchestratorContext(ctx)
	defer cancel()
	if err := e.orchestrator.DeleteFunction(octx, functionID, functionLabels(functionID)); err != nil {
		return fmt.Errorf("delete function resources: %w", err)
	}

	lg.Info().Msg("function deleted")
	return nil
}

// ScaleUpFunction adds count workers from the runtime pool to a function.
// Workers created by the orchestrator are not reclaimed if recording them
// fails.
func (e *Engine) ScaleUpFunction(ctx context.Context, functionID, runtimeID string, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}
	lg := e.lg.With().Str("function_id", functionID).Str("runtime_id", runtimeID).Logger()

	unlock, err := e.lock(ctx, FunctionLockKey(functionID))
	if err != nil {
		return err
	}
	defer unlock()

	fn, err := e.store.GetFunction(ctx, functionID)
	if err != nil {
		return fmt.Errorf("get function: %w", err)
	}

	octx, cancel := e.orchestratorContext(ctx)
	names, err := e.orchestrator.ScaleUpFunction(octx, functionID, runtimeID, fn.Entry, count)
	cancel()
	if err != nil {
		return fmt.Errorf("scale up function: %w", err)
	}

	err = e.store.Transaction(ctx, func(tx Tx) error {
		for _, name := range names {
			if err := tx.CreateWorker(ctx, &Worker{FunctionID: functionID, WorkerName: name}); err != nil {
				return fmt.Errorf("create worker %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		lg.Error().Err(err).Strs("workers", names).Msg("workers created but not recorded")
		return err
	}

	workersScaledTotal.WithLabelValues("up").Add(float64(len(names)))
	lg.Info().Int("added", len(names)).Msg("finished scaling up function")
	return nil
}

// ScaleDownFunction removes up to count workers from a function, oldest
// first. At least one worker is always kept.
func (e *Engine) ScaleDownFunction(ctx context.Context, functionID string, count int) error {
	if count < 1 {
		return ErrInvalidCount
	}
	lg := e.lg.With().Str("function_id", functionID).Logger()

	unlock, err := e.lock(ctx, FunctionLockKey(functionID))
	if err != nil {
		return err
	}
	defer unlock()

	var removed int
	err = e.store.Transaction(ctx, func(tx Tx) error {
		fn, err := tx.LockFunction(ctx, functionID)
		if err != nil {
			return fmt.Errorf("get function: %w", err)
		}

		victims := fn.Workers[:WorkersToRemove(len(fn.Workers), count)]
		for _, w := range victims {
			lg.Debug().Str("worker", w.WorkerName).Msg("removing worker")

			octx, cancel := e.orchestratorContext(ctx)
			err := e.orchestrator.DeleteWorker(octx, w.WorkerName)
			cancel()
			if err != nil {
				return fmt.Errorf("delete worker %s: %w", w.WorkerName, err)
			}
			if err := tx.DeleteWorker(ctx, w.WorkerName); err != nil {
				return fmt.Errorf("delete worker record %s: %w", w.WorkerName, err)
			}
		}
		removed = len(victims)
		return nil
	})
	if err != nil {
		return err
	}

	workersScaledTotal.WithLabelValues("down").Add(float64(removed))
	lg.Info().Int("removed", removed).Msg("finished scaling down function")
	return nil
}

// WorkersToRemove returns how many of current workers a scale down by count
// removes: count when more than count exist, otherwise all but one.
func WorkersToRemove(current, count int) int {
	if current > count {
		return count
	}
	if current == 0 {
		return 0
	}
	return current - 1
}
