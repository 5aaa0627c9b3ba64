package store

import (
	"context"
	"fmt"

	"faas-engine/internal/core/engine"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The methods below serve the API layer, which creates and removes the rows
// the engine operates on.

func (s *Store) CreateRuntime(ctx context.Context, rt *engine.Runtime) error {
	if err := s.db.WithContext(ctx).Create(rt).Error; err != nil {
		return fmt.Errorf("create runtime: %w", err)
	}
	return nil
}

func (s *Store) ListRuntimes(ctx context.Context) ([]engine.Runtime, error) {
	var runtimes []engine.Runtime
	if err := s.db.WithContext(ctx).Order("created_at").Find(&runtimes).Error; err != nil {
		return nil, fmt.Errorf("list runtimes: %w", err)
	}
	return runtimes, nil
}

func (s *Store) CreateFunction(ctx context.Context, fn *engine.Function) error {
	if err := fn.Code.Validate(); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(fn).Error; err != nil {
		return fmt.Errorf("create function: %w", err)
	}
	return nil
}

func (s *Store) ListFunctions(ctx context.Context) ([]engine.Function, error) {
	var functions []engine.Function
	err := s.db.WithContext(ctx).
		Preload("Service").
		Order("created_at").
		Find(&functions).Error
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	return functions, nil
}

// DeleteFunction removes a function with its workers and service mapping.
func (s *Store) DeleteFunction(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&engine.Worker{}, "function_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete workers of %s: %w", id, err)
		}
		if err := tx.Delete(&engine.FunctionServiceMapping{}, "function_id = ?", id).Error; err != nil {
			return fmt.Errorf("delete service mapping of %s: %w", id, err)
		}
		res := tx.Delete(&engine.Function{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete function %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("function %s: %w", id, engine.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) ListWorkers(ctx context.Context, functionID string) ([]engine.Worker, error) {
	var workers []engine.Worker
	err := s.db.WithContext(ctx).
		Where("function_id = ?", functionID).
		Order("id").
		Find(&workers).Error
	if err != nil {
		return nil, fmt.Errorf("list workers of %s: %w", functionID, err)
	}
	return workers, nil
}

func (s *Store) CreateExecution(ctx context.Context, exec *engine.Execution) error {
	if exec.Status == "" {
		exec.Status = engine.ExecutionPending
	}
	if err := s.db.WithContext(ctx).Create(exec).Error; err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

// ListExecutions returns the newest executions first, optionally filtered by
// function.
func (s *Store) ListExecutions(ctx context.Context, functionID string, limit int) ([]engine.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if functionID != "" {
		q = q.Where("function_id = ?", functionID)
	}
	var execs []engine.Execution
	if err := q.Find(&execs).Error; err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	return execs, nil
}
