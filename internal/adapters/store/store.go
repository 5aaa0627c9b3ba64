// Package store persists engine records with gorm.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"faas-engine/internal/core/engine"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var _ engine.Store = (*Store)(nil)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// Store implements engine.Store on a gorm database. Calls made directly on
// the Store run in their own implicit transaction.
type Store struct {
	repo
	lg zerolog.Logger
}

// New connects to postgres and migrates the schema.
func New(dsn string, lg zerolog.Logger) (*Store, error) {
	return Open(postgres.Open(dsn), lg, Options{
		MaxOpenConns:    20,
		ConnMaxLifetime: 30 * time.Minute,
		LogLevel:        logger.Warn,
	})
}

// Open migrates the schema on any gorm dialector.
func Open(dialector gorm.Dialector, lg zerolog.Logger, opts Options) (*Store, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Silent
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve sql db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	lg.Info().Str("dialect", dialector.Name()).Msg("database ready")
	return &Store{
		repo: repo{db: db},
		lg:   lg.With().Str("adapter", "store").Logger(),
	}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&engine.Runtime{},
		&engine.Function{},
		&engine.FunctionServiceMapping{},
		&engine.Worker{},
		&engine.Execution{},
	)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn in a database transaction. gorm rolls back when fn
// returns an error or panics.
func (s *Store) Transaction(ctx context.Context, fn func(tx engine.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repo{db: tx})
	})
}

// repo implements engine.Tx on either the root handle or a transaction.
type repo struct {
	db *gorm.DB
}

func (r repo) GetRuntime(ctx context.Context, id string) (*engine.Runtime, error) {
	return r.getRuntime(r.db.WithContext(ctx), id)
}

func (r repo) LockRuntime(ctx context.Context, id string) (*engine.Runtime, error) {
	return r.getRuntime(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r repo) getRuntime(db *gorm.DB, id string) (*engine.Runtime, error) {
	var rt engine.Runtime
	if err := db.First(&rt, "id = ?", id).Error; err != nil {
		return nil, translate(err, "runtime", id)
	}
	return &rt, nil
}

func (r repo) UpdateRuntime(ctx context.Context, id string, upd engine.RuntimeUpdate) error {
	values := map[string]any{"status": upd.Status}
	if upd.Image != "" {
		values["image"] = upd.Image
	}
	res := r.db.WithContext(ctx).Model(&engine.Runtime{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update runtime %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("runtime %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

func (r repo) DeleteRuntime(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&engine.Runtime{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete runtime %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("runtime %s: %w", id, engine.ErrNotFound)
	}
	return nil
}

func (r repo) GetFunction(ctx context.Context, id string) (*engine.Function, error) {
	return r.getFunction(r.db.WithContext(ctx), id)
}

func (r repo) LockFunction(ctx context.Context, id string) (*engine.Function, error) {
	return r.getFunction(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r repo) getFunction(db *gorm.DB, id string) (*engine.Function, error) {
	var fn engine.Function
	err := db.
		Preload("Service").
		Preload("Workers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&fn, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "function", id)
	}
	return &fn, nil
}

func (r repo) GetExecution(ctx context.Context, id string) (*engine.Execution, error) {
	var exec engine.Execution
	if err := r.db.WithContext(ctx).First(&exec, "id = ?", id).Error; err != nil {
		return nil, translate(err, "execution", id)
	}
	return &exec, nil
}

// FinishExecution writes status, output and logs in one statement, and only
// while the execution is still pending.
func (r repo) FinishExecution(ctx context.Context, id string, res engine.ExecutionResult) error {
	db := r.db.WithContext(ctx)
	upd := db.Model(&engine.Execution{}).
		Where("id = ? AND status = ?", id, engine.ExecutionPending).
		Updates(map[string]any{
			"status": res.Status,
			"output": datatypes.JSONMap(res.Output),
			"logs":   res.Logs,
		})
	if upd.Error != nil {
		return fmt.Errorf("finish execution %s: %w", id, upd.Error)
	}
	if upd.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := db.Model(&engine.Execution{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("count execution %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("execution %s: %w", id, engine.ErrNotFound)
	}
	return fmt.Errorf("execution %s: %w", id, engine.ErrExecutionFinished)
}

func (r repo) CreateServiceMapping(ctx context.Context, m *engine.FunctionServiceMapping) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create service mapping for %s: %w", m.FunctionID, err)
	}
	return nil
}

func (r repo) CreateWorker(ctx context.Context, w *engine.Worker) error {
	if err := r.db.WithContext(ctx).Create(w).Error; err != nil {
		return fmt.Errorf("create worker %s: %w", w.WorkerName, err)
	}
	return nil
}

func (r repo) DeleteWorker(ctx context.Context, workerName string) error {
	res := r.db.WithContext(ctx).Delete(&engine.Worker{}, "worker_name = ?", workerName)
	if res.Error != nil {
		return fmt.Errorf("delete worker %s: %w", workerName, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("worker %s: %w", workerName, engine.ErrNotFound)
	}
	return nil
}

func translate(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, engine.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}
