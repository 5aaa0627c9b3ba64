package engine

import "context"

// Tx is the set of store operations the engine performs. All calls made on a
// Tx handed out by Store.Transaction commit or roll back together.
type Tx interface {
	GetRuntime(ctx context.Context, id string) (*Runtime, error)
	// LockRuntime reads a runtime and holds its row lock until the
	// transaction ends.
	LockRuntime(ctx context.Context, id string) (*Runtime, error)
	UpdateRuntime(ctx context.Context, id string, upd RuntimeUpdate) error
	DeleteRuntime(ctx context.Context, id string) error

	// GetFunction loads a function with its service mapping and its workers
	// in creation order.
	GetFunction(ctx context.Context, id string) (*Function, error)
	LockFunction(ctx context.Context, id string) (*Function, error)

	GetExecution(ctx context.Context, id string) (*Execution, error)
	// FinishExecution moves a pending execution to its terminal state.
	FinishExecution(ctx context.Context, id string, res ExecutionResult) error

	CreateServiceMapping(ctx context.Context, m *FunctionServiceMapping) error
	CreateWorker(ctx context.Context, w *Worker) error
	DeleteWorker(ctx context.Context, workerName string) error
}

// Store is the transactional metadata store. Calls made directly on the Store
// commit on their own.
type Store interface {
	Tx
	// Transaction runs fn in a transaction. It commits when fn returns nil
	// and rolls back when fn returns an error or panics.
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}
