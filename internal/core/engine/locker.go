package engine

import "context"

// Locker serializes operations on the same runtime or function across
// callers.
type Locker interface {
	// Lock blocks until key is held or ctx ends. The returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// RuntimeLockKey is the lock key guarding a runtime pool.
func RuntimeLockKey(id string) string { return "runtime:" + id }

// FunctionLockKey is the lock key guarding a function's workers.
func FunctionLockKey(id string) string { return "function:" + id }
