package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCode is returned for a malformed function code descriptor.
	ErrInvalidCode = errors.New("invalid function code")
	// ErrMalformedResponse is returned when a function reply lacks "success".
	ErrMalformedResponse = errors.New("malformed function response")
	// ErrNotEnoughWorkers is returned by orchestrators that cannot claim workers.
	ErrNotEnoughWorkers = errors.New("not enough workers available")
	// ErrExecutionFinished is returned when dispatching a terminal execution.
	ErrExecutionFinished = errors.New("execution already finished")
	// ErrInvalidCount is returned for a non-positive scaling count.
	ErrInvalidCount = errors.New("count must be positive")
	// ErrLocked is returned when a lock cannot be acquired in time.
	ErrLocked = errors.New("resource is locked")
	// ErrPoolUpdate marks a pool update the orchestrator could not apply.
	ErrPoolUpdate = errors.New("pool update failed")
)

// DispatchError wraps a failure of an external call made while dispatching an
// execution.
type DispatchError struct {
	Path string
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s dispatch: %v", e.Path, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func dispatchErr(path string, err error) error {
	return &DispatchError{Path: path, Err: err}
}
