package engine

import (
	"context"
	"encoding/json"
)

// Orchestrator defines the interface for provisioning pools and workers on a
// container backend.
type Orchestrator interface {
	CreatePool(ctx context.Context, id, image string, labels map[string]string) error
	// UpdatePool rolls the pool onto image and reports whether it succeeded.
	// A failed update leaves the pool on its previous image.
	UpdatePool(ctx context.Context, id string, labels map[string]string, image string) bool
	DeletePool(ctx context.Context, id string, labels map[string]string) error

	PrepareExecution(ctx context.Context, req PrepareRequest) (*Prepared, error)
	// RunExecution returns the reply envelope when req.ServiceURL is set and
	// the function's raw return value otherwise.
	RunExecution(ctx context.Context, req RunRequest) (any, error)

	ScaleUpFunction(ctx context.Context, functionID, identifier, entry string, count int) ([]string, error)
	DeleteWorker(ctx context.Context, workerName string) error
	DeleteFunction(ctx context.Context, functionID string, labels map[string]string) error
}

// PrepareRequest asks the orchestrator for an environment able to run a
// function. Image is empty for package functions.
type PrepareRequest struct {
	FunctionID string
	Image      string
	Identifier string
	Labels     map[string]string
	Input      json.RawMessage
	Entry      string
	TrustID    string
}

// Prepared holds the outcome of PrepareExecution. ServiceURL is empty for
// image functions.
type Prepared struct {
	WorkerName string
	ServiceURL string
}

// RunRequest runs one execution in a prepared environment.
type RunRequest struct {
	ExecutionID string
	FunctionID  string
	Input       json.RawMessage
	Identifier  string
	ServiceURL  string
}

// Invoker calls the HTTP endpoint of an already running function service.
type Invoker interface {
	Invoke(ctx context.Context, serviceURL string, req InvokeRequest) (map[string]any, error)
}

// InvokeRequest is the body posted to <service_url>/execute.
type InvokeRequest struct {
	Input       json.RawMessage `json:"input"`
	ExecutionID string          `json:"execution_id"`
}

// Label keys attached to backend resources.
const (
	LabelRuntimeID  = "runtime_id"
	LabelFunctionID = "function_id"
)

func runtimeLabels(runtimeID string) map[string]string {
	return map[string]string{LabelRuntimeID: runtimeID}
}

func functionLabels(functionID string) map[string]string {
	return map[string]string{LabelFunctionID: functionID}
}
