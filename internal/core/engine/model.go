package engine

import (
	"time"

	"gorm.io/datatypes"
)

// RuntimeStatus is the lifecycle state of a runtime pool.
type RuntimeStatus string

const (
	RuntimeCreating  RuntimeStatus = "creating"
	RuntimeUpgrading RuntimeStatus = "upgrading"
	RuntimeAvailable RuntimeStatus = "available"
	RuntimeError     RuntimeStatus = "error"
)

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "pending"
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed
}

// Runtime is a named shared worker pool backing package functions.
type Runtime struct {
	ID        string        `gorm:"primaryKey" json:"id"`
	Name      string        `json:"name"`
	Image     string        `gorm:"not null" json:"image"`
	Status    RuntimeStatus `gorm:"not null;index" json:"status"`
	ProjectID string        `gorm:"index" json:"project_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Function is a registered unit of deployable code.
type Function struct {
	ID        string `gorm:"primaryKey" json:"id"`
	Name      string `json:"name"`
	RuntimeID string `gorm:"index" json:"runtime_id,omitempty"`
	Entry     string `json:"entry"`
	Code      Code   `gorm:"type:text;not null" json:"code"`
	TrustID   string `json:"trust_id,omitempty"`
	ProjectID string `gorm:"index" json:"project_id"`

	// Service is set once the function has a warm endpoint.
	Service *FunctionServiceMapping `gorm:"foreignKey:FunctionID" json:"service,omitempty"`
	Workers []Worker                `gorm:"foreignKey:FunctionID" json:"workers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (f *Function) HasWorker(name string) bool {
	for _, w := range f.Workers {
		if w.WorkerName == name {
			return true
		}
	}
	return false
}

// FunctionServiceMapping memoizes the endpoint of a warm function.
type FunctionServiceMapping struct {
	FunctionID string    `gorm:"primaryKey" json:"function_id"`
	ServiceURL string    `gorm:"not null" json:"service_url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Worker is one unit of warm capacity bound to a function. ID follows
// creation order.
type Worker struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	WorkerName string    `gorm:"uniqueIndex;not null" json:"worker_name"`
	FunctionID string    `gorm:"index;not null" json:"function_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Execution is one invocation attempt of a function.
type Execution struct {
	ID         string            `gorm:"primaryKey" json:"id"`
	FunctionID string            `gorm:"index;not null" json:"function_id"`
	RuntimeID  string            `json:"runtime_id,omitempty"`
	ProjectID  string            `gorm:"index" json:"project_id"`
	Input      datatypes.JSON    `json:"input,omitempty"`
	Status     ExecutionStatus   `gorm:"not null;index" json:"status"`
	Output     datatypes.JSONMap `json:"output,omitempty"`
	Logs       string            `gorm:"type:text" json:"logs"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ExecutionResult is the terminal outcome of an execution. Status, Output and
// Logs are always written together.
type ExecutionResult struct {
	Status ExecutionStatus
	Output map[string]any
	Logs   string
}

// RuntimeUpdate is a partial update of a runtime row. An empty Image leaves the
// stored image unchanged.
type RuntimeUpdate struct {
	Status RuntimeStatus
	Image  string
}
