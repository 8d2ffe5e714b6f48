// Package task defines the units of work the dispatcher runs.
package task

import "context"

// *--------------------------------------------------------------------------------------
// Task is one unit of work executed by a worker.
type Task interface {
	Execute(ctx context.Context) error
	String() string
	Type() TaskType
}

// *--------------------------------------------------------------------------------------
// TaskType
type TaskType string

const (
	EventTaskType TaskType = "event"
	DiagTaskType  TaskType = "diag"
)
