package batch

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrPoolClosed     = errors.New("batch pool is closed")
	ErrInvalidConfig  = errors.New("invalid pool configuration")
	ErrForcedShutdown = errors.New("forced shutdown due to timeout")
)

// TaskError wraps a task failure
type TaskError struct {
	TaskID string
	Err    error
	Stack  string // Set when the task panicked
}

func (e *TaskError) Error() string {
	if e.Stack != "" {
		return fmt.Sprintf("task %s failed with panic: %v", e.TaskID, e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the task panicked
func (e *TaskError) Panicked() bool {
	return e.Stack != ""
}
