package task

import (
	"context"
	"fmt"
)

// DiagReporter sends diagnostic error codes to the platform.
type DiagReporter interface {
	AddErrorCode(reqID string, code int) error
}

// *--------------------------------------------------------------------------------------
// DiagTask reports an error code of a managed device.
type DiagTask struct {
	Reporter DiagReporter
	Code     int
}

// *--------------------------------------------------------------------------------------
// Execute
func (t *DiagTask) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.Reporter.AddErrorCode("", t.Code); err != nil {
		return fmt.Errorf("failed to report error code %d: %w", t.Code, err)
	}
	return nil
}

// *--------------------------------------------------------------------------------------
// String
func (t *DiagTask) String() string {
	return fmt.Sprintf("DiagTask{Code: %d}", t.Code)
}

// *--------------------------------------------------------------------------------------
// Type
func (t *DiagTask) Type() TaskType {
	return DiagTaskType
}
