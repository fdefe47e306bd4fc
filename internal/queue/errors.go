package queue

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicateChecksum reports an enqueue whose checksum already exists in the workflow.
	ErrDuplicateChecksum = errors.New("duplicate checksum")
	// ErrWorkflowRunning rejects destructive admin actions on a running workflow.
	ErrWorkflowRunning = errors.New("workflow is running")
)

const (
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
