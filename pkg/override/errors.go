package override

import (
	"fmt"
	"strings"
)

// MinReasonLength is the minimum accepted override reason length.
const MinReasonLength = 10

// ValidationError indicates a malformed override creation request.
// It aggregates every failed field so callers can fix a request in one pass.
type ValidationError struct {
	Fields []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("invalid override request: %s", e.Fields[0])
	}
	return fmt.Sprintf("invalid override request: %d problems: %s", len(e.Fields), strings.Join(e.Fields, "; "))
}

// StoreError indicates a persistence failure in the override store.
type StoreError struct {
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("override store %s failed: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
