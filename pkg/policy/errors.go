package policy

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNilRule indicates a nil rule was passed to the registry.
	ErrNilRule = errors.New("rule cannot be nil")

	// ErrNilReceipt indicates a nil receipt was passed to evaluation.
	ErrNilReceipt = errors.New("receipt cannot be nil")
)

// RegistryError indicates a rule or principle registration failure.
type RegistryError struct {
	Kind      string // "rule" or "principle"
	ID        string
	Operation string
	Message   string
}

// Error returns the error message.
func (e *RegistryError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q: %s: %s", e.Kind, e.ID, e.Operation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Operation, e.Message)
}

// UnknownRuleError indicates a principle references an unregistered rule id.
type UnknownRuleError struct {
	PrincipleID string
	RuleID      string
}

// Error returns the error message.
func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("principle %q references unknown rule %q", e.PrincipleID, e.RuleID)
}

// LoadError indicates a principles file could not be loaded or parsed.
type LoadError struct {
	Path  string
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("principles load failed for %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}
