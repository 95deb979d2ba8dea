package table

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTable is returned for a table outside Columns.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when a row, patch or filter names a column the
	// table does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnavailable wraps connectivity and backend failures.
	ErrUnavailable = errors.New("store unavailable")
)

// StoreError records which operation on which table failed.
// The underlying message is kept verbatim so operators can diagnose it.
type StoreError struct {
	Op    string
	Table Name
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// SagaError reports a failed step and, when compensation also failed, why.
type SagaError struct {
	Step          string
	Err           error
	Compensations []error
}

func (e *SagaError) Error() string {
	if len(e.Compensations) == 0 {
		return fmt.Sprintf("step %q failed (compensated): %v", e.Step, e.Err)
	}
	return fmt.Sprintf("step %q failed: %v; compensation failed: %v", e.Step, e.Err, errors.Join(e.Compensations...))
}

func (e *SagaError) Unwrap() error { return e.Err }

// Compensated reports whether every compensation ran cleanly.
func (e *SagaError) Compensated() bool { return len(e.Compensations) == 0 }

// ValidateColumns rejects columns that table does not define.
func ValidateColumns(table Name, cols map[string]any) error {
	if _, ok := Columns[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	for col := range cols {
		if !HasColumn(table, col) {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, col)
		}
	}
	return nil
}
