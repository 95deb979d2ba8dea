/*
errors.go - Error types of the installment engine

ERROR CATEGORIES:
  1. Validation errors - bad input, raised before any store call
  2. Not-found / zero-rows-affected - the target row does not exist or no longer matches
  3. Conflict - the row exists but is in the wrong state (already launched, not expired)
  4. Store errors - table.StoreError / table.SagaError, surfaced verbatim

USAGE:
    if errors.Is(err, parcelas.ErrNoOpenInstallment) { ... }
    if parcelas.IsClientError(err) { ... 4xx ... }

SEE ALSO:
  - api/handlers.go: maps these to HTTP status codes
  - table/errors.go: store-level errors
*/
package parcelas

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the parent of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInstallmentNotFound is returned when an update or delete by id affects no row.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrNoOpenInstallment is returned when a launch finds the row no longer ABERTO.
	// A concurrent launch of the same installment gets this error.
	ErrNoOpenInstallment = errors.New("no matching open installment")

	// ErrNoLaunchedInstallment is returned when amending a row that is not LANÇADO.
	ErrNoLaunchedInstallment = errors.New("no matching launched installment")

	// ErrContractNotFound is returned for an unknown contract id or name.
	ErrContractNotFound = errors.New("contract not found")

	// ErrNotRenewable is returned when renewing a contract whose termino is not past.
	ErrNotRenewable = errors.New("contract is not expired")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

// IsNotFound reports whether err means the target row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrInstallmentNotFound) ||
		errors.Is(err, ErrContractNotFound)
}

// IsConflict reports whether err means the row is in the wrong state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrNoOpenInstallment) ||
		errors.Is(err, ErrNoLaunchedInstallment) ||
		errors.Is(err, ErrNotRenewable)
}

// IsClientError reports whether err was caused by the caller's input or target.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsNotFound(err) || IsConflict(err)
}
