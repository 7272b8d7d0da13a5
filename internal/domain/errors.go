/**
 * @description
 * This file defines the error taxonomy shared by the ledger core. Errors are
 * classified by kind (validation, not-found, business-rule, conflict,
 * infrastructure) so that callers — in particular the import service — can decide
 * whether a failure is retryable or a data/programming error the caller must fix.
 *
 * @dependencies
 * - errors, fmt: Standard Go libraries.
 */

package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain error for policy decisions (retry, HTTP status, …).
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindNotFound       ErrorKind = "not_found"
	KindBusinessRule   ErrorKind = "business_rule"
	KindConflict       ErrorKind = "conflict"
	KindInfrastructure ErrorKind = "infrastructure"
)

// Error is the concrete error type carried by all domain-level failures.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches sentinel domain errors by identity and otherwise by kind+message,
// so wrapped copies of a sentinel still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.Kind == t.Kind && e.Message == t.Message)
}

// NewValidationError reports malformed input (bad currency, empty IBAN, …).
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports an absent account/transaction/mapping/import record.
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewBusinessRuleError reports an accounting invariant violation.
func NewBusinessRuleError(format string, args ...any) *Error {
	return &Error{Kind: KindBusinessRule, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports a uniqueness collision (duplicate number, mapping, …).
func NewConflictError(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NewInfrastructureError wraps a persistence or broker failure.
func NewInfrastructureError(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInfrastructure, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf returns the kind of err, or KindInfrastructure for errors that did not
// originate in the domain layer.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInfrastructure
}

// Sentinel errors for the transaction/money lifecycle. They are *Error values so
// both errors.Is and KindOf work on them.
var (
	ErrCurrencyMismatch       = &Error{Kind: KindValidation, Message: "currency mismatch"}
	ErrTooManyFractionDigits  = &Error{Kind: KindValidation, Message: "amount has more than 2 fractional digits"}
	ErrUnsupportedCurrency    = &Error{Kind: KindValidation, Message: "unsupported currency code"}
	ErrAlreadyPosted          = &Error{Kind: KindBusinessRule, Message: "transaction is already posted"}
	ErrNotPosted              = &Error{Kind: KindBusinessRule, Message: "transaction is not posted"}
	ErrUnbalanced             = &Error{Kind: KindBusinessRule, Message: "transaction debits and credits are not balanced"}
	ErrNoEntries              = &Error{Kind: KindBusinessRule, Message: "transaction has no journal entries"}
	ErrTransactionImmutable   = &Error{Kind: KindBusinessRule, Message: "posted transaction cannot be modified"}
	ErrReservedMetadataKey    = &Error{Kind: KindValidation, Message: "metadata key is reserved for system use"}
	ErrHierarchyCycle         = &Error{Kind: KindBusinessRule, Message: "account hierarchy must not contain cycles"}
	ErrHierarchyTooDeep       = &Error{Kind: KindBusinessRule, Message: "account hierarchy exceeds maximum depth"}
	ErrImportRecordTerminal   = &Error{Kind: KindBusinessRule, Message: "import record is not retryable from its current status"}
	ErrImportRecordIncomplete = &Error{Kind: KindValidation, Message: "import record status does not match its payload"}
)

// detailf attaches call-site detail to a sentinel. errors.Is against the
// sentinel and KindOf keep working through the wrap.
func detailf(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
