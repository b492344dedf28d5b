package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInsufficient ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrAggregateNotFound   = NewError(ErrCodeNotFound, "aggregate not found")
	ErrConcurrencyConflict = NewError(ErrCodeConflict, "stream modified by another writer")
	ErrHashChainBroken     = NewError(ErrCodeInternal, "event hash chain broken")
	ErrInvalidPayload      = NewError(ErrCodeInvalid, "invalid payload")
	ErrUnauthorized        = NewError(ErrCodeUnauthorized, "unauthorized")
)

// InsufficientBalance reports a debit that would drive an account balance
// below zero. It carries enough detail for a corrective retry.
func InsufficientBalance(accountID, assetCode string, balance, requested int64) *Error {
	return NewError(ErrCodeInsufficient, fmt.Sprintf(
		"insufficient balance on account %s asset %s: have %d, need %d",
		accountID, assetCode, balance, requested))
}

// InvalidStateTransition reports an operation attempted from a state that does
// not allow it.
func InvalidStateTransition(kind, id, from, attempted string) *Error {
	return NewError(ErrCodeInvalidState, fmt.Sprintf(
		"%s %s cannot %s from state %s", kind, id, attempted, from))
}

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
