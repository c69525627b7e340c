// Package apperr defines the typed failures the service layer raises.
// Errors are created at the point of detection and propagate unchanged
// to the HTTP layer, which alone translates kinds to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidState      Kind = "INVALID_STATE"
	KindAlreadyConverted  Kind = "ALREADY_CONVERTED"
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"
	KindInactive          Kind = "INACTIVE"
	KindCannotDelete      Kind = "CANNOT_DELETE"
	KindValidation        Kind = "VALIDATION"
)

// Error is a domain failure with a stable kind and a human-readable message
type Error struct {
	Kind    Kind
	Message string

	// Available and Required are set for insufficient-stock errors
	Available int
	Required  int
}

func (e *Error) Error() string {
	return e.Message
}

// Is makes errors.Is match any two errors of the same kind
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// KindOf returns the kind of err, or "" if err is not a domain error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is a domain error of kind k
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// NotFound reports a missing or soft-deleted entity
func NotFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %d", entity, id)}
}

// NotFoundMsg reports a missing entity with a custom message
func NotFoundMsg(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports an operation illegal for the entity's current status
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// AlreadyConverted reports a second conversion attempt on a pre-order
func AlreadyConverted(preOrderID int64) *Error {
	return &Error{
		Kind:    KindAlreadyConverted,
		Message: fmt.Sprintf("pre-order %d has already been converted to an order", preOrderID),
	}
}

// InsufficientStock reports that a product cannot cover the requested quantity
func InsufficientStock(productID int64, available, required int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("not enough stock for product %d: available %d, required %d", productID, available, required),
		Available: available,
		Required:  required,
	}
}

// Inactive reports a soft-deleted product
func Inactive(productID int64) *Error {
	return &Error{Kind: KindInactive, Message: fmt.Sprintf("product %d is not active", productID)}
}

// CannotDelete reports a deletion forbidden by a terminal state
func CannotDelete(format string, args ...interface{}) *Error {
	return &Error{Kind: KindCannotDelete, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed input
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
