// Package apperror holds the failure kinds shared by every usecase.
//
// Kinds are sentinel errors: wrap them with fmt.Errorf("%w") or the helpers
// below and test with errors.Is.
package apperror

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrUpstream          = errors.New("store unavailable")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrAlreadyExists     = errors.New("already exists")
)

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func InvalidArgument(format string, args ...any) error {
	return wrap(ErrInvalidArgument, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return wrap(ErrUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

func AlreadyExists(format string, args ...any) error {
	return wrap(ErrAlreadyExists, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Upstream marks err as a store/broker failure unless it already carries one
// of the domain kinds.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	if IsKnown(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// IsKnown reports whether err already carries a domain kind.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrInsufficientStock, ErrEmptyCart, ErrUnauthorized, ErrForbidden,
		ErrConflict, ErrUpstream, ErrInvalidArgument, ErrDuplicateRequest, ErrAlreadyExists,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// Retryable is true for failures the caller may resubmit unchanged: timeouts,
// connectivity and lost races. Conflict callers should re-read inventory first.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstream) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, context.DeadlineExceeded)
}

// StockError reports a line that cannot be satisfied from current stock.
// It matches ErrInsufficientStock, or ErrConflict when it was detected by the
// conditional decrement inside a commit.
type StockError struct {
	ItemID    string
	ItemName  string
	Requested int
	Available int
	Race      bool
}

func (e *StockError) Error() string {
	if e.Race {
		return fmt.Sprintf("stock for %q changed during commit: requested %d", e.ItemName, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", e.ItemName, e.Requested, e.Available)
}

func (e *StockError) Is(target error) bool {
	if e.Race {
		return target == ErrConflict
	}
	return target == ErrInsufficientStock
}
