package joberrors

import (
	"errors"
	"fmt"
)

// The four failure kinds the engine reports. All of them mean "no state was
// mutated"; the kind decides whether the caller retries, re-fetches, or gives
// up.

// ValidationError rejects bad input: amount outside the acceptance window,
// an inverted bid range, a mutation on a non-open post.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

// AuthorizationError rejects the wrong actor for an owner-only or
// winner-only action.
type AuthorizationError struct{ msg string }

func (e *AuthorizationError) Error() string { return e.msg }

// NotFoundError rejects an unknown post or bid identifier; the caller should
// re-fetch.
type NotFoundError struct{ msg string }

func (e *NotFoundError) Error() string { return e.msg }

// ConflictError rejects an illegal state transition, e.g. selecting a winner
// when one is already recorded. Not locally recoverable; refresh required.
type ConflictError struct{ msg string }

func (e *ConflictError) Error() string { return e.msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func Authorizationf(format string, args ...any) error {
	return &AuthorizationError{msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &NotFoundError{msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) error {
	return &ConflictError{msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

func IsAuthorization(err error) bool {
	var t *AuthorizationError
	return errors.As(err, &t)
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}
