package log

import (
	"context"
	"errors"

	"saldo/internal/core"
)

// ErrorType maps an error onto one of the ErrorType categories.
func ErrorType(err error) string {
	switch {
	case core.IsValidation(err):
		return ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, core.ErrUnauthenticated):
		return ErrorTypeAuth
	case errors.Is(err, core.ErrRemoteUnavailable), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeNetwork
	default:
		return ErrorTypeInternal
	}
}
