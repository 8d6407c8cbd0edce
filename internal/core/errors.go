package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidYear       = errors.New("invalid year")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyName         = errors.New("empty name")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("expired")
	ErrUnauthenticated   = errors.New("no authenticated user")
	ErrRemoteUnavailable = errors.New("remote store unavailable")
)

// AmountError rejects a payment outside (0, Max]. Max is what the user
// may enter at most, for display next to the input.
type AmountError struct {
	Max Money
}

func (e *AmountError) Error() string {
	return fmt.Sprintf("invalid amount: must be greater than 0 and at most %s", e.Max)
}

func (e *AmountError) Is(target error) bool {
	return target == ErrInvalidAmount
}

// IsValidation reports whether err is a rejected input that left state untouched.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidYear)
}
