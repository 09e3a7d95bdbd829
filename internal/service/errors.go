package service

import (
	"errors"
	"fmt"
)

// Error classes the handlers map onto HTTP statuses. Services wrap these with
// context via errorf so callers can test the class with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

func errorf(class error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), class)
}
