package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates missing, malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor lacks the required permission.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrProcessing indicates a storage, rendering or delivery failure. Callers may retry.
	ErrProcessing = errors.New("processing failed")
)

// Validationf builds an ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf builds an ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Processing wraps err as ErrProcessing unless it already belongs to the taxonomy.
func Processing(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: timed out: %w", ErrProcessing, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrProcessing, op, err)
}

// IsClassified reports whether err already carries one of the taxonomy sentinels.
func IsClassified(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrProcessing)
}
