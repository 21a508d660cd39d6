package domain

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound         = errors.New("processing job not found")
	ErrDuplicateJob        = errors.New("processing job already exists for inbound email")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrBlobNotFound        = errors.New("blob not found")
	ErrConcurrencyConflict = errors.New("concurrent modification")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
