package ovsdb

import (
	"errors"
	"fmt"
)

var (
	ErrRowNotFound    = errors.New("ovsdb: row not found")
	ErrUnsupported    = errors.New("ovsdb: operation not supported by backend")
	ErrForeignCommand = errors.New("ovsdb: command does not belong to this backend")
	ErrTryAgain       = errors.New("ovsdb: transaction must be retried")
	ErrInvalidValue   = errors.New("ovsdb: invalid value")
)

// RowNotFound builds the canonical not-found error for a table lookup.
func RowNotFound(table, column string, value any) error {
	return fmt.Errorf("%w: %s with %s=%v", ErrRowNotFound, table, column, value)
}
