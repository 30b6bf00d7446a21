package store

import (
	"errors"
	"fmt"

	"github.com/chirino/console-migrate/internal/model"
)

// NotFoundError indicates no document matched.
type NotFoundError struct {
	Collection model.Collection
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Collection.Entity(), e.ID)
}

// ConflictError indicates a uniqueness/conflict violation.
type ConflictError struct {
	Collection model.Collection
	ID         string
	Message    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Collection.Entity(), e.ID, e.Message)
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
