package core

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrStore        = errors.New("store error")
	ErrSideArtifact = errors.New("side artifact error")
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrSubCent       = errors.New("amount has more than two decimal places")
	ErrZeroDate      = errors.New("date cannot be zero")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an edit or delete that references a missing row.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFoundError(entity string, id any) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StoreError wraps an I/O failure of the entity store. The unit of work that
// hit it is rolled back.
type StoreError struct {
	Op  string
	Err error
}

func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// SideArtifactError is only ever logged. Bookkeeping never depends on files.
type SideArtifactError struct {
	Path string
	Err  error
}

func (e *SideArtifactError) Error() string {
	return fmt.Sprintf("side artifact %s: %v", e.Path, e.Err)
}

func (e *SideArtifactError) Unwrap() error { return e.Err }

func (e *SideArtifactError) Is(target error) bool { return target == ErrSideArtifact }
