package service

import (
	"errors"
	"fmt"
)

// ErrValidation matches every ValidationError through errors.Is.
var ErrValidation = errors.New("validation failed")

var (
	// ErrContentRequired is returned when entry content is empty or whitespace only.
	ErrContentRequired = &ValidationError{Field: "content", Message: "content is required"}
	// ErrContentTooLong is returned when entry content exceeds the configured limit.
	ErrContentTooLong = &ValidationError{Field: "content", Message: "content is too long"}
	// ErrInvalidEntryID is returned when an entry id is not a UUID.
	ErrInvalidEntryID = &ValidationError{Field: "id", Message: "invalid entry id"}

	// ErrEntryNotFound indicates that no entry carries the requested id.
	ErrEntryNotFound = errors.New("entry not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	// ErrAuthDisabled is returned by the auth service when no owner password is configured.
	ErrAuthDisabled = errors.New("authentication is not enabled")

	// ErrBackupsDisabled is returned when no storage bucket is configured.
	ErrBackupsDisabled = errors.New("backups are not enabled")
)

// ValidationError reports input that the diary refuses to store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
