package models

import (
	"errors"
	"fmt"
	"time"
)

// storage level errors, translated by services into the typed errors below
var (
	ErrConflictData = errors.New("data conflicts with existing data")
	ErrDataNotFound = errors.New("data not found")
	ErrInternal     = errors.New("internal error")
)

// ValidationError is returned when input is missing or out of range
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError creates new ValidationError
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError is returned when a referenced entity is absent
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrDataNotFound
}

// NewNotFoundError creates new NotFoundError
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError is returned when an operation violates a business invariant
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

func (e *ConflictError) Unwrap() error {
	return ErrConflictData
}

// NewConflictError creates new ConflictError
func NewConflictError(reason string) error {
	return &ConflictError{Reason: reason}
}

// AccessDeniedError is returned on ownership or role mismatch
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	if e.Reason == "" {
		return "access denied"
	}
	return e.Reason
}

// NewAccessDeniedError creates new AccessDeniedError
func NewAccessDeniedError(reason string) error {
	return &AccessDeniedError{Reason: reason}
}

// TransientStorageError wraps the last storage fault after retries are exhausted
type TransientStorageError struct {
	Attempts int
	Err      error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("storage unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientStorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is NotFoundError
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is ConflictError
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsAccessDenied reports whether err is AccessDeniedError
func IsAccessDenied(err error) bool {
	var target *AccessDeniedError
	return errors.As(err, &target)
}

// IsTransient reports whether err is TransientStorageError
func IsTransient(err error) bool {
	var target *TransientStorageError
	return errors.As(err, &target)
}

// TooManyRequestsError is returned by rate limited collaborators
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// NewTooManyRequestsError creates new TooManyRequestsError
func NewTooManyRequestsError(retryAfter time.Duration) error {
	return TooManyRequestsError{RetryAfter: retryAfter}
}
