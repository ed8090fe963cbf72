// Package errors defines structured error types for the storage and sync core.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies failures so callers can decide how to recover.
type ErrorCode string

const (
	// ErrNotConfigured is returned when no notes directory was ever chosen.
	ErrNotConfigured ErrorCode = "NOT_CONFIGURED"
	// ErrAccessRevoked is returned when a directory was configured but access
	// could not be recovered without user action.
	ErrAccessRevoked ErrorCode = "ACCESS_REVOKED"
	// ErrStorage is returned when a local storage operation fails.
	ErrStorage ErrorCode = "STORAGE_ERROR"
	// ErrValidation is returned when input data fails validation.
	ErrValidation ErrorCode = "VALIDATION_FAILED"

	// ErrNetwork is returned when the remote store cannot be reached at all.
	ErrNetwork ErrorCode = "NETWORK"
	// ErrRemoteAuth is returned when the remote store rejects the credentials.
	ErrRemoteAuth ErrorCode = "REMOTE_AUTH"
	// ErrRemoteDenied is returned when the remote store's rules deny the operation.
	ErrRemoteDenied ErrorCode = "REMOTE_DENIED"
	// ErrRemoteNotFound is returned when the remote store has no such record.
	ErrRemoteNotFound ErrorCode = "REMOTE_NOT_FOUND"
)

// StorageError carries a code plus a human-readable, situation-specific
// message. The message is meant to be shown to the user verbatim.
type StorageError struct {
	code       ErrorCode
	message    string
	wrappedErr error
}

// New creates a StorageError with the given code and message.
func New(code ErrorCode, message string) *StorageError {
	return &StorageError{code: code, message: message}
}

// Newf creates a StorageError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *StorageError {
	return &StorageError{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause.
func (e *StorageError) Wrap(err error) *StorageError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// Code returns the error classification.
func (e *StorageError) Code() ErrorCode {
	return e.code
}

// Unwrap returns the wrapped error if any.
func (e *StorageError) Unwrap() error {
	return e.wrappedErr
}

// CodeOf extracts the ErrorCode from err, or "" if it is not a StorageError.
func CodeOf(err error) ErrorCode {
	var se *StorageError
	if errors.As(err, &se) {
		return se.code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NotConfigured creates an error telling the user to pick a notes folder.
func NotConfigured() *StorageError {
	return New(ErrNotConfigured, "No notes folder is configured. Choose a folder to store your notes first.")
}

// AccessRevoked creates an error telling the user to re-grant folder access.
func AccessRevoked(path string) *StorageError {
	return Newf(ErrAccessRevoked, "Access to the notes folder %q was lost. Re-select the folder to continue.", path)
}
