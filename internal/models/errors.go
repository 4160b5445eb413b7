package models

import (
	"errors"
	"fmt"
)

// SyncError carries the failure classification alongside the underlying cause
type SyncError struct {
	Kind    ErrorKind
	Source  string // SourceSheet or SourceTimeSeries, "" when not source-bound
	Message string
	Err     error
}

func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s error", e.Kind)
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewAuthError marks credential rejection by a source
func NewAuthError(source, message string, err error) *SyncError {
	return &SyncError{Kind: ErrorKindAuth, Source: source, Message: message, Err: err}
}

// NewConnectivityError marks a source that could not be reached
func NewConnectivityError(source, message string, err error) *SyncError {
	return &SyncError{Kind: ErrorKindConnectivity, Source: source, Message: message, Err: err}
}

// NewSchemaError marks a payload whose shape cannot be mapped
func NewSchemaError(source, message string, err error) *SyncError {
	return &SyncError{Kind: ErrorKindSchema, Source: source, Message: message, Err: err}
}

// NewValidationError marks rejected operation parameters
func NewValidationError(message string) *SyncError {
	return &SyncError{Kind: ErrorKindValidation, Message: message}
}

// NewProvisioningError marks a store that exists but cannot be prepared
func NewProvisioningError(source, message string, err error) *SyncError {
	return &SyncError{Kind: ErrorKindProvisioning, Source: source, Message: message, Err: err}
}

// NewWriteFailedError marks a write that failed after retries
func NewWriteFailedError(source, message string, err error) *SyncError {
	return &SyncError{Kind: ErrorKindWriteFailed, Source: source, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain, ErrorKindNone
// when the chain carries no SyncError
func KindOf(err error) ErrorKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ErrorKindNone
}

// IsValidation reports whether the error is a parameter validation failure
func IsValidation(err error) bool {
	return KindOf(err) == ErrorKindValidation
}
