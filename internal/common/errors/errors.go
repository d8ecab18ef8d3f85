// Package errors provides the standardized error taxonomy shared by the viewer components.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Category groups codes by how the session reacts to them.
type Category string

const (
	// CategoryTransient covers network failures; the only category shown to the user.
	CategoryTransient Category = "transient"
	// CategoryEngine covers render engine state inconsistencies; swallowed locally.
	CategoryEngine Category = "engine"
	// CategoryProtocol covers unknown or malformed commands; ignored per command.
	CategoryProtocol Category = "protocol"
	// CategoryStuck covers transitions that never saw a readiness signal.
	CategoryStuck Category = "stuck"
	// CategoryConflict covers requests rejected because another one is in flight.
	CategoryConflict Category = "conflict"
	// CategoryData covers a campaign dataset that violates its invariants.
	CategoryData Category = "data"
)

const (
	ErrCodeNetworkFailure ErrorCode = "NETWORK_FAILURE"
	ErrCodeBackendStatus  ErrorCode = "BACKEND_STATUS"
	ErrCodeDecodeFailed   ErrorCode = "DECODE_FAILED"

	ErrCodeEngineInconsistency ErrorCode = "ENGINE_INCONSISTENCY"
	ErrCodeStyleNotReady       ErrorCode = "STYLE_NOT_READY"
	ErrCodeStyleLoadFailed     ErrorCode = "STYLE_LOAD_FAILED"
	ErrCodeRestoreFailed       ErrorCode = "RESTORE_FAILED"

	ErrCodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	ErrCodeUnknownCommand    ErrorCode = "UNKNOWN_COMMAND"

	ErrCodeTransitionTimeout ErrorCode = "TRANSITION_TIMEOUT"

	ErrCodeTransitionInFlight ErrorCode = "TRANSITION_IN_FLIGHT"
	ErrCodeRequestInFlight    ErrorCode = "REQUEST_IN_FLIGHT"

	ErrCodeDatasetInvalid ErrorCode = "DATASET_INVALID"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Category returns the category the code belongs to.
func (e *StandardError) Category() Category {
	return GetErrorCategory(e.Code)
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// ==========================
// 2. Error Constructors
// ==========================

// NewNetworkFailureError creates a retryable transport error for a backend endpoint.
func NewNetworkFailureError(endpoint string, err error) *StandardError {
	se := newError(ErrCodeNetworkFailure, "Backend unreachable", err, true)
	se.Metadata = map[string]interface{}{"endpoint": endpoint}
	return se
}

// NewBackendStatusError creates an error for a non-2xx backend reply. 5xx replies are retryable.
func NewBackendStatusError(endpoint string, status int, body string) *StandardError {
	se := newError(ErrCodeBackendStatus, fmt.Sprintf("Backend returned status %d", status), nil, status >= 500)
	se.Details = body
	se.Metadata = map[string]interface{}{"endpoint": endpoint, "status": status}
	return se
}

// NewDecodeFailedError creates a non-retryable error for an unreadable backend reply.
func NewDecodeFailedError(endpoint string, err error) *StandardError {
	se := newError(ErrCodeDecodeFailed, "Backend reply could not be decoded", err, false)
	se.Metadata = map[string]interface{}{"endpoint": endpoint}
	return se
}

// NewEngineInconsistencyError wraps an engine complaint about missing or duplicate layers/sources.
func NewEngineInconsistencyError(operation, id string, err error) *StandardError {
	se := newError(ErrCodeEngineInconsistency, "Render engine state inconsistency", err, false)
	se.Metadata = map[string]interface{}{"operation": operation, "id": id}
	return se
}

// NewStyleLoadFailedError reports that the engine refused a style definition.
func NewStyleLoadFailedError(style string, err error) *StandardError {
	se := newError(ErrCodeStyleLoadFailed, "Basemap style could not be loaded", err, false)
	se.Metadata = map[string]interface{}{"style": style}
	return se
}

// NewRestoreFailedError reports an interrupted overlay restoration.
func NewRestoreFailedError(stage string, err error) *StandardError {
	se := newError(ErrCodeRestoreFailed, "Overlay restoration interrupted", err, false)
	se.Metadata = map[string]interface{}{"stage": stage}
	return se
}

// NewProtocolViolationError reports a malformed command payload.
func NewProtocolViolationError(command, details string) *StandardError {
	se := newError(ErrCodeProtocolViolation, "Malformed command", nil, false)
	se.Details = details
	se.Metadata = map[string]interface{}{"command": command}
	return se
}

// NewUnknownCommandError reports a command tag this client does not understand.
func NewUnknownCommandError(command string) *StandardError {
	se := newError(ErrCodeUnknownCommand, "Unknown command", nil, false)
	se.Details = fmt.Sprintf("command: %s", command)
	se.Metadata = map[string]interface{}{"command": command}
	return se
}

// NewTransitionTimeoutError reports that no readiness signal arrived before the fallback timer.
func NewTransitionTimeoutError(style string, after time.Duration) *StandardError {
	se := newError(ErrCodeTransitionTimeout, "No readiness signal from the render engine", nil, false)
	se.Details = fmt.Sprintf("style: %s, after: %s", style, after)
	return se
}

// NewTransitionInFlightError rejects a swap requested while another one is running.
func NewTransitionInFlightError(state string) *StandardError {
	se := newError(ErrCodeTransitionInFlight, "A style transition is already in progress", nil, false)
	se.Details = fmt.Sprintf("state: %s", state)
	return se
}

// NewRequestInFlightError rejects a question asked while the previous one is outstanding.
func NewRequestInFlightError() *StandardError {
	return newError(ErrCodeRequestInFlight, "A question is already being answered", nil, false)
}

// NewDatasetInvalidError reports a campaign dataset that violates its invariants.
func NewDatasetInvalidError(details string) *StandardError {
	se := newError(ErrCodeDatasetInvalid, "Campaign dataset is invalid", nil, false)
	se.Details = details
	return se
}

// ==========================
// 3. Classification
// ==========================

var categoryMapping = map[ErrorCode]Category{
	ErrCodeNetworkFailure: CategoryTransient,
	ErrCodeBackendStatus:  CategoryTransient,
	ErrCodeDecodeFailed:   CategoryTransient,

	ErrCodeEngineInconsistency: CategoryEngine,
	ErrCodeStyleNotReady:       CategoryEngine,
	ErrCodeStyleLoadFailed:     CategoryEngine,
	ErrCodeRestoreFailed:       CategoryEngine,

	ErrCodeProtocolViolation: CategoryProtocol,
	ErrCodeUnknownCommand:    CategoryProtocol,

	ErrCodeTransitionTimeout: CategoryStuck,

	ErrCodeTransitionInFlight: CategoryConflict,
	ErrCodeRequestInFlight:    CategoryConflict,

	ErrCodeDatasetInvalid: CategoryData,
}

// GetErrorCategory returns the category for a code; unmapped codes are treated as engine-local.
func GetErrorCategory(code ErrorCode) Category {
	if c, ok := categoryMapping[code]; ok {
		return c
	}
	return CategoryEngine
}

// IsRetryableErrorCode reports whether the code is worth retrying at the transport level.
func IsRetryableErrorCode(code ErrorCode) bool {
	return code == ErrCodeNetworkFailure
}

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	se, ok := AsStandard(err)
	return ok && se.Retryable
}

// HasCode reports whether err carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	se, ok := AsStandard(err)
	return ok && se.Code == code
}

// IsUserVisible reports whether the error should be surfaced to the user as plain text.
func IsUserVisible(err error) bool {
	se, ok := AsStandard(err)
	return ok && se.Category() == CategoryTransient
}
