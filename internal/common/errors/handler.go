// internal/common/errors/handler.go
package errors

import (
	"fmt"
	"time"
)

// Reporter normalizes component errors and logs them with their category, so each
// call site reacts to the category instead of the concrete error.
type Reporter struct {
	logger Logger
}

type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewReporter(logger Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Report logs err at the level its category deserves and returns the normalized error.
func (r *Reporter) Report(operation string, err error) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := normalizeError(err)

	fields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"errorCategory": string(stdErr.Category()),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}

	switch stdErr.Category() {
	case CategoryEngine, CategoryProtocol, CategoryConflict:
		r.logger.Debug("operation degraded", fields)
	case CategoryStuck:
		r.logger.Warn("operation degraded", fields)
	default:
		r.logger.Error("operation failed", fields)
	}
	return stdErr
}

// UserMessage renders the plain-text message shown inline in the conversation.
// Only transient failures produce text; everything else degrades silently.
func (r *Reporter) UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr := normalizeError(err)
	if stdErr.Category() != CategoryTransient {
		return ""
	}
	return fmt.Sprintf("Error: %s. Please try again.", stdErr.Message)
}

// normalizeError ensures we always have a StandardError
func normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
