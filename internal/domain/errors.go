package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies pipeline failures.
type ErrorType string

const (
	ErrorTypeInvalidArgument  ErrorType = "invalid_argument"
	ErrorTypeReductionFailed  ErrorType = "reduction_failed"
	ErrorTypeExtractionFailed ErrorType = "extraction_failed"
	ErrorTypeParseFailure     ErrorType = "parse_failure"
	ErrorTypeTrainingFailed   ErrorType = "training_failed"
	ErrorTypePersistFailed    ErrorType = "persist_failed"
	ErrorTypeUpstream         ErrorType = "upstream"
	ErrorTypeTransport        ErrorType = "transport"
	ErrorTypeModelUnavailable ErrorType = "model_unavailable"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeIO               ErrorType = "io"
	ErrorTypeInternal         ErrorType = "internal" // recovered panic
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error

	// StatusCode is set for upstream errors that carried an HTTP status.
	StatusCode int
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// TypeOf returns the type of the outermost DomainError in err's chain, or ""
// when err carries none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether any DomainError in err's chain has the given type.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return false
		}
		if de.Type == t {
			return true
		}
		err = de.Err
	}
	return false
}

// Common error constructors
func InvalidArgument(message string, err error) *DomainError {
	return NewError(ErrorTypeInvalidArgument, message, err)
}

func ReductionFailed(message string, err error) *DomainError {
	return NewError(ErrorTypeReductionFailed, message, err)
}

func ExtractionFailed(message string, err error) *DomainError {
	return NewError(ErrorTypeExtractionFailed, message, err)
}

func ParseFailure(message string, err error) *DomainError {
	return NewError(ErrorTypeParseFailure, message, err)
}

func TrainingFailed(message string, err error) *DomainError {
	return NewError(ErrorTypeTrainingFailed, message, err)
}

func PersistFailed(message string, err error) *DomainError {
	return NewError(ErrorTypePersistFailed, message, err)
}

// UpstreamError reports a non-2xx response from a capability endpoint.
func UpstreamError(statusCode int, message string, err error) *DomainError {
	e := NewError(ErrorTypeUpstream, message, err)
	e.StatusCode = statusCode
	return e
}

func TransportError(message string, err error) *DomainError {
	return NewError(ErrorTypeTransport, message, err)
}

func ModelUnavailable(message string, err error) *DomainError {
	return NewError(ErrorTypeModelUnavailable, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func Internal(message string, err error) *DomainError {
	return NewError(ErrorTypeInternal, message, err)
}
